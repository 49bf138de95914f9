package delivery

import (
	"net/http"

	threaddomain "deskmail-backend/internal/thread/domain"
	threaddto "deskmail-backend/internal/thread/dto"
	"deskmail-backend/internal/thread/usecase"

	"github.com/gin-gonic/gin"
)

type ThreadHandler struct {
	threadUsecase *usecase.ThreadUsecase
}

func NewThreadHandler(threadUsecase *usecase.ThreadUsecase) *ThreadHandler {
	return &ThreadHandler{threadUsecase: threadUsecase}
}

func (h *ThreadHandler) ListThreads(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	summaries, err := h.threadUsecase.ListSummaries(tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, threaddto.ThreadsResponse{Threads: summaries, Total: len(summaries)})
}

func (h *ThreadHandler) GetThread(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	thread, err := h.threadUsecase.Get(tenantID, c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) UpdateThread(c *gin.Context) {
	var req threaddto.UpdateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := usecase.UpdateInput{
		AssignedTo: req.AssignedTo,
		Tags:       req.Tags,
		Note:       req.Note,
	}
	if req.Status != nil {
		status := threaddomain.ThreadStatus(*req.Status)
		input.Status = &status
	}
	if req.Priority != nil {
		priority := threaddomain.Priority(*req.Priority)
		input.Priority = &priority
	}

	thread, err := h.threadUsecase.Update(c.GetString("tenantID"), c.GetString("agentID"), c.Param("id"), input)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) ReplyToThread(c *gin.Context) {
	var req threaddto.ReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	thread, err := h.threadUsecase.Reply(c.Request.Context(), c.GetString("tenantID"), c.GetString("agentID"), c.Param("id"), req.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if thread == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "thread not found"})
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) GetWorkload(c *gin.Context) {
	workload, err := h.threadUsecase.Workload(c.GetString("tenantID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, threaddto.WorkloadResponse{Workload: workload})
}
