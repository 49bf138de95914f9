package delivery

import (
	"net/http"
	"strconv"

	jobrepo "deskmail-backend/internal/job/repository"
	"deskmail-backend/internal/job/usecase"

	"github.com/gin-gonic/gin"
)

type JobHandler struct {
	jobs   jobrepo.JobRepository
	runner *usecase.Runner
}

func NewJobHandler(jobs jobrepo.JobRepository, runner *usecase.Runner) *JobHandler {
	return &JobHandler{jobs: jobs, runner: runner}
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	jobs, err := h.jobs.List(c.GetString("tenantID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "total": len(jobs)})
}

// RunJobs drains up to ?limit queued jobs.
func (h *JobHandler) RunJobs(c *gin.Context) {
	limit := 3
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	processed, err := h.runner.Drain(c.Request.Context(), c.GetString("tenantID"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}
