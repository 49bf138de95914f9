package delivery

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"deskmail-backend/internal/sync/usecase"

	"github.com/gin-gonic/gin"
)

type SyncHandler struct {
	engine        *usecase.SyncEngine
	webhookSecret string
}

func NewSyncHandler(engine *usecase.SyncEngine, webhookSecret string) *SyncHandler {
	return &SyncHandler{engine: engine, webhookSecret: webhookSecret}
}

type syncRequest struct {
	Mailbox string `json:"mailbox" binding:"required"`
	Mode    string `json:"mode"`
}

// TriggerSync runs a sync for one mailbox. Mode is "recent", "full" or
// "incremental"; recent is the default.
func (h *SyncHandler) TriggerSync(c *gin.Context) {
	var req syncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	tenantID := c.GetString("tenantID")

	var err error
	var threads int
	switch req.Mode {
	case "full":
		result, syncErr := h.engine.SyncFull(c.Request.Context(), tenantID, req.Mailbox)
		threads, err = len(result), syncErr
	case "incremental":
		result, syncErr := h.engine.SyncIncremental(c.Request.Context(), tenantID, req.Mailbox)
		threads, err = len(result), syncErr
	case "", "recent":
		result, syncErr := h.engine.SyncRecent(c.Request.Context(), tenantID, req.Mailbox)
		threads, err = len(result), syncErr
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown sync mode"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mailbox": req.Mailbox, "threads": threads})
}

type watchRequest struct {
	Mailbox string `json:"mailbox" binding:"required"`
}

// WatchMailbox registers a mailbox for push notifications.
func (h *SyncHandler) WatchMailbox(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	historyID, err := h.engine.Watch(c.Request.Context(), c.GetString("tenantID"), req.Mailbox)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mailbox": req.Mailbox, "historyId": historyID})
}

// pushEnvelope is the Pub/Sub push wrapper; Data is base64 of the Gmail
// notification payload.
type pushEnvelope struct {
	Message struct {
		Data      string `json:"data"`
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

type gmailNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// HandlePush receives Pub/Sub push deliveries. Unknown mailboxes are
// acknowledged with 200 so stale subscriptions do not retry forever.
func (h *SyncHandler) HandlePush(c *gin.Context) {
	if h.webhookSecret != "" {
		token := c.Query("token")
		if token == "" {
			token = c.GetHeader("X-Webhook-Token")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.webhookSecret)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
			return
		}
	}

	var envelope pushEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if envelope.Message.Data == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "push message has no data"})
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(envelope.Message.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "push data is not base64"})
		return
	}
	var notification gmailNotification
	if err := json.Unmarshal(decoded, &notification); err != nil || notification.EmailAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "push data is not a mailbox notification"})
		return
	}

	if err := h.engine.HandleNotification(c.Request.Context(), notification.EmailAddress, notification.HistoryID.String()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
