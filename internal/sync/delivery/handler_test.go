package delivery

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"deskmail-backend/internal/mailbox"
	"deskmail-backend/internal/sync/usecase"
	threaddomain "deskmail-backend/internal/thread/domain"
	"deskmail-backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubThreadRepo struct{}

func (stubThreadRepo) Get(tenantID, threadID string) (*threaddomain.Thread, error) { return nil, nil }
func (stubThreadRepo) Upsert(thread *threaddomain.Thread) error                    { return nil }
func (stubThreadRepo) ListByTenant(tenantID string) ([]*threaddomain.Thread, error) {
	return nil, nil
}
func (stubThreadRepo) ListByMailbox(tenantID, mailboxID string) ([]*threaddomain.Thread, error) {
	return nil, nil
}
func (stubThreadRepo) ListSummaries(tenantID string) ([]threaddomain.InboxSummary, error) {
	return nil, nil
}
func (stubThreadRepo) Workload(tenantID string) (map[string]int, error) { return nil, nil }

type stubSyncState struct {
	cursors map[string]threaddomain.Cursor
}

func (s *stubSyncState) GetCursor(tenantID, mailboxID string) (threaddomain.Cursor, error) {
	return s.cursors[tenantID+"/"+mailboxID], nil
}

func (s *stubSyncState) SaveCursor(tenantID, mailboxID string, cursor threaddomain.Cursor) error {
	s.cursors[tenantID+"/"+mailboxID] = cursor
	return nil
}

type stubProvider struct {
	recentCalls int
}

func (p *stubProvider) Configured() bool { return true }

func (p *stubProvider) ListRecentMessages(ctx context.Context, address string, max int64) ([]threaddomain.MessageRef, error) {
	p.recentCalls++
	return nil, nil
}

func (p *stubProvider) ListMessagesPage(ctx context.Context, address string, pageSize int64, pageToken string) (*threaddomain.MessagePage, error) {
	return &threaddomain.MessagePage{}, nil
}

func (p *stubProvider) GetThread(ctx context.Context, address, threadID string) (*threaddomain.RawThread, error) {
	return nil, fmt.Errorf("thread %s not found", threadID)
}

func (p *stubProvider) ListHistory(ctx context.Context, address, startHistoryID, pageToken string) (*threaddomain.HistoryPage, error) {
	return &threaddomain.HistoryPage{HistoryID: startHistoryID}, nil
}

func (p *stubProvider) Send(ctx context.Context, address string, mail threaddomain.OutboundMail) (string, error) {
	return "", nil
}

func (p *stubProvider) Watch(ctx context.Context, address, topic string) (string, error) {
	return "", nil
}

func pushRouter(provider *stubProvider, secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry := mailbox.NewRegistry([]config.MailboxSpec{
		{ID: "board", Address: "board@dream-x.app", TenantID: "dream-x"},
	})
	engine := usecase.NewSyncEngine(stubThreadRepo{}, &stubSyncState{cursors: map[string]threaddomain.Cursor{}}, registry, provider, nil, "topic")
	handler := NewSyncHandler(engine, secret)

	r := gin.New()
	r.POST("/api/push", handler.HandlePush)
	return r
}

func pushBody(t *testing.T, emailAddress string, historyID uint64) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"emailAddress": emailAddress,
		"historyId":    historyID,
	})
	require.NoError(t, err)
	envelope, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data":      base64.StdEncoding.EncodeToString(payload),
			"messageId": "pubsub-1",
		},
		"subscription": "projects/p/subscriptions/s",
	})
	require.NoError(t, err)
	return envelope
}

func TestHandlePushRejectsBadToken(t *testing.T) {
	r := pushRouter(&stubProvider{}, "hunter2")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push", bytes.NewReader(pushBody(t, "board@dream-x.app", 150)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/push?token=wrong", bytes.NewReader(pushBody(t, "board@dream-x.app", 150)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandlePushAcceptsTokenViaHeader(t *testing.T) {
	provider := &stubProvider{}
	r := pushRouter(provider, "hunter2")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push", bytes.NewReader(pushBody(t, "board@dream-x.app", 150)))
	req.Header.Set("X-Webhook-Token", "hunter2")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, provider.recentCalls)
}

func TestHandlePushMissingDataIsBadRequest(t *testing.T) {
	r := pushRouter(&stubProvider{}, "")

	envelope := []byte(`{"message":{"messageId":"pubsub-1"},"subscription":"s"}`)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push", bytes.NewReader(envelope))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePushMalformedDataIsBadRequest(t *testing.T) {
	r := pushRouter(&stubProvider{}, "")

	envelope, err := json.Marshal(map[string]any{
		"message": map[string]any{"data": base64.StdEncoding.EncodeToString([]byte("not json"))},
	})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push", bytes.NewReader(envelope))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandlePushUnknownMailboxIsAcknowledged(t *testing.T) {
	provider := &stubProvider{}
	r := pushRouter(provider, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push", bytes.NewReader(pushBody(t, "stranger@elsewhere.net", 99)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, provider.recentCalls)
}

func TestHandlePushKnownMailboxTriggersSync(t *testing.T) {
	provider := &stubProvider{}
	r := pushRouter(provider, "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/push", bytes.NewReader(pushBody(t, "board@dream-x.app", 150)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, provider.recentCalls)
}
