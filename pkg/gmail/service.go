package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	threaddomain "deskmail-backend/internal/thread/domain"

	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailSendScope,
	gmail.GmailModifyScope,
}

// Service implements threaddomain.MailProvider on the Gmail API using a
// domain-wide-delegation service account. Each call impersonates the target
// mailbox address as the JWT subject.
type Service struct {
	clientEmail string
	privateKey  []byte
}

func NewService(clientEmail, privateKey string) *Service {
	return &Service{
		clientEmail: clientEmail,
		privateKey:  []byte(privateKey),
	}
}

// Configured reports whether service-account credentials are present. When
// false, callers run in offline mode and serve stored data only.
func (s *Service) Configured() bool {
	return s.clientEmail != "" && len(s.privateKey) > 0
}

func (s *Service) gmailService(ctx context.Context, subject string) (*gmail.Service, error) {
	conf := &jwt.Config{
		Email:      s.clientEmail,
		PrivateKey: s.privateKey,
		Scopes:     scopes,
		Subject:    subject,
		TokenURL:   google.JWTTokenURL,
	}
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service for %s: %v", subject, err)
	}
	return srv, nil
}

func (s *Service) ListRecentMessages(ctx context.Context, address string, max int64) ([]threaddomain.MessageRef, error) {
	srv, err := s.gmailService(ctx, address)
	if err != nil {
		return nil, err
	}

	resp, err := srv.Users.Messages.List("me").LabelIds("INBOX").MaxResults(max).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %v", err)
	}
	return messageRefs(resp.Messages), nil
}

func (s *Service) ListMessagesPage(ctx context.Context, address string, pageSize int64, pageToken string) (*threaddomain.MessagePage, error) {
	srv, err := s.gmailService(ctx, address)
	if err != nil {
		return nil, err
	}

	call := srv.Users.Messages.List("me").LabelIds("INBOX").MaxResults(pageSize).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %v", err)
	}
	return &threaddomain.MessagePage{
		Refs:          messageRefs(resp.Messages),
		NextPageToken: resp.NextPageToken,
	}, nil
}

func (s *Service) GetThread(ctx context.Context, address, threadID string) (*threaddomain.RawThread, error) {
	srv, err := s.gmailService(ctx, address)
	if err != nil {
		return nil, err
	}

	thread, err := srv.Users.Threads.Get("me", threadID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve thread %s: %v", threadID, err)
	}

	raw := &threaddomain.RawThread{ID: thread.Id}
	for _, msg := range thread.Messages {
		raw.Messages = append(raw.Messages, threaddomain.RawMessage{
			ID:           msg.Id,
			ThreadID:     msg.ThreadId,
			Snippet:      msg.Snippet,
			InternalDate: msg.InternalDate,
			Payload:      convertPart(msg.Payload),
		})
	}
	return raw, nil
}

func (s *Service) ListHistory(ctx context.Context, address, startHistoryID, pageToken string) (*threaddomain.HistoryPage, error) {
	srv, err := s.gmailService(ctx, address)
	if err != nil {
		return nil, err
	}

	start, err := strconv.ParseUint(startHistoryID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", threaddomain.ErrInvalidHistoryID, startHistoryID)
	}

	call := srv.Users.History.List("me").StartHistoryId(start).Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		// Gmail rejects expired history ids with 404 (sometimes 410).
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return nil, fmt.Errorf("%w: %v", threaddomain.ErrInvalidHistoryID, err)
		}
		return nil, fmt.Errorf("unable to list history: %v", err)
	}

	page := &threaddomain.HistoryPage{NextPageToken: resp.NextPageToken}
	if resp.HistoryId > 0 {
		page.HistoryID = strconv.FormatUint(resp.HistoryId, 10)
	}
	seen := make(map[string]bool)
	addThread := func(threadID string) {
		if threadID == "" || seen[threadID] {
			return
		}
		seen[threadID] = true
		page.ThreadIDs = append(page.ThreadIDs, threadID)
	}
	for _, item := range resp.History {
		for _, added := range item.MessagesAdded {
			if added.Message != nil {
				addThread(added.Message.ThreadId)
			}
		}
		for _, msg := range item.Messages {
			addThread(msg.ThreadId)
		}
	}
	return page, nil
}

func (s *Service) Send(ctx context.Context, address string, mail threaddomain.OutboundMail) (string, error) {
	srv, err := s.gmailService(ctx, address)
	if err != nil {
		return "", err
	}

	msg := &gmail.Message{
		Raw:      buildMIME(mail),
		ThreadId: mail.ThreadID,
	}
	sent, err := srv.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to send message: %v", err)
	}
	return sent.Id, nil
}

func (s *Service) Watch(ctx context.Context, address, topic string) (string, error) {
	srv, err := s.gmailService(ctx, address)
	if err != nil {
		return "", err
	}

	resp, err := srv.Users.Watch("me", &gmail.WatchRequest{
		TopicName: topic,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("unable to watch mailbox: %v", err)
	}
	if resp.HistoryId == 0 {
		return "", nil
	}
	return strconv.FormatUint(resp.HistoryId, 10), nil
}

func messageRefs(messages []*gmail.Message) []threaddomain.MessageRef {
	refs := make([]threaddomain.MessageRef, 0, len(messages))
	for _, msg := range messages {
		refs = append(refs, threaddomain.MessageRef{ID: msg.Id, ThreadID: msg.ThreadId})
	}
	return refs
}

func convertPart(part *gmail.MessagePart) *threaddomain.RawPart {
	if part == nil {
		return nil
	}
	raw := &threaddomain.RawPart{
		MimeType: part.MimeType,
		Filename: part.Filename,
	}
	for _, header := range part.Headers {
		raw.Headers = append(raw.Headers, threaddomain.RawHeader{Name: header.Name, Value: header.Value})
	}
	if part.Body != nil {
		raw.Data = part.Body.Data
		raw.AttachmentID = part.Body.AttachmentId
		raw.Size = part.Body.Size
	}
	for _, child := range part.Parts {
		if converted := convertPart(child); converted != nil {
			raw.Parts = append(raw.Parts, *converted)
		}
	}
	return raw
}
