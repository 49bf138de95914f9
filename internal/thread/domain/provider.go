package domain

import (
	"context"
	"errors"
)

// ErrInvalidHistoryID is returned by MailProvider.ListHistory when the start
// cursor is too old for the provider to replay. Callers recover by running a
// full backfill instead.
var ErrInvalidHistoryID = errors.New("history id invalid or expired")

// Raw provider shapes. These exist only at the provider boundary; the sync
// normalizer converts them into Message/Thread before anything else sees them.

type RawHeader struct {
	Name  string
	Value string
}

type RawPart struct {
	MimeType     string
	Filename     string
	Headers      []RawHeader
	Data         string // base64url-encoded body data
	AttachmentID string
	Size         int64
	Parts        []RawPart
}

type RawMessage struct {
	ID           string
	ThreadID     string
	Snippet      string
	InternalDate int64 // epoch millis
	Payload      *RawPart
}

type RawThread struct {
	ID       string
	Messages []RawMessage
}

// MessageRef is a lightweight listing entry.
type MessageRef struct {
	ID       string
	ThreadID string
}

type MessagePage struct {
	Refs          []MessageRef
	NextPageToken string
}

// HistoryPage is one page of history deltas. HistoryID is the latest cursor
// value the provider reported on this page; it may appear on any page, not
// just the last.
type HistoryPage struct {
	ThreadIDs     []string
	HistoryID     string
	NextPageToken string
}

type OutboundMail struct {
	From       string
	To         string
	Subject    string
	BodyText   string
	BodyHTML   string
	ThreadID   string
	InReplyTo  string
	References string
}

// MailProvider abstracts the external mailbox account. Implementations must
// report Configured() == false when credentials are absent so sync entry
// points can degrade to offline mode instead of failing.
type MailProvider interface {
	Configured() bool
	ListRecentMessages(ctx context.Context, address string, max int64) ([]MessageRef, error)
	ListMessagesPage(ctx context.Context, address string, pageSize int64, pageToken string) (*MessagePage, error)
	GetThread(ctx context.Context, address, threadID string) (*RawThread, error)
	ListHistory(ctx context.Context, address, startHistoryID, pageToken string) (*HistoryPage, error)
	Send(ctx context.Context, address string, mail OutboundMail) (string, error)
	Watch(ctx context.Context, address, topic string) (string, error)
}
