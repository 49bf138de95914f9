package usecase

import (
	"encoding/base64"
	"net/mail"
	"regexp"
	"strings"
	"time"

	threaddomain "deskmail-backend/internal/thread/domain"

	"github.com/microcosm-cc/bluemonday"
)

// Normalization of raw provider payloads into domain messages. Nothing past
// this file sees provider-shaped data.

var inboundHTMLPolicy = buildInboundHTMLPolicy()

func buildInboundHTMLPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"a", "p", "br", "b", "strong", "i", "em",
		"ul", "ol", "li", "blockquote", "code", "pre",
		"h1", "h2", "h3", "h4", "h5", "h6",
	)
	p.AllowAttrs("href", "name", "target", "rel").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.RequireNoFollowOnLinks(false)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

func sanitizeInboundHTML(html string) string {
	if html == "" {
		return ""
	}
	return inboundHTMLPolicy.Sanitize(html)
}

func normalizeThread(raw *threaddomain.RawThread, mailboxID, tenantID string) *threaddomain.Thread {
	messages := make([]threaddomain.Message, 0, len(raw.Messages))
	for _, rawMsg := range raw.Messages {
		messages = append(messages, normalizeMessage(rawMsg))
	}

	subject := "(no subject)"
	snippet := ""
	if len(messages) > 0 {
		subject = messages[0].Subject
		snippet = messages[len(messages)-1].Snippet
	}

	seen := make(map[string]bool)
	var participants []string
	for _, msg := range messages {
		for _, p := range append(append([]string{msg.From}, msg.To...), msg.Cc...) {
			p = strings.TrimSpace(p)
			if p == "" || seen[strings.ToLower(p)] {
				continue
			}
			seen[strings.ToLower(p)] = true
			participants = append(participants, p)
		}
	}

	return &threaddomain.Thread{
		ID:           raw.ID,
		TenantID:     tenantID,
		Mailbox:      mailboxID,
		Subject:      subject,
		Snippet:      snippet,
		Participants: participants,
		Messages:     messages,
		Status:        threaddomain.StatusOpen,
		Priority:      threaddomain.PriorityNormal,
		Tags:          []string{},
		InternalNotes: []threaddomain.InternalNote{},
	}
}

func normalizeMessage(raw threaddomain.RawMessage) threaddomain.Message {
	var headers []threaddomain.RawHeader
	if raw.Payload != nil {
		headers = raw.Payload.Headers
	}

	date := time.Unix(0, raw.InternalDate*int64(time.Millisecond)).UTC()
	if raw.InternalDate == 0 {
		if parsed, err := mail.ParseDate(headerValue(headers, "Date")); err == nil {
			date = parsed.UTC()
		} else {
			date = time.Now().UTC()
		}
	}

	return threaddomain.Message{
		ID:          raw.ID,
		ThreadID:    raw.ThreadID,
		RFCID:       headerValue(headers, "Message-ID"),
		From:        headerValue(headers, "From"),
		To:          extractEmails(headerValue(headers, "To")),
		Cc:          extractEmails(headerValue(headers, "Cc")),
		Subject:     formatSubject(headerValue(headers, "Subject")),
		Date:        date,
		Snippet:     raw.Snippet,
		BodyText:    extractText(raw.Payload),
		BodyHTML:    sanitizeInboundHTML(extractHTML(raw.Payload)),
		Attachments: collectAttachments(raw.Payload, raw.ID, nil),
	}
}

// headerValue is a case-insensitive header lookup.
func headerValue(headers []threaddomain.RawHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// extractText walks the part tree depth-first preferring text/plain, falling
// back to any decodable leaf.
func extractText(part *threaddomain.RawPart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Data != "" {
		return decodeBase64URL(part.Data)
	}
	for i := range part.Parts {
		if text := extractText(&part.Parts[i]); text != "" {
			return text
		}
	}
	if part.Data != "" {
		return decodeBase64URL(part.Data)
	}
	return ""
}

func extractHTML(part *threaddomain.RawPart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/html" && part.Data != "" {
		return decodeBase64URL(part.Data)
	}
	for i := range part.Parts {
		if html := extractHTML(&part.Parts[i]); html != "" {
			return html
		}
	}
	return ""
}

// collectAttachments gathers any part carrying a filename and a provider
// attachment id.
func collectAttachments(part *threaddomain.RawPart, messageID string, acc []threaddomain.Attachment) []threaddomain.Attachment {
	if part == nil {
		if acc == nil {
			return []threaddomain.Attachment{}
		}
		return acc
	}
	if acc == nil {
		acc = []threaddomain.Attachment{}
	}
	if part.Filename != "" && part.AttachmentID != "" {
		mimeType := part.MimeType
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		acc = append(acc, threaddomain.Attachment{
			ID:        part.AttachmentID,
			Filename:  part.Filename,
			MimeType:  mimeType,
			Size:      part.Size,
			MessageID: messageID,
		})
	}
	for i := range part.Parts {
		acc = collectAttachments(&part.Parts[i], messageID, acc)
	}
	return acc
}

func decodeBase64URL(data string) string {
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(decoded)
}

var emailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}`)

// extractEmails pulls lowercased, deduplicated addresses out of a header
// value like `"Ana" <ana@example.com>, bob@example.com`.
func extractEmails(headerVal string) []string {
	if headerVal == "" {
		return []string{}
	}
	seen := make(map[string]bool)
	var out []string
	for _, match := range emailRe.FindAllString(headerVal, -1) {
		lower := strings.ToLower(match)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		out = append(out, lower)
	}
	if out == nil {
		return []string{}
	}
	return out
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func formatSubject(subject string) string {
	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(subject, " "))
	if normalized == "" {
		return "(no subject)"
	}
	return normalized
}
