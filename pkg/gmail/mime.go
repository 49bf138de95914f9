package gmail

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	threaddomain "deskmail-backend/internal/thread/domain"
)

// buildMIME assembles the raw RFC 2822 message for Users.Messages.Send.
// Plain text only gets a single text/plain body; an HTML body switches to
// multipart/alternative with the text part first.
func buildMIME(mail threaddomain.OutboundMail) string {
	headers := []string{
		fmt.Sprintf("From: %s", mail.From),
		fmt.Sprintf("To: %s", mail.To),
		fmt.Sprintf("Subject: %s", encodeSubject(mail.Subject)),
		"MIME-Version: 1.0",
	}
	if mail.InReplyTo != "" {
		headers = append(headers, fmt.Sprintf("In-Reply-To: %s", mail.InReplyTo))
	}
	if mail.References != "" {
		headers = append(headers, fmt.Sprintf("References: %s", mail.References))
	}

	var msg strings.Builder
	if mail.BodyHTML == "" {
		headers = append(headers, "Content-Type: text/plain; charset=UTF-8")
		msg.WriteString(strings.Join(headers, "\r\n"))
		msg.WriteString("\r\n\r\n")
		msg.WriteString(mail.BodyText)
	} else {
		boundary := fmt.Sprintf("boundary_%d", time.Now().UnixNano())
		headers = append(headers, fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q", boundary))
		msg.WriteString(strings.Join(headers, "\r\n"))
		msg.WriteString("\r\n\r\n")
		msg.WriteString(fmt.Sprintf("--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, mail.BodyText))
		msg.WriteString(fmt.Sprintf("--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, mail.BodyHTML))
		msg.WriteString(fmt.Sprintf("--%s--", boundary))
	}

	return base64.RawURLEncoding.EncodeToString([]byte(msg.String()))
}

// encodeSubject applies RFC 2047 encoding so non-ASCII subjects survive.
func encodeSubject(subject string) string {
	for _, r := range subject {
		if r > 127 {
			return fmt.Sprintf("=?utf-8?B?%s?=", base64.StdEncoding.EncodeToString([]byte(subject)))
		}
	}
	return subject
}
