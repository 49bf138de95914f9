package openai

import (
	"regexp"
	"strings"
)

// Prompt hygiene: strip quoted reply tails, redact anything that looks like a
// credential, and cap the payload size before it leaves the process.

var (
	secretAssignRe = regexp.MustCompile(`(?i)(api[_-]?key|token|password|secret)\s*[:=]\s*\S+`)
	bearerRe       = regexp.MustCompile(`(?i)bearer\s+[a-z0-9\-\._~\+\/]+=*`)
	skKeyRe        = regexp.MustCompile(`(?i)\bsk-[a-z0-9]{10,}\b`)
	wroteLineRe    = regexp.MustCompile(`(?i)^on\s.+wrote:$`)
	headerLineRe   = regexp.MustCompile(`(?i)^(from|sent|to|subject):\s`)
)

const maxPromptChars = 4000

func redactSecrets(text string) string {
	text = secretAssignRe.ReplaceAllString(text, "$1:[redacted]")
	text = bearerRe.ReplaceAllString(text, "Bearer [redacted]")
	return skKeyRe.ReplaceAllString(text, "sk-[redacted]")
}

func stripQuoted(text string) string {
	var kept []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") || wroteLineRe.MatchString(trimmed) || headerLineRe.MatchString(trimmed) {
			continue
		}
		// Signature delimiter ends the useful content.
		if trimmed == "--" {
			break
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func minimize(text string) string {
	out := redactSecrets(stripQuoted(text))
	if len(out) > maxPromptChars {
		out = out[:maxPromptChars]
	}
	return out
}
