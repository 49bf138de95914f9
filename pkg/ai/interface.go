package ai

import "context"

// TriageResult is the classifier's verdict for one inbound message.
type TriageResult struct {
	Category       string  `json:"category"`
	Urgency        string  `json:"urgency"`
	Sentiment      string  `json:"sentiment"`
	SuggestedQueue string  `json:"suggestedQueue"`
	Confidence     float64 `json:"confidence"`
}

type TriageInput struct {
	TenantID string
	Subject  string
	Body     string
	From     string
}

// Classifier is the interface for AI triage providers.
// Implement this interface to add new providers (OpenAI, Gemini, Ollama, etc.)
type Classifier interface {
	ClassifyEmail(ctx context.Context, input TriageInput) (*TriageResult, error)
}

// Usage is the token accounting for one provider call.
type Usage struct {
	TenantID         string
	Action           string
	Model            string
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
}

// UsageSink receives accounting rows. Recording is best-effort; sinks must
// not fail the classification that produced the usage.
type UsageSink interface {
	RecordUsage(usage Usage)
}
