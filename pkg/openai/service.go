package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"deskmail-backend/pkg/ai"
)

// Service classifies inbound support email through the OpenAI
// chat-completions API with a strict JSON schema response format.
type Service struct {
	apiKey  string
	baseURL string
	model   string

	costPer1MInput  float64
	costPer1MOutput float64

	sink   ai.UsageSink
	client *http.Client
}

func NewService(apiKey, baseURL, model string, costPer1MInput, costPer1MOutput float64, sink ai.UsageSink) *Service {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "gpt-4o"
	}
	return &Service{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		model:           model,
		costPer1MInput:  costPer1MInput,
		costPer1MOutput: costPer1MOutput,
		sink:            sink,
		client:          &http.Client{},
	}
}

var triageSchema = map[string]any{
	"type":                 "object",
	"additionalProperties": false,
	"properties": map[string]any{
		"category": map[string]any{
			"type": "string",
			"enum": []string{"billing", "bug", "account", "feature", "legal", "partnership", "other"},
		},
		"urgency":        map[string]any{"type": "string", "enum": []string{"P0", "P1", "P2", "P3"}},
		"sentiment":      map[string]any{"type": "string", "enum": []string{"angry", "neutral", "positive"}},
		"suggestedQueue": map[string]any{"type": "string"},
		"confidence":     map[string]any{"type": "number"},
	},
	"required": []string{"category", "urgency", "sentiment", "suggestedQueue", "confidence"},
}

func (s *Service) ClassifyEmail(ctx context.Context, input ai.TriageInput) (*ai.TriageResult, error) {
	user, err := json.Marshal(map[string]string{
		"subject": minimize(input.Subject),
		"from":    minimize(input.From),
		"body":    minimize(input.Body),
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": "You classify inbound support emails. Provide a category, urgency, sentiment, suggestedQueue, and confidence."},
			{"role": "user", "content": string(user)},
		},
		"response_format": map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   "TriageResult",
				"schema": triageSchema,
				"strict": true,
			},
		},
	}

	body, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OpenAI API error: %s", string(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no classification returned")
	}

	s.recordUsage(input.TenantID, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)

	var result ai.TriageResult
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("malformed classification payload: %w", err)
	}
	return &result, nil
}

func (s *Service) recordUsage(tenantID string, promptTokens, completionTokens int) {
	if s.sink == nil {
		return
	}
	cost := float64(promptTokens)/1_000_000*s.costPer1MInput +
		float64(completionTokens)/1_000_000*s.costPer1MOutput
	s.sink.RecordUsage(ai.Usage{
		TenantID:         tenantID,
		Action:           "triage",
		Model:            s.model,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		CostUSD:          cost,
	})
}
