// Package enrich adds narrative sections to an analysis using a language
// model. Enrichment is strictly additive and fail-open: it may only fill
// the narrative fields, never touch numeric results or the status, and any
// failure leaves the analysis exactly as it was.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Narrative is the structured completion we ask the model for.
type Narrative struct {
	StudyTechnique      string `json:"study_technique"`
	PreliminaryFindings string `json:"preliminary_findings"`
	Conclusions         string `json:"conclusions"`
}

// Client produces a narrative from a JSON summary of the case.
type Client interface {
	Narrative(ctx context.Context, caseSummary string) (*Narrative, error)
}

const systemPrompt = `You are a radiology reporting assistant. You receive a JSON
summary of DICOM metadata, pixel statistics and lesion measurements. Draft the
missing narrative sections of the report. Respond with a single JSON object with
the keys "study_technique", "preliminary_findings" and "conclusions". Do not
invent measurements; only describe what the summary supports.`

// OpenAIClient talks to an OpenAI-compatible chat completion endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
}

// NewOpenAIClient builds a client for the given endpoint. baseURL may be
// empty to use the default OpenAI endpoint.
func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) Narrative(ctx context.Context, caseSummary string) (*Narrative, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: caseSummary},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var n Narrative
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &n); err != nil {
		return nil, fmt.Errorf("decoding narrative: %w", err)
	}
	return &n, nil
}
