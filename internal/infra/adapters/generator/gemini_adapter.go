// File: internal/infra/adapters/generator/gemini_adapter.go
package generator

import (
	"context"
	"errors"
	"time"

	"google.golang.org/genai"

	"paysession/internal/domain/ports/adapter"
	"paysession/internal/infra/adapters/generator/prompts"
	"paysession/internal/infra/metrics"
)

var _ adapter.ContentGenerator = (*GeminiGenerator)(nil)

type GeminiGenerator struct {
	client *genai.Client
	model  string
	maxOut int
}

// NewGeminiGenerator creates a Gemini generator using the official SDK.
func NewGeminiGenerator(ctx context.Context, apiKey, baseURL, model string, maxOut int) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{client: c, model: model, maxOut: maxOut}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, req adapter.GenerateRequest) (string, error) {
	started := time.Now()
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.RoleUser
		if turn.Role == "assistant" {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []*genai.Part{{Text: turn.Content}}})
	}
	contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: req.Input}}})
	resp, err := g.client.Models.GenerateContent(
		ctx,
		g.model,
		contents,
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(g.maxOut),
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{{Text: prompts.Default().Frame(req.Category, req.UserData)}},
			},
		},
	)
	metrics.ObserveGenerationLatency(g.Name(), int(time.Since(started)/time.Millisecond))
	if err != nil {
		return "", err
	}
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			return t, nil
		}
	}
	return "", errors.New("gemini: empty candidate")
}
