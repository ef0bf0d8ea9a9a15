// Package gemini generates short completions through the Google GenAI API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

const defaultModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(
		ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Generator wraps the GenAI models service.
type Generator struct {
	models contentGenerator
	model  string
}

// NewGenerator creates a Generator on the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required: %w", domain.ErrValidation)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGenerator(client.Models, model), nil
}

func newGenerator(models contentGenerator, model string) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &Generator{models: models, model: model}
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Generate sends the user prompt with a system instruction and joins the text parts of the answer.
func (g *Generator) Generate(ctx context.Context, system, user string) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system = strings.TrimSpace(system); system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(user), cfg)
	if err != nil {
		return "", wrapError(err)
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", fmt.Errorf("gemini returned empty response: %w", domain.ErrGenerationFailure)
	}
	return out, nil
}

func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("gemini API error %d %s: %w: %w",
				apiErr.Code, apiErr.Status, domain.ErrRateLimited, domain.ErrGenerationFailure)
		}
		return fmt.Errorf("gemini API error %d %s: %w", apiErr.Code, apiErr.Status, domain.ErrGenerationFailure)
	}
	return fmt.Errorf("generate content: %w: %w", domain.ErrGenerationFailure, err)
}
