package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// GeneratorConfig holds the chat completion settings.
type GeneratorConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// Generator produces short completions through the chat API.
type Generator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewGenerator creates a chat completion generator.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	return &Generator{
		client:      openai.NewClientWithConfig(clientConfig(cfg.APIKey, cfg.BaseURL, cfg.Timeout)),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}
}

// Generate sends one system and one user message and returns the first choice.
func (g *Generator) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", apiError("chat", domain.ErrGenerationFailure, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty chat response: %w", domain.ErrGenerationFailure)
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("blank chat completion: %w", domain.ErrGenerationFailure)
	}
	return text, nil
}
