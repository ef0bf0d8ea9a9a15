// Package explain attaches a one-sentence justification to a single match.
package explain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/metrics"
)

// Fallback is returned in place of an explanation when generation fails.
const Fallback = "AI analysis temporarily unavailable (quota insufficient or network fluctuation)"

// SystemPrompt frames the generator as a career consultant.
const SystemPrompt = "You are a precise and concise career consultant."

const userTemplate = `[User Background]
%s

[Target Position]
%s

[Task]
Please use English, in one sentence (within 50 words) like a professional headhunter consultant, tell the user why this position is suitable for them.
Please output the conclusion directly, do not say things like "based on your resume".`

// Defaults applied by New.
const (
	DefaultQueryLimit       = 600
	DefaultDescriptionLimit = 800
	DefaultTimeout          = 30 * time.Second
)

// Config bounds generator input and latency.
type Config struct {
	QueryLimit       int
	DescriptionLimit int
	Timeout          time.Duration
}

// Service is the explanation augmenter. A nil generator always answers with Fallback.
type Service struct {
	gen    Generator
	cfg    Config
	logger *zap.Logger
}

// New creates an explanation service.
func New(gen Generator, cfg Config, logger *zap.Logger) *Service {
	if cfg.QueryLimit <= 0 {
		cfg.QueryLimit = DefaultQueryLimit
	}
	if cfg.DescriptionLimit <= 0 {
		cfg.DescriptionLimit = DefaultDescriptionLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, cfg: cfg, logger: logger}
}

// Explain returns why the posting suits the candidate.
// Only blank input is an error; generation failures yield Fallback.
func (s *Service) Explain(ctx context.Context, query, description string) (string, error) {
	query = strings.TrimSpace(query)
	description = strings.TrimSpace(description)
	if query == "" {
		return "", fmt.Errorf("user_query is required: %w", domain.ErrValidation)
	}
	if description == "" {
		return "", fmt.Errorf("job_description is required: %w", domain.ErrValidation)
	}

	if s.gen == nil {
		metrics.ExplainFallbackTotal.Inc()
		return Fallback, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	out, err := s.gen.Generate(ctx, SystemPrompt, Prompt(
		truncate(query, s.cfg.QueryLimit),
		truncate(description, s.cfg.DescriptionLimit),
	))
	if err == nil {
		out = strings.TrimSpace(out)
	}
	if err != nil || out == "" {
		metrics.ExplainFallbackTotal.Inc()
		s.logger.Warn("explanation generation failed, using fallback", zap.Error(err))
		return Fallback, nil
	}
	return out, nil
}

// Prompt renders the user message for a candidate and a posting.
func Prompt(query, description string) string {
	return fmt.Sprintf(userTemplate, query, description)
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "... (truncated)"
}
