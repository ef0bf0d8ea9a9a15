// Package scraper provides the postings of one crawl pass.
package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// Source yields the raw postings collected by one crawl.
type Source interface {
	Collect(ctx context.Context) ([]domain.Posting, error)
}

// Static returns a fixed set of postings.
type Static []domain.Posting

// Collect returns a copy of the postings.
func (s Static) Collect(context.Context) ([]domain.Posting, error) {
	return append([]domain.Posting(nil), s...), nil
}

// FileSource reads the crawler's output file on every Collect.
// The file is a JSON array or JSON Lines; undecodable lines are logged and skipped.
type FileSource struct {
	path          string
	defaultSource string
	logger        *zap.Logger
}

// NewFileSource creates a file-backed source. defaultSource tags postings without a source.
func NewFileSource(path, defaultSource string, logger *zap.Logger) *FileSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSource{path: path, defaultSource: defaultSource, logger: logger}
}

// Collect reads and decodes the crawl file.
func (s *FileSource) Collect(ctx context.Context) ([]domain.Posting, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("collect: %w", err)
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read crawl file: %w", err)
	}

	var postings []domain.Posting
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &postings); err != nil {
			return nil, fmt.Errorf("decode crawl file %s: %w", s.path, err)
		}
	} else {
		postings = s.decodeLines(trimmed)
	}

	for i := range postings {
		if postings[i].Source == "" {
			postings[i].Source = s.defaultSource
		}
	}
	return postings, nil
}

func (s *FileSource) decodeLines(data []byte) []domain.Posting {
	var out []domain.Posting
	for i, raw := range bytes.Split(data, []byte("\n")) {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		var p domain.Posting
		if err := json.Unmarshal(raw, &p); err != nil {
			s.logger.Warn("skipping undecodable crawl line",
				zap.String("path", s.path), zap.Int("line", i+1), zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}
