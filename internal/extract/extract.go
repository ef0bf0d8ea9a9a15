// Package extract turns uploaded résumé files into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/jobmatch/internal/domain"
)

var (
	// ErrUnsupportedFormat signals a file extension with no extractor.
	ErrUnsupportedFormat = fmt.Errorf("unsupported file format: %w", domain.ErrExtraction)
	// ErrEmptyDocument signals a document that yields no text.
	ErrEmptyDocument = fmt.Errorf("document contains no text: %w", domain.ErrExtraction)
	// ErrDocumentTooLarge signals a document whose text body inflates past the extraction cap.
	ErrDocumentTooLarge = fmt.Errorf("document too large: %w", domain.ErrExtraction)
)

// Func extracts text from a file's bytes.
type Func func(data []byte) (string, error)

var extractors = map[string]Func{
	".txt":  plainText,
	".md":   plainText,
	".pdf":  pdfText,
	".docx": docxText,
}

// Extensions lists the supported extensions, sorted.
func Extensions() []string {
	out := make([]string, 0, len(extractors))
	for ext := range extractors {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Text extracts the text of data, choosing the format by filename extension.
// Whitespace-only output is ErrEmptyDocument.
func Text(data []byte, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	fn, ok := extractors[ext]
	if !ok {
		return "", fmt.Errorf("%q: %w", ext, ErrUnsupportedFormat)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return "", ErrEmptyDocument
	}

	text, err := fn(data)
	if err != nil {
		if errors.Is(err, domain.ErrExtraction) {
			return "", err
		}
		return "", fmt.Errorf("%s: %w: %w", ext, domain.ErrExtraction, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// Snippet returns the first n runes of text.
func Snippet(text string, n int) string {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

func plainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("text file is not valid UTF-8: %w", domain.ErrExtraction)
	}
	return string(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))), nil
}
