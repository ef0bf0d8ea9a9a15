package mode

import "fmt"

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Semantic ranks by embedding similarity only.
	Semantic Mode = "semantic"
	// Keyword ranks by full-text relevance only.
	Keyword Mode = "keyword"
	// Hybrid fuses semantic and keyword rankings.
	Hybrid Mode = "hybrid"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Hybrid || m == Semantic || m == Keyword
}

// Parse maps a request value to a Mode. Empty selects Semantic.
func Parse(s string) (Mode, error) {
	if s == "" {
		return Semantic, nil
	}
	m := Mode(s)
	if !m.IsValid() {
		return "", fmt.Errorf("unknown search mode %q", s)
	}
	return m, nil
}
