package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// DefaultSource is the provenance tag used when a posting carries none.
const DefaultSource = "unknown"

// JobID is the canonical posting identifier assigned by the authoritative store.
// The zero value means the posting has not been accepted yet.
type JobID string

// IsZero reports whether the id is unassigned.
func (id JobID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// String returns the raw id.
func (id JobID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (id *JobID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("job id: %w", err)
		}
		*id = JobID(strings.TrimSpace(s))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("job id must be a number or string: %w", err)
		}
		*id = JobID(n.String())
		return nil
	}
}

// MarshalJSON emits numeric ids as JSON numbers, the way the store issues them.
func (id JobID) MarshalJSON() ([]byte, error) {
	if id.IsZero() {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id)) //nolint:wrapcheck // plain string encoding
}

// CompareIDs orders ids ascending: numerically when both are integers, otherwise lexically.
func CompareIDs(a, b JobID) int {
	ai, aErr := strconv.ParseInt(string(a), 10, 64)
	bi, bErr := strconv.ParseInt(string(b), 10, 64)
	if aErr == nil && bErr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(string(a), string(b))
}

// Posting is a job advertisement.
type Posting struct {
	ID          JobID      `json:"id,omitempty"`
	Title       string     `json:"title"`
	Company     string     `json:"company,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description string     `json:"description"`
	URL         string     `json:"url"`
	Source      string     `json:"source,omitempty"`
	CreatedAt   Timestamp  `json:"createdAt,omitzero"`
}

// Normalized returns a copy with surrounding whitespace trimmed from text fields.
func (p Posting) Normalized() Posting {
	p.Title = strings.TrimSpace(p.Title)
	p.Company = strings.TrimSpace(p.Company)
	p.Location = strings.TrimSpace(p.Location)
	p.Description = strings.TrimSpace(p.Description)
	p.URL = strings.TrimSpace(p.URL)
	p.Source = strings.TrimSpace(p.Source)
	return p
}

// Metadata is the per-document payload kept next to the embedding.
type Metadata struct {
	JobID  JobID  `json:"job_id"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// IndexedDocument is the vector index's unit of storage, one per job id.
type IndexedDocument struct {
	Content   string
	Embedding []float32
	Metadata  Metadata
}

// BuildContent derives the indexed text so a single query can match either title or body.
func BuildContent(title, description string) string {
	return "Job Title: " + title + "\nJob Description: " + description
}

// NewIndexedDocument projects a posting into an unembedded index document.
func NewIndexedDocument(p Posting) (IndexedDocument, error) {
	if p.ID.IsZero() {
		return IndexedDocument{}, ErrMissingJobID
	}
	source := p.Source
	if source == "" {
		source = DefaultSource
	}
	return IndexedDocument{
		Content: BuildContent(p.Title, p.Description),
		Metadata: Metadata{
			JobID:  p.ID,
			Source: source,
			URL:    p.URL,
		},
	}, nil
}

// TitleFromContent returns the first line of indexed content.
func TitleFromContent(content string) string {
	first, _, _ := strings.Cut(content, "\n")
	return first
}
