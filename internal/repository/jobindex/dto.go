package jobindex

import (
	"strings"

	"github.com/kailas-cloud/jobmatch/internal/db/redis"
	"github.com/kailas-cloud/jobmatch/internal/domain"
)

// Hash field names of a job document.
const (
	fieldContent = "content"
	fieldJobID   = "job_id"
	fieldSource  = "source"
	fieldURL     = "url"
	fieldVector  = "vector"
)

var returnFields = []string{fieldContent, fieldJobID, fieldSource, fieldURL}

func buildHashFields(doc *domain.IndexedDocument) map[string]string {
	return map[string]string{
		fieldContent: doc.Content,
		fieldJobID:   doc.Metadata.JobID.String(),
		fieldSource:  doc.Metadata.Source,
		fieldURL:     doc.Metadata.URL,
		fieldVector:  string(redis.VectorToBytes(doc.Embedding)),
	}
}

// parseHashFields rebuilds a document from search fields. The key is the id fallback
// for hashes written without a job_id field.
func parseHashFields(key, prefix string, m map[string]string) domain.IndexedDocument {
	id := m[fieldJobID]
	if id == "" {
		id = strings.TrimPrefix(key, prefix)
	}
	doc := domain.IndexedDocument{
		Content: m[fieldContent],
		Metadata: domain.Metadata{
			JobID:  domain.JobID(id),
			Source: m[fieldSource],
			URL:    m[fieldURL],
		},
	}
	if raw, ok := m[fieldVector]; ok {
		if v, err := redis.BytesToVector([]byte(raw)); err == nil {
			doc.Embedding = v
		}
	}
	return doc
}
