package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string // defaults to "vector"
	Vector       []float32
	K            int
	ReturnFields []string
}

// TextQuery is the input for BM25 text search over one TEXT field.
type TextQuery struct {
	IndexName    string
	Field        string
	Query        string
	TopK         int
	ReturnFields []string
}

// SearchResult is one page of hits. Total counts every match, not just the page.
type SearchResult struct {
	Total int
	Hits  []Hit
}

// Hit is a matched hash: its key, its stored fields and a higher-is-better score.
// KNN scores are cosine similarity; BM25 scores are unbounded.
type Hit struct {
	Key    string
	Score  float64
	Fields map[string]string
}
