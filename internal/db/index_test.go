package db

import (
	"strings"
	"testing"
)

func jobsIndex(t *testing.T) *IndexDefinition {
	t.Helper()
	idx, err := NewIndex("jobmatch:jobs:idx").
		Prefix("jobmatch:job:").
		Text("content").
		Tag("job_id").
		Tag("source").
		VectorHNSW("vector", 1536, DistanceCosine, 16, 200).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return idx
}

func TestIndexBuilder_JobSchema(t *testing.T) {
	idx := jobsIndex(t)

	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	if idx.Fields[0].Type != IndexFieldText || idx.Fields[1].Type != IndexFieldTag {
		t.Errorf("unexpected field types %+v", idx.Fields)
	}
	v := idx.Fields[3]
	if v.VectorDim != 1536 || v.VectorDistance != DistanceCosine {
		t.Errorf("vector field = %+v", v)
	}
	if v.VectorM != 16 || v.VectorEFConstruct != 200 {
		t.Errorf("hnsw params = %d/%d", v.VectorM, v.VectorEFConstruct)
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name: "empty name",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("").Tag("x").Build()
			},
			wantErr: "index name is required",
		},
		{
			name: "no fields",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Build()
			},
			wantErr: "at least one field",
		},
		{
			name: "vector without dim",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").VectorHNSW("v", 0, DistanceCosine, 0, 0).Build()
			},
			wantErr: "positive DIM",
		},
		{
			name: "invalid characters",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx with spaces").Tag("x").Build()
			},
			wantErr: "invalid characters",
		},
		{
			name: "duplicate field",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").Tag("x").Text("x").Build()
			},
			wantErr: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	s := jobsIndex(t).String()
	if !strings.HasPrefix(s, "FT.CREATE jobmatch:jobs:idx ON HASH") {
		t.Errorf("unexpected prefix %q", s)
	}
	if !strings.Contains(s, "vector VECTOR HNSW") {
		t.Errorf("missing vector field in %q", s)
	}
}
