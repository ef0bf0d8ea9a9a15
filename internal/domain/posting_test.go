package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestJobID_UnmarshalNumberAndString(t *testing.T) {
	tests := []struct {
		in   string
		want JobID
	}{
		{`{"id": 42}`, "42"},
		{`{"id": "abc-1"}`, "abc-1"},
		{`{"id": " 7 "}`, "7"},
		{`{"id": null}`, ""},
		{`{}`, ""},
	}
	for _, tc := range tests {
		var p Posting
		if err := json.Unmarshal([]byte(tc.in), &p); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if p.ID != tc.want {
			t.Errorf("unmarshal %s: got %q, want %q", tc.in, p.ID, tc.want)
		}
	}
}

func TestJobID_UnmarshalRejectsObjects(t *testing.T) {
	var p Posting
	if err := json.Unmarshal([]byte(`{"id": {"x": 1}}`), &p); err == nil {
		t.Fatal("expected error for object id")
	}
}

func TestJobID_Marshal(t *testing.T) {
	tests := []struct {
		id   JobID
		want string
	}{
		{"42", `42`},
		{"abc", `"abc"`},
		{"", `null`},
	}
	for _, tc := range tests {
		got, err := json.Marshal(tc.id)
		if err != nil {
			t.Fatalf("marshal %q: %v", tc.id, err)
		}
		if string(got) != tc.want {
			t.Errorf("marshal %q: got %s, want %s", tc.id, got, tc.want)
		}
	}
}

func TestCompareIDs(t *testing.T) {
	if CompareIDs("2", "10") >= 0 {
		t.Error("numeric ids must compare numerically")
	}
	if CompareIDs("b", "a") <= 0 {
		t.Error("non-numeric ids must compare lexically")
	}
	if CompareIDs("5", "5") != 0 {
		t.Error("equal ids must compare equal")
	}
}

func TestNewIndexedDocument(t *testing.T) {
	doc, err := NewIndexedDocument(Posting{
		ID:          "1",
		Title:       "Backend Engineer",
		Description: "Go, Kubernetes",
		URL:         "https://jobs.example/1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Content != "Job Title: Backend Engineer\nJob Description: Go, Kubernetes" {
		t.Errorf("unexpected content %q", doc.Content)
	}
	if doc.Metadata.Source != DefaultSource {
		t.Errorf("expected default source, got %q", doc.Metadata.Source)
	}
	if doc.Metadata.JobID != "1" || doc.Metadata.URL != "https://jobs.example/1" {
		t.Errorf("unexpected metadata %+v", doc.Metadata)
	}
}

func TestNewIndexedDocument_MissingID(t *testing.T) {
	_, err := NewIndexedDocument(Posting{Title: "x"})
	if !errors.Is(err, ErrMissingJobID) {
		t.Fatalf("expected ErrMissingJobID, got %v", err)
	}
}

func TestTitleFromContent(t *testing.T) {
	if got := TitleFromContent(BuildContent("SRE", "pager\nduty")); got != "Job Title: SRE" {
		t.Errorf("got %q", got)
	}
	if got := TitleFromContent("single line"); got != "single line" {
		t.Errorf("got %q", got)
	}
}

func TestPosting_Normalized(t *testing.T) {
	p := Posting{Title: "  Dev ", URL: " https://x \n"}.Normalized()
	if p.Title != "Dev" || p.URL != "https://x" {
		t.Errorf("unexpected normalization %+v", p)
	}
}
