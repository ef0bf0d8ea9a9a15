package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/domain/batch"
	"github.com/kailas-cloud/jobmatch/internal/domain/search/mode"
	"github.com/kailas-cloud/jobmatch/internal/repository/memindex"
	"github.com/kailas-cloud/jobmatch/internal/transport/hashing"
	"github.com/kailas-cloud/jobmatch/internal/usecase/explain"
	"github.com/kailas-cloud/jobmatch/internal/usecase/health"
	"github.com/kailas-cloud/jobmatch/internal/usecase/ingest"
	"github.com/kailas-cloud/jobmatch/internal/usecase/jobsync"
	"github.com/kailas-cloud/jobmatch/internal/usecase/match"
)

// --- Fakes ---

type fakeIngester struct {
	fn func(ctx context.Context, postings []domain.Posting) (ingest.Report, error)
}

func (f *fakeIngester) Ingest(ctx context.Context, p []domain.Posting) (ingest.Report, error) {
	return f.fn(ctx, p)
}

type searchCall struct {
	query string
	k     int
	mode  mode.Mode
}

type fakeSearcher struct {
	calls []searchCall
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, q string, k int, m mode.Mode) ([]domain.MatchResult, error) {
	f.calls = append(f.calls, searchCall{q, k, m})
	if f.err != nil {
		return nil, f.err
	}
	return []domain.MatchResult{{JobID: "1", Title: "Backend Engineer", MatchScore: 0.8}}, nil
}

type fakeSyncer struct {
	runErr error
}

func (f *fakeSyncer) Run(context.Context) (jobsync.Report, error) {
	if f.runErr != nil {
		return jobsync.Report{}, f.runErr
	}
	return jobsync.Report{RunID: "r1", State: "indexed"}, nil
}

func (f *fakeSyncer) Repair(context.Context) (jobsync.RepairReport, error) {
	return jobsync.RepairReport{RunID: "r2"}, nil
}

func (f *fakeSyncer) Status(context.Context) (jobsync.Status, error) {
	return jobsync.Status{Pending: 4}, nil
}

type fakeHealth struct{ status health.Status }

func (f fakeHealth) Check(context.Context) health.Report {
	docs := 7
	return health.Report{
		Status:    f.status,
		Checks:    map[string]health.CheckResult{"vector_index": health.CheckOK},
		Documents: &docs,
	}
}

type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, string) (string, error) {
	return "", domain.ErrGenerationFailure
}

type fixture struct {
	searcher *fakeSearcher
	syncer   *fakeSyncer
	ingested []domain.Posting
	router   http.Handler
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{searcher: &fakeSearcher{}, syncer: &fakeSyncer{}}
	ing := &fakeIngester{fn: func(_ context.Context, p []domain.Posting) (ingest.Report, error) {
		f.ingested = p
		rep := ingest.Report{}
		for _, x := range p {
			if x.ID.IsZero() {
				rep.Results = append(rep.Results, batch.NewError("", domain.ErrMissingJobID))
				rep.Failed++
				continue
			}
			rep.Results = append(rep.Results, batch.NewOK(x.ID))
			rep.Written++
		}
		return rep, nil
	}}
	emb := hashing.New(64)
	srv := NewServer(Services{
		Ingest:  ing,
		Search:  f.searcher,
		Match:   match.New(emb, emb, match.Config{}, nil),
		Explain: explain.New(failingGenerator{}, explain.Config{}, nil),
		Sync:    f.syncer,
		Health:  fakeHealth{status: health.Healthy},
	}, cfg, nil)
	r := chi.NewRouter()
	srv.Mount(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

// --- Tests ---

func TestIngest(t *testing.T) {
	f := newFixture(t, Config{})
	rr := f.do(t, "POST", "/ingest", `{"jobs":[{"id":1,"title":"Backend Engineer","description":"Go"},{"title":"no id"}]}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var resp ingestResponse
	decodeBody(t, rr, &resp)
	if resp.Status != "success" || resp.Count != 1 || len(resp.Failed) != 1 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Failed[0].Error != domain.ErrMissingJobID.Error() {
		t.Errorf("failure should carry the sentinel text, got %q", resp.Failed[0].Error)
	}
	if f.ingested[0].ID != "1" {
		t.Errorf("numeric id should decode, got %q", f.ingested[0].ID)
	}
}

func TestIngest_EmptyJobs_400(t *testing.T) {
	f := newFixture(t, Config{})
	for _, body := range []string{`{}`, `{"jobs":[]}`, `not json`} {
		if rr := f.do(t, "POST", "/ingest", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", body, rr.Code)
		}
	}
}

func TestIngest_IndexUnavailable_503(t *testing.T) {
	f := newFixture(t, Config{})
	srv := NewServer(Services{
		Ingest: &fakeIngester{fn: func(context.Context, []domain.Posting) (ingest.Report, error) {
			return ingest.Report{}, fmt.Errorf("upsert: %w", domain.ErrIndexUnavailable)
		}},
		Health: fakeHealth{status: health.Healthy},
	}, Config{}, nil)
	r := chi.NewRouter()
	srv.Mount(r)
	f.router = r

	rr := f.do(t, "POST", "/ingest", `{"jobs":[{"id":1}]}`)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("got %d, want 503", rr.Code)
	}
	var e ErrorResponse
	decodeBody(t, rr, &e)
	if e.Code != CodeIndexUnavailable || strings.Contains(e.Message, "upsert") {
		t.Errorf("error must be the safe sentinel message, got %+v", e)
	}
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, errors.New("dial tcp: connection refused")
}

func TestIngest_EmbeddingOutage_502(t *testing.T) {
	srv := NewServer(Services{
		Ingest: ingest.New(memindex.New(8), downEmbedder{}, nil),
		Health: fakeHealth{status: health.Healthy},
	}, Config{}, nil)
	r := chi.NewRouter()
	srv.Mount(r)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/ingest", strings.NewReader(`{"jobs":[{"id":1,"title":"SRE","description":"k8s","url":"u"}]}`))
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("got %d, want 502: %s", rr.Code, rr.Body.String())
	}
	var e ErrorResponse
	decodeBody(t, rr, &e)
	if e.Code != CodeEmbeddingProviderError || strings.Contains(e.Message, "dial tcp") {
		t.Errorf("unexpected error body %+v", e)
	}
}

func TestSearch_Defaults(t *testing.T) {
	f := newFixture(t, Config{})
	rr := f.do(t, "POST", "/search", `{"query":"distributed systems"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	if c := f.searcher.calls[0]; c.k != DefaultK || c.mode != mode.Semantic {
		t.Errorf("expected k=%d semantic, got %+v", DefaultK, c)
	}
	var resp searchResponse
	decodeBody(t, rr, &resp)
	if len(resp.Results) != 1 || resp.Results[0].AIReason != nil {
		t.Errorf("unexpected results %+v", resp.Results)
	}
}

func TestSearch_Validation(t *testing.T) {
	f := newFixture(t, Config{})
	if rr := f.do(t, "POST", "/search", `{"query":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank query: got %d", rr.Code)
	}
	if rr := f.do(t, "POST", "/search", `{"query":"go","mode":"fuzzy"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad mode: got %d", rr.Code)
	}
}

func TestSearch_ErrorStatuses(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("k must be positive: %w", domain.ErrValidation), http.StatusBadRequest, CodeValidationFailed},
		{domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError},
		{fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, domain.ErrRateLimited), http.StatusTooManyRequests, CodeRateLimited},
		{domain.ErrIndexUnavailable, http.StatusServiceUnavailable, CodeIndexUnavailable},
		{domain.ErrKeywordSearchNotSupported, http.StatusNotImplemented, CodeKeywordSearchUnsupported},
		{errors.New("boom"), http.StatusInternalServerError, CodeInternalError},
	}
	for _, tc := range tests {
		f := newFixture(t, Config{})
		f.searcher.err = tc.err
		rr := f.do(t, "POST", "/search", `{"query":"go","mode":"hybrid"}`)
		var e ErrorResponse
		decodeBody(t, rr, &e)
		if rr.Code != tc.status || e.Code != tc.code {
			t.Errorf("%v: got %d %s, want %d %s", tc.err, rr.Code, e.Code, tc.status, tc.code)
		}
	}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestRecommendFile(t *testing.T) {
	f := newFixture(t, Config{})
	resume := strings.Repeat("Senior Go engineer with Kubernetes experience. ", 10)
	body, ct := multipartBody(t, "resume_file", "cv.txt", resume)

	req := httptest.NewRequest("POST", "/recommend_file", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var resp recommendResponse
	decodeBody(t, rr, &resp)
	if len([]rune(resp.Snippet)) != DefaultSnippetRunes {
		t.Errorf("snippet should be %d runes, got %d", DefaultSnippetRunes, len([]rune(resp.Snippet)))
	}
	if resp.FullResumeText != strings.TrimSpace(resume) {
		t.Errorf("full text mismatch: %q", resp.FullResumeText)
	}
	if c := f.searcher.calls[0]; c.k != DefaultFileK {
		t.Errorf("expected k=%d, got %d", DefaultFileK, c.k)
	}
}

func TestRecommendFile_BadInput_400(t *testing.T) {
	tests := []struct {
		name, field, filename, content, code string
	}{
		{"missing file", "", "", "", CodeBadRequest},
		{"empty file", "resume_file", "cv.txt", "", CodeValidationFailed},
		{"unsupported", "resume_file", "cv.png", "\x89PNG", CodeExtractionFailed},
		{"corrupt pdf", "resume_file", "cv.pdf", "not a pdf", CodeExtractionFailed},
		{"whitespace only", "resume_file", "cv.txt", " \n\t ", CodeExtractionFailed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			body, ct := multipartBody(t, tc.field, tc.filename, tc.content)
			req := httptest.NewRequest("POST", "/recommend_file", body)
			req.Header.Set("Content-Type", ct)
			rr := httptest.NewRecorder()
			f.router.ServeHTTP(rr, req)

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("got %d, want 400", rr.Code)
			}
			var e ErrorResponse
			decodeBody(t, rr, &e)
			if e.Code != tc.code {
				t.Errorf("code = %s, want %s", e.Code, tc.code)
			}
			if len(f.searcher.calls) != 0 {
				t.Error("search must not run on bad input")
			}
		})
	}
}

func TestExplain(t *testing.T) {
	f := newFixture(t, Config{})

	rr := f.do(t, "POST", "/explain", `{"job_description":"","user_query":"go dev"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty description: got %d, want 400", rr.Code)
	}

	rr = f.do(t, "POST", "/explain", `{"job_description":"Go backend","user_query":"go dev"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("failing generator: got %d, want 200", rr.Code)
	}
	var resp explainResponse
	decodeBody(t, rr, &resp)
	if resp.AIReason != explain.Fallback {
		t.Errorf("expected fallback sentence, got %q", resp.AIReason)
	}
}

func TestMatch_GracefulDegradation(t *testing.T) {
	f := newFixture(t, Config{})
	var cands []string
	for i := range 7 {
		cands = append(cands, fmt.Sprintf(`{"id":%d,"title":"Go %d","description":"Go distributed systems"}`, i+1, i))
	}
	cands = append(cands, `null`, `"not an object"`, `{"id":99,"title":"blank","description":"  "}`)
	body := `{"query":"golang backend","candidates":[` + strings.Join(cands, ",") + `]}`

	rr := f.do(t, "POST", "/match", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d: %s", rr.Code, rr.Body)
	}
	var resp matchResponse
	decodeBody(t, rr, &resp)
	if len(resp.Results) != 7 || resp.Skipped != 3 || len(resp.SkippedItems) != 3 {
		t.Fatalf("expected 7 results and 3 skipped, got %d/%d", len(resp.Results), resp.Skipped)
	}
	want := map[int]string{7: match.ReasonNullCandidate, 8: match.ReasonNullCandidate, 9: match.ReasonEmptyDescription}
	for _, it := range resp.SkippedItems {
		if want[it.Index] != it.Reason {
			t.Errorf("index %d: reason %q, want %q", it.Index, it.Reason, want[it.Index])
		}
	}
	for i := 1; i < len(resp.Results); i++ {
		if resp.Results[i-1].MatchScore < resp.Results[i].MatchScore {
			t.Fatal("results not sorted by score")
		}
	}
}

func TestMatch_EmptyInput(t *testing.T) {
	f := newFixture(t, Config{})
	rr := f.do(t, "POST", "/match", `{"query":"","candidates":[{"id":1,"description":"x"}]}`)
	var resp matchResponse
	decodeBody(t, rr, &resp)
	if rr.Code != http.StatusOK || len(resp.Results) != 0 || resp.SkippedItems == nil {
		t.Errorf("empty query should give an empty result, got %d %+v", rr.Code, resp)
	}
}

func TestSync_RequiresKey(t *testing.T) {
	f := newFixture(t, Config{APIKeys: []string{"secret"}})

	if rr := f.do(t, "POST", "/sync", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no key: got %d, want 401", rr.Code)
	}
	if rr := f.do(t, "POST", "/ingest", `{"jobs":[{"id":1}]}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("ingest without key: got %d, want 401", rr.Code)
	}

	rr := f.do(t, "POST", "/sync", "", DefaultAuthHeader, "secret")
	if rr.Code != http.StatusOK {
		t.Fatalf("with key: got %d", rr.Code)
	}
	var rep jobsync.Report
	decodeBody(t, rr, &rep)
	if rep.RunID != "r1" {
		t.Errorf("unexpected report %+v", rep)
	}

	if rr := f.do(t, "POST", "/search", `{"query":"go"}`); rr.Code != http.StatusOK {
		t.Errorf("search must stay public, got %d", rr.Code)
	}
}

func TestSync_InProgress_409(t *testing.T) {
	f := newFixture(t, Config{})
	f.syncer.runErr = domain.ErrSyncInProgress
	if rr := f.do(t, "POST", "/sync", ""); rr.Code != http.StatusConflict {
		t.Errorf("got %d, want 409", rr.Code)
	}
}

func TestSyncStatusAndRepair(t *testing.T) {
	f := newFixture(t, Config{})
	rr := f.do(t, "GET", "/sync/status", "")
	var st jobsync.Status
	decodeBody(t, rr, &st)
	if rr.Code != http.StatusOK || st.Pending != 4 {
		t.Errorf("status: %d %+v", rr.Code, st)
	}

	rr = f.do(t, "POST", "/sync/repair", "")
	var rep jobsync.RepairReport
	decodeBody(t, rr, &rep)
	if rr.Code != http.StatusOK || rep.RunID != "r2" {
		t.Errorf("repair: %d %+v", rr.Code, rep)
	}
}

func TestHealth(t *testing.T) {
	for _, tc := range []struct {
		status health.Status
		code   int
	}{
		{health.Healthy, http.StatusOK},
		{health.Degraded, http.StatusServiceUnavailable},
	} {
		srv := NewServer(Services{Health: fakeHealth{status: tc.status}}, Config{}, nil)
		r := chi.NewRouter()
		srv.Mount(r)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest("GET", "/health", http.NoBody))
		if rr.Code != tc.code {
			t.Errorf("%s: got %d, want %d", tc.status, rr.Code, tc.code)
		}
		var resp healthResponse
		decodeBody(t, rr, &resp)
		if resp.Status != tc.status || resp.Checks["vector_index"] != health.CheckOK {
			t.Errorf("unexpected body %+v", resp)
		}
		if resp.Documents == nil || *resp.Documents != 7 {
			t.Errorf("documents = %v, want 7", resp.Documents)
		}
	}
}

func TestSyncRoutesAbsentWithoutSyncer(t *testing.T) {
	srv := NewServer(Services{Health: fakeHealth{status: health.Healthy}}, Config{}, nil)
	r := chi.NewRouter()
	srv.Mount(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest("POST", "/sync", http.NoBody))
	if rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected no sync route, got %d", rr.Code)
	}
}
