package explain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kailas-cloud/jobmatch/internal/domain"
	"github.com/kailas-cloud/jobmatch/internal/metrics"
)

type mockGenerator struct {
	out    string
	err    error
	system string
	user   string
	block  bool
}

func (m *mockGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	m.system, m.user = system, user
	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.out, m.err
}

func TestExplain_Success(t *testing.T) {
	gen := &mockGenerator{out: " Your Go and Kafka experience maps onto this platform role. "}
	svc := New(gen, Config{}, nil)

	got, err := svc.Explain(context.Background(), "5 years Go, Kafka", "Backend Engineer building pipelines")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Your Go and Kafka experience maps onto this platform role." {
		t.Errorf("unexpected explanation %q", got)
	}
	if gen.system != SystemPrompt {
		t.Errorf("unexpected system prompt %q", gen.system)
	}
	for _, part := range []string{"[User Background]\n5 years Go, Kafka", "[Target Position]\nBackend Engineer", "within 50 words"} {
		if !strings.Contains(gen.user, part) {
			t.Errorf("prompt missing %q:\n%s", part, gen.user)
		}
	}
}

func TestExplain_Truncates(t *testing.T) {
	gen := &mockGenerator{out: "ok"}
	svc := New(gen, Config{QueryLimit: 5, DescriptionLimit: 8}, nil)

	_, _ = svc.Explain(context.Background(), "ääääääääää", "0123456789abc")
	if !strings.Contains(gen.user, "äääää... (truncated)") {
		t.Errorf("query not truncated to 5 runes:\n%s", gen.user)
	}
	if !strings.Contains(gen.user, "01234567... (truncated)") {
		t.Errorf("description not truncated to 8 runes:\n%s", gen.user)
	}
}

func TestExplain_Validation(t *testing.T) {
	svc := New(&mockGenerator{out: "x"}, Config{}, nil)
	cases := [][2]string{{"", "desc"}, {"query", ""}, {"  ", "  "}}
	for _, c := range cases {
		if _, err := svc.Explain(context.Background(), c[0], c[1]); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("Explain(%q, %q): expected ErrValidation, got %v", c[0], c[1], err)
		}
	}
}

func TestExplain_FallbackOnFailure(t *testing.T) {
	metrics.RegisterPipelineMetrics()
	before := testutil.ToFloat64(metrics.ExplainFallbackTotal)

	svc := New(&mockGenerator{err: domain.ErrGenerationFailure}, Config{}, nil)
	got, err := svc.Explain(context.Background(), "q", "d")
	if err != nil {
		t.Fatalf("generation failure must not surface, got %v", err)
	}
	if got != Fallback {
		t.Errorf("expected fallback, got %q", got)
	}
	if testutil.ToFloat64(metrics.ExplainFallbackTotal) != before+1 {
		t.Error("fallback not counted")
	}
}

func TestExplain_FallbackOnTimeout(t *testing.T) {
	svc := New(&mockGenerator{block: true}, Config{Timeout: 20 * time.Millisecond}, nil)
	got, err := svc.Explain(context.Background(), "q", "d")
	if err != nil || got != Fallback {
		t.Fatalf("expected fallback on timeout, got %q, %v", got, err)
	}
}

func TestExplain_NoGenerator(t *testing.T) {
	got, err := New(nil, Config{}, nil).Explain(context.Background(), "q", "d")
	if err != nil || got != Fallback {
		t.Fatalf("expected fallback without generator, got %q, %v", got, err)
	}
}

func TestExplain_BlankCompletion(t *testing.T) {
	got, _ := New(&mockGenerator{out: "   "}, Config{}, nil).Explain(context.Background(), "q", "d")
	if got != Fallback {
		t.Errorf("blank completion should fall back, got %q", got)
	}
}
