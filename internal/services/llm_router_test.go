package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pagemill/pagemill/internal/llm"
	"github.com/pagemill/pagemill/internal/models"
)

type stubBackend struct {
	name  string
	reply string
	err   error
	calls int
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Generate(context.Context, string) (string, error) {
	b.calls++
	return b.reply, b.err
}

func routerFixture(t *testing.T) (*stubBackend, *stubBackend, *LLMRouterFunction) {
	t.Helper()
	weak := &stubBackend{name: "ollama", reply: "weak " + strings.Repeat("answer ", 25)}
	strong := &stubBackend{name: "gemini", reply: "strong " + strings.Repeat("answer ", 25)}
	fn, err := NewLLMRouter(map[string]llm.Backend{"ollama": weak, "gemini": strong}, LLMRouterConfig{
		WeakBackend:   "ollama",
		StrongBackend: "gemini",
	})
	if err != nil {
		t.Fatalf("NewLLMRouter: %v", err)
	}
	return weak, strong, fn
}

func TestRouterRejectsEmptyPrompt(t *testing.T) {
	_, _, fn := routerFixture(t)
	for _, prompt := range []string{"", "   \n\t"} {
		if _, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: prompt}); !errors.Is(err, ErrMissingPrompt) {
			t.Errorf("Process(%q) err = %v, want ErrMissingPrompt", prompt, err)
		}
	}
}

func TestRouterExplicitBackendWins(t *testing.T) {
	weak, strong, fn := routerFixture(t)

	// A long prompt that complexity routing would send to the strong
	// backend still goes where the request says.
	prompt := strings.Repeat("explain this in detail ", 10)
	resp, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: prompt, Backend: "ollama"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.RoutedBy != "explicit" || resp.ModelUsed != "ollama" {
		t.Errorf("response = routedBy %q modelUsed %q, want explicit ollama", resp.RoutedBy, resp.ModelUsed)
	}
	if weak.calls != 1 || strong.calls != 0 {
		t.Errorf("calls = weak %d strong %d", weak.calls, strong.calls)
	}
}

func TestRouterUnknownExplicitBackend(t *testing.T) {
	_, _, fn := routerFixture(t)
	_, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: "hello", Backend: "mystery"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("err = %v, want ErrUnknownBackend", err)
	}
}

func TestRouterBedrockAliasServedByStrong(t *testing.T) {
	_, strong, fn := routerFixture(t)

	resp, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: "hello", Backend: "bedrock"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.RoutedBy != "explicit" || resp.ModelUsed != "gemini" {
		t.Errorf("response = routedBy %q modelUsed %q, want explicit gemini", resp.RoutedBy, resp.ModelUsed)
	}
	if strong.calls != 1 {
		t.Errorf("strong backend called %d times, want 1", strong.calls)
	}
}

func TestRouterComplexityCascade(t *testing.T) {
	tests := []struct {
		name      string
		prompt    string
		wantModel string
	}{
		{"short prompt goes weak", "what is two plus two", "ollama"},
		{"long prompt goes strong", strings.TrimSpace(strings.Repeat("word ", 30)), "gemini"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, fn := routerFixture(t)
			resp, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: tt.prompt})
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if resp.RoutedBy != "heuristic" || resp.ModelUsed != tt.wantModel {
				t.Errorf("response = routedBy %q modelUsed %q, want heuristic %s", resp.RoutedBy, resp.ModelUsed, tt.wantModel)
			}
		})
	}
}

func TestRouterEscalateStrategy(t *testing.T) {
	weak, strong, fn := routerFixture(t)
	weak.reply = "I can't help with that."

	resp, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: "hard question", Strategy: "escalate"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.RoutedBy != "cascading" || resp.ModelUsed != "gemini" {
		t.Errorf("response = routedBy %q modelUsed %q, want cascading gemini", resp.RoutedBy, resp.ModelUsed)
	}
	if weak.calls != 1 || strong.calls != 1 {
		t.Errorf("calls = weak %d strong %d, want 1 and 1", weak.calls, strong.calls)
	}
	if len(resp.Trace) != 3 {
		t.Errorf("trace = %v", resp.Trace)
	}
}

func TestRouterUnknownStrategyFallsBack(t *testing.T) {
	weak, _, fn := routerFixture(t)

	resp, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: "short prompt", Strategy: "quantum"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if resp.RoutedBy != "heuristic" || resp.ModelUsed != "ollama" {
		t.Errorf("response = routedBy %q modelUsed %q, want heuristic ollama", resp.RoutedBy, resp.ModelUsed)
	}
	if weak.calls != 1 {
		t.Errorf("weak backend called %d times, want 1", weak.calls)
	}
}

func TestRouterBackendFailurePropagates(t *testing.T) {
	weak, _, fn := routerFixture(t)
	weak.err = errors.New("connection refused")

	if _, err := fn.Process(context.Background(), &models.RouteRequest{Prompt: "short prompt"}); err == nil {
		t.Error("expected backend failure to propagate")
	}
}

func TestNewLLMRouterRequiresConfiguredBackends(t *testing.T) {
	backends := map[string]llm.Backend{"ollama": &stubBackend{name: "ollama"}}

	_, err := NewLLMRouter(backends, LLMRouterConfig{WeakBackend: "ollama", StrongBackend: "gemini"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("missing strong backend: err = %v, want ErrUnknownBackend", err)
	}
	_, err = NewLLMRouter(backends, LLMRouterConfig{WeakBackend: "nope", StrongBackend: "ollama"})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("missing weak backend: err = %v, want ErrUnknownBackend", err)
	}
}
