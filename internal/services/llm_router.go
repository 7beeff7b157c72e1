package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/llm"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/router"
)

// LLMRouterConfig holds configuration for the llm-router stage.
type LLMRouterConfig struct {
	Threshold     int
	WeakBackend   string
	StrongBackend string
}

// LLMRouterFunction serves prompt routing requests: an explicit backend
// wins, the escalate strategy tries the weak backend first, and everything
// else goes through the complexity cascade.
type LLMRouterFunction struct {
	backends  map[string]llm.Backend
	chain     router.Cascade
	escalator router.Escalator
	config    LLMRouterConfig
}

// NewLLMRouter creates an LLMRouterFunction over the given backends. The
// weak and strong backend names must be present in the map.
func NewLLMRouter(backends map[string]llm.Backend, cfg LLMRouterConfig) (*LLMRouterFunction, error) {
	weak, ok := backends[cfg.WeakBackend]
	if !ok {
		return nil, fmt.Errorf("%w: weak backend %q is not configured", ErrUnknownBackend, cfg.WeakBackend)
	}
	strong, ok := backends[cfg.StrongBackend]
	if !ok {
		return nil, fmt.Errorf("%w: strong backend %q is not configured", ErrUnknownBackend, cfg.StrongBackend)
	}

	// Requests written against the original deployment may still name its
	// managed backend; serve them with the strong one.
	if _, exists := backends["bedrock"]; !exists {
		backends["bedrock"] = strong
	}

	return &LLMRouterFunction{
		backends: backends,
		chain: router.Cascade{
			router.Heuristic{Threshold: cfg.Threshold, Strong: strong, Light: weak},
			router.Predictive{},
			router.Generative{Strong: strong},
		},
		escalator: router.Escalator{Weak: weak, Strong: strong},
		config:    cfg,
	}, nil
}

// NewLLMRouterFromEnv wires the stage from the environment.
func NewLLMRouterFromEnv(ctx context.Context) (*LLMRouterFunction, error) {
	backends, err := buildBackends(ctx)
	if err != nil {
		return nil, err
	}
	cfg := LLMRouterConfig{
		Threshold:     config.Int("PROMPT_COMPLEXITY_THRESHOLD", router.DefaultComplexityThreshold),
		WeakBackend:   config.Getenv("WEAK_BACKEND", "ollama"),
		StrongBackend: config.Getenv("STRONG_BACKEND", "gemini"),
	}
	f, err := NewLLMRouter(backends, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("LLM router initialized.", "weakBackend", cfg.WeakBackend, "strongBackend", cfg.StrongBackend, "threshold", cfg.Threshold)
	return f, nil
}

// buildBackends constructs every LLM backend the environment configures.
// Shared by the router and the knowledge base query stage.
func buildBackends(ctx context.Context) (map[string]llm.Backend, error) {
	backends := make(map[string]llm.Backend)

	if endpoints := llm.ParseEndpoints(config.Getenv("OLLAMA_ENDPOINTS", ""), config.Getenv("OLLAMA_ENDPOINT", "")); len(endpoints) > 0 {
		ollama, err := llm.NewOllama(endpoints, config.Getenv("OLLAMA_DEFAULT_MODEL", "mistral"))
		if err != nil {
			return nil, err
		}
		backends["ollama"] = ollama
	}
	if endpoints := llm.ParseEndpoints(config.Getenv("OPENAI_COMPAT_ENDPOINTS", ""), config.Getenv("OPENAI_COMPAT_ENDPOINT", "")); len(endpoints) > 0 {
		openai, err := llm.NewOpenAI(endpoints, config.Getenv("OPENAI_COMPAT_MODEL", ""), config.Getenv("LLM_API_KEY", ""))
		if err != nil {
			return nil, err
		}
		backends["openai"] = openai
	}
	if projectID := config.Getenv("PROJECT_ID", ""); projectID != "" {
		gemini, err := llm.NewGemini(ctx, projectID, config.Getenv("VERTEX_AI_REGION", "us-central1"), config.Getenv("GEMINI_MODEL", ""))
		if err != nil {
			return nil, err
		}
		backends["gemini"] = gemini
	}

	if len(backends) == 0 {
		return nil, fmt.Errorf("no LLM backends configured")
	}
	return backends, nil
}

// Process routes one prompt and returns the backend's reply.
func (f *LLMRouterFunction) Process(ctx context.Context, req *models.RouteRequest) (*models.RouteResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrMissingPrompt
	}
	logCtx := slog.With("strategy", req.Strategy, "requestedBackend", req.Backend)

	if req.Backend != "" {
		backend, ok := f.backends[req.Backend]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, req.Backend)
		}
		reply, err := backend.Generate(ctx, req.Prompt)
		if err != nil {
			return nil, fmt.Errorf("backend %s failed: %w", backend.Name(), err)
		}
		logCtx.Info("Prompt served by requested backend.", "modelUsed", backend.Name())
		return &models.RouteResponse{RoutedBy: "explicit", ModelUsed: backend.Name(), Response: reply}, nil
	}

	if req.Strategy == "escalate" {
		resp, err := f.escalator.Generate(ctx, req.Prompt)
		if err != nil {
			return nil, err
		}
		logCtx.Info("Prompt served by escalation.", "modelUsed", resp.ModelUsed)
		return resp, nil
	}
	if req.Strategy != "" && req.Strategy != "complexity" {
		logCtx.Warn("Strategy not implemented, using complexity routing.")
	}

	decision := f.chain.TryRoute(req.Prompt)
	if decision == nil {
		return nil, fmt.Errorf("routing cascade reached no decision")
	}
	reply, err := decision.Backend.Generate(ctx, req.Prompt)
	if err != nil {
		return nil, fmt.Errorf("backend %s failed: %w", decision.Backend.Name(), err)
	}
	logCtx.Info("Prompt routed.", "routedBy", decision.RoutedBy, "modelUsed", decision.Backend.Name())
	return &models.RouteResponse{RoutedBy: decision.RoutedBy, ModelUsed: decision.Backend.Name(), Response: reply}, nil
}
