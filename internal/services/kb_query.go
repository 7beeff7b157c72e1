package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/kb"
	"github.com/pagemill/pagemill/internal/models"
)

// KBQueryFunction answers questions against the knowledge base.
type KBQueryFunction struct {
	query kb.Query
}

// NewKBQuery creates a KBQueryFunction with explicit dependencies.
func NewKBQuery(query kb.Query) *KBQueryFunction {
	return &KBQueryFunction{query: query}
}

// NewKBQueryFromEnv wires the stage from the environment. The summarizer
// is the configured strong backend.
func NewKBQueryFromEnv(ctx context.Context) (*KBQueryFunction, error) {
	apiKey := config.Getenv("GEMINI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable must be set")
	}
	embedder, err := kb.NewGeminiEmbedder(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	index, err := kb.NewIndex(config.Getenv("KB_INDEX_PATH", ""))
	if err != nil {
		return nil, err
	}

	backends, err := buildBackends(ctx)
	if err != nil {
		return nil, err
	}
	strongName := config.Getenv("STRONG_BACKEND", "gemini")
	summarizer, ok := backends[strongName]
	if !ok {
		return nil, fmt.Errorf("%w: strong backend %q is not configured", ErrUnknownBackend, strongName)
	}

	minSimilarity := kb.DefaultMinSimilarity
	if v := config.Getenv("KB_MIN_SIMILARITY", ""); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid KB_MIN_SIMILARITY %q: %w", v, err)
		}
		minSimilarity = parsed
	}

	query := kb.Query{
		Embedder:      embedder,
		Index:         index,
		Summarizer:    summarizer,
		TopK:          config.Int("KB_TOP_K", kb.DefaultTopK),
		MinSimilarity: minSimilarity,
	}

	slog.Info("KB query initialized.", "summarizer", summarizer.Name(), "topK", query.TopK)
	return NewKBQuery(query), nil
}

// Process runs one knowledge base query.
func (f *KBQueryFunction) Process(ctx context.Context, req *models.KBQueryRequest) (*models.KBQueryResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrMissingQuery
	}

	query := f.query
	if req.TopK > 0 {
		query.TopK = req.TopK
	}

	resp, err := query.Run(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	slog.Info("Knowledge base queried.", "matches", len(resp.Matches))
	return resp, nil
}
