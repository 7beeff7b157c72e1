package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/kb"
	"github.com/pagemill/pagemill/internal/models"
)

// KBIngestConfig holds configuration for the kb-ingest stage.
type KBIngestConfig struct {
	Bucket        string
	TextDocPrefix string
}

// KBIngestFunction indexes one merged document into the knowledge base.
// It is invoked by the ingestion workflow the output dispatcher launches.
type KBIngestFunction struct {
	store    blob.Store
	ingestor kb.Ingestor
	config   KBIngestConfig
}

// NewKBIngest creates a KBIngestFunction with explicit dependencies.
func NewKBIngest(store blob.Store, ingestor kb.Ingestor, cfg KBIngestConfig) *KBIngestFunction {
	return &KBIngestFunction{store: store, ingestor: ingestor, config: cfg}
}

// NewKBIngestFromEnv wires the stage from the environment.
func NewKBIngestFromEnv(ctx context.Context) (*KBIngestFunction, error) {
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}
	apiKey := config.Getenv("GEMINI_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable must be set")
	}

	cfg := KBIngestConfig{
		Bucket:        bucket,
		TextDocPrefix: config.Prefix("TEXT_DOC_PREFIX", "text-docs/"),
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}
	embedder, err := kb.NewGeminiEmbedder(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	index, err := kb.NewIndex(config.Getenv("KB_INDEX_PATH", ""))
	if err != nil {
		return nil, err
	}

	ingestor := kb.Ingestor{
		Chunker: kb.Chunker{
			Size:    config.Int("CHUNK_SIZE", kb.DefaultChunkSize),
			Overlap: config.Int("CHUNK_OVERLAP", kb.DefaultChunkOverlap),
		},
		Embedder: embedder,
		Index:    index,
	}

	slog.Info("KB ingest initialized.", "bucket", cfg.Bucket, "chunkSize", ingestor.Chunker.Size)
	return NewKBIngest(store, ingestor, cfg), nil
}

// Process ingests the merged document named by the request.
func (f *KBIngestFunction) Process(ctx context.Context, req *models.KBIngestRequest) (*models.KBIngestResponse, error) {
	documentID := strings.TrimSpace(req.DocumentID)
	if documentID == "" {
		return nil, fmt.Errorf("missing 'documentId'")
	}
	logCtx := slog.With("documentId", documentID)

	key := models.MergedDocKey(f.config.TextDocPrefix, documentID)
	data, err := f.store.Get(ctx, f.config.Bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read merged document: %w", err)
	}

	var doc models.MergedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse merged document %s: %w", key, err)
	}

	chunks, err := f.ingestor.IngestMerged(ctx, doc)
	if err != nil {
		return nil, err
	}
	if chunks == 0 {
		logCtx.Info("Merged document has no readable text. Nothing to ingest.")
		return &models.KBIngestResponse{DocumentID: documentID, Started: false}, nil
	}

	logCtx.Info("Document ingested into knowledge base.", "chunks", chunks)
	return &models.KBIngestResponse{DocumentID: documentID, Started: true, Chunks: chunks}, nil
}
