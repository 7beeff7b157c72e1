package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/nativetext"
)

// TextExtractorConfig holds configuration for the text-extractor stage.
type TextExtractorConfig struct {
	Bucket         string
	TextPDFPrefix  string
	TextPagePrefix string
}

// TextExtractorFunction turns native-text pages into layout-aware JSON
// page outputs.
type TextExtractorFunction struct {
	store  blob.Store
	config TextExtractorConfig
}

// NewTextExtractor creates a TextExtractorFunction with explicit
// dependencies.
func NewTextExtractor(store blob.Store, cfg TextExtractorConfig) *TextExtractorFunction {
	return &TextExtractorFunction{store: store, config: cfg}
}

// NewTextExtractorFromEnv wires the stage from the environment.
func NewTextExtractorFromEnv(ctx context.Context) (*TextExtractorFunction, error) {
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := TextExtractorConfig{
		Bucket:         bucket,
		TextPDFPrefix:  config.Prefix("PDF_TEXT_PAGE_PREFIX", "pdf-text-pages/"),
		TextPagePrefix: config.Prefix("TEXT_PAGE_PREFIX", "text-pages/"),
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("Text extractor initialized.", "bucket", cfg.Bucket, "textPdfPrefix", cfg.TextPDFPrefix)
	return NewTextExtractor(store, cfg), nil
}

// Process extracts each native-text page in the batch independently.
func (f *TextExtractorFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		if err := f.processRecord(ctx, record); err != nil {
			slog.Error("Failed to extract native text", "gcsBucket", record.Bucket, "gcsObject", record.Name, "error", err)
		}
	}
	return models.OK("Text extractor executed")
}

func (f *TextExtractorFunction) processRecord(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.config.Bucket || !strings.HasPrefix(e.Name, f.config.TextPDFPrefix) {
		logCtx.Info("Object outside text extractor scope. Skipping.")
		return nil
	}
	page := models.PageIndexFromKey(e.Name)
	if page == 0 {
		logCtx.Info("Not a page object. Skipping.")
		return nil
	}
	documentID := models.DocumentIDFromKey(e.Name, f.config.TextPDFPrefix)
	logCtx = logCtx.With("documentId", documentID, "page", page)

	data, err := f.store.Get(ctx, e.Bucket, e.Name)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	extracted, err := nativetext.Extract(data)
	if err != nil {
		return fmt.Errorf("failed to extract text from page %d of %s: %w", page, documentID, err)
	}

	payload, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("failed to marshal page output: %w", err)
	}
	destKey := models.PageOutputKey(f.config.TextPagePrefix, documentID, page, "json")
	if err := f.store.Put(ctx, f.config.Bucket, destKey, payload, "application/json"); err != nil {
		return fmt.Errorf("failed to write page output %s: %w", destKey, err)
	}

	logCtx.Info("Native text extracted.", "gcsOutput", destKey, "blocks", len(extracted.Blocks))
	return nil
}
