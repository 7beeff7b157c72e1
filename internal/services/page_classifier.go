package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/classify"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/models"
)

// PageClassifierConfig holds configuration for the page-classifier stage.
type PageClassifierConfig struct {
	Bucket        string
	PagePrefix    string
	TextPDFPrefix string
	ScanPDFPrefix string
}

// PageClassifierFunction sorts split pages into the native-text and
// scanned extraction paths. Classification is pure: only the page bytes
// decide, so reruns always route the same way.
type PageClassifierFunction struct {
	store  blob.Store
	config PageClassifierConfig
}

// NewPageClassifier creates a PageClassifierFunction with explicit
// dependencies.
func NewPageClassifier(store blob.Store, cfg PageClassifierConfig) *PageClassifierFunction {
	return &PageClassifierFunction{store: store, config: cfg}
}

// NewPageClassifierFromEnv wires the stage from the environment.
func NewPageClassifierFromEnv(ctx context.Context) (*PageClassifierFunction, error) {
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := PageClassifierConfig{
		Bucket:        bucket,
		PagePrefix:    config.Prefix("PDF_PAGE_PREFIX", "pdf-pages/"),
		TextPDFPrefix: config.Prefix("PDF_TEXT_PAGE_PREFIX", "pdf-text-pages/"),
		ScanPDFPrefix: config.Prefix("PDF_SCAN_PAGE_PREFIX", "pdf-scan-pages/"),
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("Page classifier initialized.", "bucket", cfg.Bucket, "pagePrefix", cfg.PagePrefix)
	return NewPageClassifier(store, cfg), nil
}

// Process classifies each page object in the batch independently.
func (f *PageClassifierFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		if err := f.processRecord(ctx, record); err != nil {
			slog.Error("Failed to classify page", "gcsBucket", record.Bucket, "gcsObject", record.Name, "error", err)
		}
	}
	return models.OK("Page classifier executed")
}

func (f *PageClassifierFunction) processRecord(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.config.Bucket || !strings.HasPrefix(e.Name, f.config.PagePrefix) {
		logCtx.Info("Object outside page classifier scope. Skipping.")
		return nil
	}
	// Manifests share the page prefix but are not pages.
	if models.PageIndexFromKey(e.Name) == 0 {
		logCtx.Info("Not a page object. Skipping.")
		return nil
	}

	data, err := f.store.Get(ctx, e.Bucket, e.Name)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	// Unreadable pages classify as scanned: OCR is the strategy of last
	// resort, and routing there can still recover text.
	class, classErr := classify.Page(data)
	if classErr != nil {
		logCtx.Warn("Page unreadable. Classifying as scanned.", "error", classErr)
	}

	destPrefix := f.config.ScanPDFPrefix
	if class == classify.NativeText {
		destPrefix = f.config.TextPDFPrefix
	}
	destKey := destPrefix + strings.TrimPrefix(e.Name, f.config.PagePrefix)

	if err := f.store.Put(ctx, f.config.Bucket, destKey, data, "application/pdf"); err != nil {
		return fmt.Errorf("failed to copy page to %s: %w", destKey, err)
	}
	logCtx.Info("Classified page.", "class", string(class), "destination", destKey)
	return nil
}
