package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/docstate"
	"github.com/pagemill/pagemill/internal/manifest"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/office"
)

// OfficeExtractorConfig holds configuration for the office-extractor
// stage.
type OfficeExtractorConfig struct {
	Bucket         string
	OfficePrefix   string
	PagePrefix     string
	TextPagePrefix string
	TextDocPrefix  string
}

// OfficeExtractorFunction turns docx, pptx, and xlsx uploads into page
// outputs. Office documents never pass through the splitter, so this
// stage writes the manifest itself and then runs the combine evaluation
// in the same invocation: the document self-completes.
type OfficeExtractorFunction struct {
	store    blob.Store
	tracker  *manifest.Tracker
	registry docstate.Registry
	combiner *CombinerFunction
	config   OfficeExtractorConfig
}

// NewOfficeExtractor creates an OfficeExtractorFunction with explicit
// dependencies.
func NewOfficeExtractor(store blob.Store, registry docstate.Registry, cfg OfficeExtractorConfig) *OfficeExtractorFunction {
	combiner := NewCombiner(store, registry, CombinerConfig{
		Bucket:         cfg.Bucket,
		PagePrefix:     cfg.PagePrefix,
		TextPagePrefix: cfg.TextPagePrefix,
		TextDocPrefix:  cfg.TextDocPrefix,
	})
	return &OfficeExtractorFunction{
		store:    store,
		tracker:  manifest.NewTracker(store, cfg.Bucket, cfg.PagePrefix),
		registry: registry,
		combiner: combiner,
		config:   cfg,
	}
}

// NewOfficeExtractorFromEnv wires the stage from the environment.
func NewOfficeExtractorFromEnv(ctx context.Context) (*OfficeExtractorFunction, error) {
	projectID := config.Getenv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := OfficeExtractorConfig{
		Bucket:         bucket,
		OfficePrefix:   config.Prefix("OFFICE_PREFIX", "office-docs/"),
		PagePrefix:     config.Prefix("PDF_PAGE_PREFIX", "pdf-pages/"),
		TextPagePrefix: config.Prefix("TEXT_PAGE_PREFIX", "text-pages/"),
		TextDocPrefix:  config.Prefix("TEXT_DOC_PREFIX", "text-docs/"),
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := docstate.NewFirestore(ctx, projectID, config.Getenv("FIRESTORE_COLLECTION", "documents"))
	if err != nil {
		return nil, err
	}

	slog.Info("Office extractor initialized.", "bucket", cfg.Bucket, "officePrefix", cfg.OfficePrefix)
	return NewOfficeExtractor(store, registry, cfg), nil
}

// Process extracts each office document in the batch independently.
func (f *OfficeExtractorFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		if err := f.processRecord(ctx, record); err != nil {
			slog.Error("Failed to extract office document", "gcsBucket", record.Bucket, "gcsObject", record.Name, "error", err)
		}
	}
	return models.OK("Office extractor executed")
}

func (f *OfficeExtractorFunction) processRecord(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.config.Bucket || !strings.HasPrefix(e.Name, f.config.OfficePrefix) {
		logCtx.Info("Object outside office extractor scope. Skipping.")
		return nil
	}

	base := path.Base(e.Name)
	ext := strings.ToLower(path.Ext(base))
	documentID := models.DocumentIDFromKey(e.Name, f.config.OfficePrefix)
	logCtx = logCtx.With("documentId", documentID)
	logCtx.Info("Processing office document.")

	doc := models.Document{
		DocumentID:       documentID,
		OriginalFilename: base,
		Status:           docstate.StatusValidating,
		CreatedAt:        time.Now(),
	}
	if err := f.registry.Put(ctx, doc); err != nil {
		logCtx.Error("Failed to create status record", "error", err)
		return err
	}

	data, err := f.store.Get(ctx, e.Bucket, e.Name)
	if err != nil {
		return f.handleError(ctx, logCtx, documentID, "failed to read office document", err)
	}

	docType, pages, err := office.Extract(data, ext)
	if err != nil {
		return f.handleError(ctx, logCtx, documentID, "failed to extract office document",
			fmt.Errorf("%w: %v", ErrMalformedSource, err))
	}
	logCtx.Info("Office document extracted.", "docType", docType, "pageCount", len(pages))

	doc.Status = docstate.StatusExtracting
	doc.DocType = docType
	doc.PageCount = len(pages)
	if err := f.registry.Put(ctx, doc); err != nil {
		logCtx.Warn("Failed to update document status.", "status", doc.Status, "error", err)
	}

	for _, page := range pages {
		payload, err := json.Marshal(page.Content)
		if err != nil {
			return f.handleError(ctx, logCtx, documentID, fmt.Sprintf("failed to marshal page %d", page.Index), err)
		}
		destKey := models.PageOutputKey(f.config.TextPagePrefix, documentID, page.Index, "json")
		if err := f.store.Put(ctx, f.config.Bucket, destKey, payload, "application/json"); err != nil {
			return f.handleError(ctx, logCtx, documentID, fmt.Sprintf("failed to write page output %s", destKey), err)
		}
	}

	// Manifest last, as in the PDF path: its presence means every page
	// output already exists.
	m := models.Manifest{DocumentID: documentID, Pages: len(pages), Type: docType}
	if _, err := f.tracker.Write(ctx, m); err != nil {
		return f.handleError(ctx, logCtx, documentID, "failed to write manifest", err)
	}

	// Page-output events for this document raced ahead of the manifest
	// and no-opped, so the completion check has to run here.
	if err := f.combiner.CombineDocument(ctx, documentID); err != nil {
		return f.handleError(ctx, logCtx, documentID, "failed to combine office document", err)
	}

	logCtx.Info("Office document processed.", "docType", docType, "pageCount", len(pages))
	return nil
}

func (f *OfficeExtractorFunction) handleError(ctx context.Context, logCtx *slog.Logger, documentID, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	if err := f.registry.MarkFailed(ctx, documentID, fmt.Sprintf("%s: %v", message, originalErr)); err != nil {
		logCtx.Error("CRITICAL: Failed to update document status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}
