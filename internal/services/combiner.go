package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/docstate"
	"github.com/pagemill/pagemill/internal/manifest"
	"github.com/pagemill/pagemill/internal/models"
)

// CombinerConfig holds configuration for the combiner stage.
type CombinerConfig struct {
	Bucket         string
	PagePrefix     string // where split pages and manifests live
	TextPagePrefix string // where per-page outputs arrive
	TextDocPrefix  string // where the merged document is written
}

// CombinerFunction assembles per-page extraction outputs into one merged
// document per source. It is triggered by every page-output write and
// no-ops until the document is complete, so no coordination beyond the
// manifest is needed.
type CombinerFunction struct {
	store    blob.Store
	tracker  *manifest.Tracker
	registry docstate.Registry
	config   CombinerConfig
}

// pageOutputExtensions is the probe order per page index. Structured
// output wins over OCR markdown when both exist for the same page.
var pageOutputExtensions = []string{"json", "md"}

// NewCombiner creates a CombinerFunction with explicit dependencies.
func NewCombiner(store blob.Store, registry docstate.Registry, cfg CombinerConfig) *CombinerFunction {
	return &CombinerFunction{
		store:    store,
		tracker:  manifest.NewTracker(store, cfg.Bucket, cfg.PagePrefix),
		registry: registry,
		config:   cfg,
	}
}

// NewCombinerFromEnv wires the stage from the environment.
func NewCombinerFromEnv(ctx context.Context) (*CombinerFunction, error) {
	projectID := config.Getenv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := CombinerConfig{
		Bucket:         bucket,
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

	slog.Info("Combiner initialized.", "bucket", cfg.Bucket, "textPagePrefix", cfg.TextPagePrefix)
	return NewCombiner(store, registry, cfg), nil
}

// Process evaluates the combine condition for every document touched by
// the batch. Failures are per-record: logged and skipped.
func (f *CombinerFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		logCtx := slog.With("gcsBucket", record.Bucket, "gcsObject", record.Name)
		if record.Bucket != f.config.Bucket || !strings.HasPrefix(record.Name, f.config.TextPagePrefix) {
			logCtx.Info("Object outside combiner scope. Skipping.")
			continue
		}
		documentID := models.DocumentIDFromKey(record.Name, f.config.TextPagePrefix)
		if documentID == "" {
			logCtx.Warn("Could not derive document ID from object key. Skipping.")
			continue
		}
		if err := f.CombineDocument(ctx, documentID); err != nil {
			logCtx.Error("Combine evaluation failed", "documentId", documentID, "error", err)
		}
	}
	return models.OK("Combiner executed")
}

// CombineDocument runs one combine evaluation. It merges the document
// when every page output exists and does nothing otherwise. The office
// extractor calls it directly after writing its manifest.
func (f *CombinerFunction) CombineDocument(ctx context.Context, documentID string) error {
	logCtx := slog.With("documentId", documentID)

	m, err := f.tracker.Read(ctx, documentID)
	if errors.Is(err, blob.ErrNotFound) {
		logCtx.Info("No manifest yet. Document is still splitting.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	keys := make([]string, 0, m.Pages)
	for page := 1; page <= m.Pages; page++ {
		key, err := f.findPageOutput(ctx, documentID, page)
		if err != nil {
			return err
		}
		if key == "" {
			logCtx.Info("Waiting for page.", "page", page, "pageCount", m.Pages)
			f.setStatus(ctx, logCtx, documentID, docstate.StatusExtracting)
			return nil
		}
		keys = append(keys, key)
	}

	merged := models.MergedDocument{
		DocumentID: documentID,
		Type:       m.DocType(),
		PageCount:  m.Pages,
		Pages:      make([]any, 0, m.Pages),
	}
	for _, key := range keys {
		content, err := f.readPageOutput(ctx, key)
		if err != nil {
			return err
		}
		merged.Pages = append(merged.Pages, content)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("failed to marshal merged document: %w", err)
	}
	destKey := models.MergedDocKey(f.config.TextDocPrefix, documentID)
	created, err := f.store.PutIfAbsent(ctx, f.config.Bucket, destKey, data, "application/json")
	if err != nil {
		return fmt.Errorf("failed to write merged document: %w", err)
	}
	if !created {
		logCtx.Info("Merged document already exists. Nothing to do.", "gcsObject", destKey)
		// Repeat the status write so a redelivered event cannot leave a
		// completed document showing EXTRACTING.
		f.setStatus(ctx, logCtx, documentID, docstate.StatusComplete)
		return nil
	}

	logCtx.Info("Merged document written.", "gcsObject", destKey, "pageCount", m.Pages)
	f.setStatus(ctx, logCtx, documentID, docstate.StatusComplete)
	return nil
}

// findPageOutput returns the key of the page's output object, or "" when
// the page has not been extracted yet.
func (f *CombinerFunction) findPageOutput(ctx context.Context, documentID string, page int) (string, error) {
	for _, ext := range pageOutputExtensions {
		key := models.PageOutputKey(f.config.TextPagePrefix, documentID, page, ext)
		ok, err := f.store.Exists(ctx, f.config.Bucket, key)
		if err != nil {
			return "", fmt.Errorf("failed to probe %s: %w", key, err)
		}
		if ok {
			return key, nil
		}
	}
	return "", nil
}

// readPageOutput loads one page output: .json objects are embedded as
// parsed JSON, .md objects as a plain string.
func (f *CombinerFunction) readPageOutput(ctx context.Context, key string) (any, error) {
	data, err := f.store.Get(ctx, f.config.Bucket, key)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(key, ".json") {
		var content any
		if err := json.Unmarshal(data, &content); err != nil {
			return nil, fmt.Errorf("failed to parse page output %s: %w", key, err)
		}
		return content, nil
	}
	return string(data), nil
}

// setStatus records the document status. Status writes are observability,
// so failures are logged and the combine continues.
func (f *CombinerFunction) setStatus(ctx context.Context, logCtx *slog.Logger, documentID, status string) {
	if err := f.registry.SetStatus(ctx, documentID, status); err != nil {
		logCtx.Warn("Failed to update document status.", "status", status, "error", err)
	}
}
