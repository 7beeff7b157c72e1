package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/docstate"
	"github.com/pagemill/pagemill/internal/manifest"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"
)

// PDFSplitterConfig holds configuration for the pdf-splitter stage.
type PDFSplitterConfig struct {
	Bucket       string
	PDFRawPrefix string
	PagePrefix   string
}

// PDFSplitterFunction splits a raw PDF into single-page objects and
// writes the split manifest last, so downstream stages only ever see a
// manifest whose pages all exist.
type PDFSplitterFunction struct {
	store    blob.Store
	tracker  *manifest.Tracker
	registry docstate.Registry
	config   PDFSplitterConfig
}

// NewPDFSplitter creates a PDFSplitterFunction with explicit dependencies.
func NewPDFSplitter(store blob.Store, registry docstate.Registry, cfg PDFSplitterConfig) *PDFSplitterFunction {
	return &PDFSplitterFunction{
		store:    store,
		tracker:  manifest.NewTracker(store, cfg.Bucket, cfg.PagePrefix),
		registry: registry,
		config:   cfg,
	}
}

// NewPDFSplitterFromEnv wires the stage from the environment.
func NewPDFSplitterFromEnv(ctx context.Context) (*PDFSplitterFunction, error) {
	projectID := config.Getenv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := PDFSplitterConfig{
		Bucket:       bucket,
		PDFRawPrefix: config.Prefix("PDF_RAW_PREFIX", "pdf-raw/"),
		PagePrefix:   config.Prefix("PDF_PAGE_PREFIX", "pdf-pages/"),
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}
	registry, err := docstate.NewFirestore(ctx, projectID, config.Getenv("FIRESTORE_COLLECTION", "documents"))
	if err != nil {
		return nil, err
	}

	slog.Info("PDF splitter initialized.", "bucket", cfg.Bucket, "pagePrefix", cfg.PagePrefix)
	return NewPDFSplitter(store, registry, cfg), nil
}

// Process splits each raw PDF in the batch independently.
func (f *PDFSplitterFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		if err := f.processRecord(ctx, record); err != nil {
			slog.Error("Failed to split PDF", "gcsBucket", record.Bucket, "gcsObject", record.Name, "error", err)
		}
	}
	return models.OK("PDF splitter executed")
}

func (f *PDFSplitterFunction) processRecord(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.config.Bucket || !strings.HasPrefix(e.Name, f.config.PDFRawPrefix) {
		logCtx.Info("Object outside splitter scope. Skipping.")
		return nil
	}
	if strings.ToLower(path.Ext(e.Name)) != ".pdf" {
		logCtx.Info("Not a PDF object. Skipping.")
		return nil
	}
	documentID := models.DocumentIDFromKey(e.Name, f.config.PDFRawPrefix)
	logCtx = logCtx.With("documentId", documentID)
	logCtx.Info("Processing new raw PDF.")

	tempDir, err := os.MkdirTemp("", "pdf-splitter-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePdfPath := filepath.Join(tempDir, "source.pdf")
	if err := f.store.Download(ctx, e.Bucket, e.Name, sourcePdfPath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(sourcePdfPath)
	if err != nil {
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)
	f.logDuplicates(ctx, logCtx, documentID, fileHash)

	doc := models.Document{
		DocumentID:       documentID,
		FileHash:         fileHash,
		OriginalFilename: path.Base(e.Name),
		Status:           docstate.StatusValidating,
		CreatedAt:        time.Now(),
	}
	if err := f.registry.Put(ctx, doc); err != nil {
		logCtx.Error("Failed to create status record", "error", err)
		return err
	}

	optimizedPdfPath := filepath.Join(tempDir, "optimized.pdf")
	pageCount, err := f.optimizeAndSplit(ctx, logCtx, documentID, sourcePdfPath, optimizedPdfPath)
	if err != nil {
		return err
	}

	if err := f.uploadSplitPages(ctx, logCtx, documentID, optimizedPdfPath, pageCount); err != nil {
		return err
	}

	// The manifest is the completion signal, so it goes last. A failure
	// anywhere above leaves page objects without a manifest, which the
	// combiner ignores.
	created, err := f.tracker.Write(ctx, models.Manifest{DocumentID: documentID, Pages: pageCount})
	if err != nil {
		return f.handleError(ctx, logCtx, documentID, "failed to write manifest", err)
	}
	if !created {
		logCtx.Info("Manifest already exists. Pages re-uploaded idempotently.")
	}

	logCtx.Info("Split complete.", "pageCount", pageCount)
	return nil
}

// logDuplicates reports other documents with the same content hash.
// Duplicates are informational: reruns of the same object must stay
// idempotent, so nothing is skipped.
func (f *PDFSplitterFunction) logDuplicates(ctx context.Context, logCtx *slog.Logger, documentID, fileHash string) {
	ids, err := f.registry.FindByHash(ctx, fileHash)
	if err != nil {
		logCtx.Warn("Failed to check for duplicate content.", "error", err)
		return
	}
	var others []string
	for _, id := range ids {
		if id != documentID {
			others = append(others, id)
		}
	}
	if len(others) > 0 {
		logCtx.Info("Duplicate content detected.", "existingDocumentIds", others)
	}
}

func (f *PDFSplitterFunction) optimizeAndSplit(ctx context.Context, logCtx *slog.Logger, documentID, source, optimized string) (int, error) {
	if err := optimizePDF(source, optimized); err != nil {
		return 0, f.handleError(ctx, logCtx, documentID, "source failed PDF validation",
			fmt.Errorf("%w: %v", ErrMalformedSource, err))
	}
	pageCount, err := api.PageCountFile(optimized)
	if err != nil {
		return 0, f.handleError(ctx, logCtx, documentID, "failed to get page count", err)
	}
	if err := api.SplitFile(optimized, filepath.Dir(optimized), 1, nil); err != nil {
		return 0, f.handleError(ctx, logCtx, documentID, "failed to split PDF", err)
	}
	if err := f.registry.SetSplitting(ctx, documentID, pageCount); err != nil {
		logCtx.Warn("Failed to update document status.", "status", docstate.StatusSplitting, "error", err)
	}
	logCtx.Info("PDF optimized and split locally.", "pageCount", pageCount)
	return pageCount, nil
}

func (f *PDFSplitterFunction) uploadSplitPages(ctx context.Context, logCtx *slog.Logger, documentID, optimizedPdfPath string, pageCount int) error {
	logCtx.Info("Starting concurrent upload of pages.", "pageCount", pageCount)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)

	splitFileBase := strings.TrimSuffix(optimizedPdfPath, filepath.Ext(optimizedPdfPath))

	for i := 1; i <= pageCount; i++ {
		pageNumber := i
		localSplitFilePath := fmt.Sprintf("%s_%d.pdf", splitFileBase, pageNumber)
		destKey := models.PageKey(f.config.PagePrefix, documentID, pageNumber)

		eg.Go(func() error {
			if err := f.store.UploadFile(gctx, f.config.Bucket, destKey, localSplitFilePath, "application/pdf"); err != nil {
				return fmt.Errorf("page %d: %w", pageNumber, err)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return f.handleError(ctx, logCtx, documentID, "one or more pages failed to upload", err)
	}
	logCtx.Info("All pages uploaded successfully.")
	return nil
}

func (f *PDFSplitterFunction) handleError(ctx context.Context, logCtx *slog.Logger, documentID, message string, originalErr error) error {
	logCtx.Error(message, "error", originalErr)
	if err := f.registry.MarkFailed(ctx, documentID, fmt.Sprintf("%s: %v", message, originalErr)); err != nil {
		logCtx.Error("CRITICAL: Failed to update document status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func optimizePDF(inPath, outPath string) error {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return api.OptimizeFile(inPath, outPath, cfg)
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
