package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/ocr"
)

// OCRExtractorConfig holds configuration for the ocr-extractor stage.
type OCRExtractorConfig struct {
	Bucket         string
	ScanPDFPrefix  string
	TextPagePrefix string
	DPI            float64
}

// OCRExtractorFunction rasterizes scanned pages and recognizes their text
// with the configured engine, writing markdown page outputs.
type OCRExtractorFunction struct {
	store      blob.Store
	engine     ocr.Engine
	rasterizer ocr.Rasterizer
	config     OCRExtractorConfig
}

// NewOCRExtractor creates an OCRExtractorFunction with explicit
// dependencies.
func NewOCRExtractor(store blob.Store, engine ocr.Engine, rasterizer ocr.Rasterizer, cfg OCRExtractorConfig) *OCRExtractorFunction {
	return &OCRExtractorFunction{store: store, engine: engine, rasterizer: rasterizer, config: cfg}
}

// NewOCRExtractorFromEnv wires the stage from the environment. An unknown
// OCR_ENGINE selector fails here, at startup, never at record time. The
// rasterizer is passed in because rendering is a host capability, not
// configuration.
func NewOCRExtractorFromEnv(ctx context.Context, rasterizer ocr.Rasterizer) (*OCRExtractorFunction, error) {
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := OCRExtractorConfig{
		Bucket:         bucket,
		ScanPDFPrefix:  config.Prefix("PDF_SCAN_PAGE_PREFIX", "pdf-scan-pages/"),
		TextPagePrefix: config.Prefix("TEXT_PAGE_PREFIX", "text-pages/"),
		DPI:            float64(config.Int("DPI", 300)),
	}

	engineName := config.Getenv("OCR_ENGINE", "easyocr")
	engine, err := ocr.New(engineName, ocr.Config{
		Endpoints: map[string]string{
			"easyocr":   config.Getenv("EASYOCR_ENDPOINT", ""),
			"paddleocr": config.Getenv("PADDLEOCR_ENDPOINT", ""),
			"trocr":     config.Getenv("TROCR_ENDPOINT", ""),
			"docling":   config.Getenv("DOCLING_ENDPOINT", ""),
		},
	})
	if err != nil {
		return nil, err
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("OCR extractor initialized.", "engine", engine.Name(), "dpi", cfg.DPI)
	return NewOCRExtractor(store, engine, rasterizer, cfg), nil
}

// Process runs OCR on each scanned page in the batch independently.
func (f *OCRExtractorFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		if err := f.processRecord(ctx, record); err != nil {
			slog.Error("Failed to run OCR on page", "gcsBucket", record.Bucket, "gcsObject", record.Name, "error", err)
		}
	}
	return models.OK("OCR extractor executed")
}

func (f *OCRExtractorFunction) processRecord(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.config.Bucket || !strings.HasPrefix(e.Name, f.config.ScanPDFPrefix) {
		logCtx.Info("Object outside OCR extractor scope. Skipping.")
		return nil
	}
	page := models.PageIndexFromKey(e.Name)
	if page == 0 {
		logCtx.Info("Not a page object. Skipping.")
		return nil
	}
	documentID := models.DocumentIDFromKey(e.Name, f.config.ScanPDFPrefix)
	logCtx = logCtx.With("documentId", documentID, "page", page)

	data, err := f.store.Get(ctx, e.Bucket, e.Name)
	if err != nil {
		return fmt.Errorf("failed to read page: %w", err)
	}

	image, err := f.rasterizer.PageImage(data, f.config.DPI)
	if err != nil {
		return fmt.Errorf("failed to rasterize page %d of %s: %w", page, documentID, err)
	}

	result, err := f.engine.Recognize(ctx, image)
	if err != nil {
		return fmt.Errorf("ocr failed for page %d of %s: %w", page, documentID, err)
	}

	markdown := ocr.PageMarkdown(page, ocr.PostProcess(result.Text))
	destKey := models.PageOutputKey(f.config.TextPagePrefix, documentID, page, "md")
	if err := f.store.Put(ctx, f.config.Bucket, destKey, []byte(markdown), "text/markdown"); err != nil {
		return fmt.Errorf("failed to write page output %s: %w", destKey, err)
	}

	logCtx.Info("Page recognized.", "engine", f.engine.Name(), "confidence", result.Confidence, "gcsOutput", destKey)
	return nil
}
