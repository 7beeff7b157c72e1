package services

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/classify"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/models"
)

// IntakeClassifierConfig holds configuration for the intake-classifier
// stage.
type IntakeClassifierConfig struct {
	Bucket       string
	RawPrefix    string
	PDFRawPrefix string
	OfficePrefix string
}

// IntakeClassifierFunction routes raw uploads to the pipeline path that
// can process them: PDFs to the splitter, office documents to the office
// extractor. Anything else is logged and left where it is.
type IntakeClassifierFunction struct {
	store  blob.Store
	config IntakeClassifierConfig
}

// contentTypes maps the accepted upload extensions to the content type
// written at the destination.
var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// officeExtensions are the formats handled by the office extractor.
var officeExtensions = map[string]bool{
	".docx": true,
	".pptx": true,
	".xlsx": true,
}

// NewIntakeClassifier creates an IntakeClassifierFunction with explicit
// dependencies.
func NewIntakeClassifier(store blob.Store, cfg IntakeClassifierConfig) *IntakeClassifierFunction {
	return &IntakeClassifierFunction{store: store, config: cfg}
}

// NewIntakeClassifierFromEnv wires the stage from the environment.
func NewIntakeClassifierFromEnv(ctx context.Context) (*IntakeClassifierFunction, error) {
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := IntakeClassifierConfig{
		Bucket:       bucket,
		RawPrefix:    config.Prefix("RAW_PREFIX", "raw-docs/"),
		PDFRawPrefix: config.Prefix("PDF_RAW_PREFIX", "pdf-raw/"),
		OfficePrefix: config.Prefix("OFFICE_PREFIX", "office-docs/"),
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}

	slog.Info("Intake classifier initialized.", "bucket", cfg.Bucket, "rawPrefix", cfg.RawPrefix)
	return NewIntakeClassifier(store, cfg), nil
}

// Process routes each uploaded object in the batch independently.
func (f *IntakeClassifierFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		if err := f.processRecord(ctx, record); err != nil {
			slog.Error("Failed to route upload", "gcsBucket", record.Bucket, "gcsObject", record.Name, "error", err)
		}
	}
	return models.OK("Intake classifier executed")
}

func (f *IntakeClassifierFunction) processRecord(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.config.Bucket || !strings.HasPrefix(e.Name, f.config.RawPrefix) {
		logCtx.Info("Object outside intake scope. Skipping.")
		return nil
	}

	base := path.Base(e.Name)
	ext := strings.ToLower(path.Ext(base))

	var destPrefix string
	switch {
	case ext == ".pdf":
		destPrefix = f.config.PDFRawPrefix
	case officeExtensions[ext]:
		destPrefix = f.config.OfficePrefix
	default:
		logCtx.Info("Unsupported upload type. Skipping.", "extension", ext)
		return nil
	}

	data, err := f.store.Get(ctx, e.Bucket, e.Name)
	if err != nil {
		return fmt.Errorf("failed to read upload: %w", err)
	}

	// Every PDF takes the split path; the probe result is informational.
	// Per-page classification downstream decides native versus OCR.
	if ext == ".pdf" {
		class, probeErr := classify.Page(data)
		if probeErr != nil {
			logCtx.Warn("Probe of uploaded PDF failed.", "error", probeErr)
		}
		logCtx.Info("Probed uploaded PDF.", "class", string(class))
	}

	destKey := destPrefix + base
	if err := f.store.Put(ctx, f.config.Bucket, destKey, data, contentTypes[ext]); err != nil {
		return fmt.Errorf("failed to copy upload to %s: %w", destKey, err)
	}
	logCtx.Info("Routed upload.", "destination", destKey)
	return nil
}
