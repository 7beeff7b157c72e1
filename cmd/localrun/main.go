// localrun drives the storage pipeline end to end in one process against
// an in-memory bucket, so a document can be traced from upload to merged
// output without a cloud project. Every write to the bucket feeds a
// synthetic object-created event back into the stage loop, mirroring the
// deployed trigger topology. The run stops at merged documents; the
// dispatch and knowledge base stages need external services.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/docstate"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/ocr"
	"github.com/pagemill/pagemill/internal/ocr/raster"
	"github.com/pagemill/pagemill/internal/services"

	// In-process OCR for local runs without a recognition service.
	_ "github.com/pagemill/pagemill/internal/ocr/tesseract"
)

type runConfig struct {
	Bucket       string            `yaml:"bucket"`
	InputDir     string            `yaml:"inputDir"`
	OutputDir    string            `yaml:"outputDir"`
	OCREngine    string            `yaml:"ocrEngine"` // empty disables the OCR stage
	OCREndpoints map[string]string `yaml:"ocrEndpoints"`
	DPI          float64           `yaml:"dpi"`
}

func defaultConfig() runConfig {
	return runConfig{
		Bucket:    "pipeline",
		InputDir:  "samples",
		OutputDir: "out",
		DPI:       150,
	}
}

func loadConfig(path string) (runConfig, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if err := run(context.Background(), cfg); err != nil {
		slog.Error("Pipeline run failed", "error", err)
		os.Exit(1)
	}
}

// stage is the shared shape of every storage-triggered function.
type stage interface {
	Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response
}

// trigger binds a stage to the object prefix that fires it, mirroring the
// deployed per-prefix event filters.
type trigger struct {
	prefix string
	fn     stage
}

// eventQueue collects object-created notifications until the loop gets to
// them. Writes happen while a stage is running, so the queue grows during
// processing and the run ends when it drains.
type eventQueue struct {
	mu      sync.Mutex
	pending []models.StorageEvent
}

func (q *eventQueue) push(bucket, key string) {
	q.mu.Lock()
	q.pending = append(q.pending, models.StorageEvent{Bucket: bucket, Name: key})
	q.mu.Unlock()
}

func (q *eventQueue) pop() (models.StorageEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return models.StorageEvent{}, false
	}
	e := q.pending[0]
	q.pending = q.pending[1:]
	return e, true
}

func run(ctx context.Context, cfg runConfig) error {
	store := blob.NewMemory()
	registry := docstate.NewMemory()
	stages, err := buildStages(store, registry, cfg)
	if err != nil {
		return err
	}

	queue := &eventQueue{}
	store.Notify = queue.push

	seeded, err := seedInputs(ctx, store, cfg)
	if err != nil {
		return err
	}
	if len(seeded) == 0 {
		return fmt.Errorf("no input files in %s", cfg.InputDir)
	}

	// The cap catches a stage that re-triggers itself.
	const maxEvents = 10000
	processed := 0
	for {
		event, ok := queue.pop()
		if !ok {
			break
		}
		if processed++; processed > maxEvents {
			return fmt.Errorf("event loop did not settle after %d events", maxEvents)
		}
		for _, t := range stages {
			if strings.HasPrefix(event.Name, t.prefix) {
				t.fn.Process(ctx, models.Batch(event))
			}
		}
	}
	slog.Info("Event loop drained.", "events", processed)

	return report(ctx, store, registry, cfg, seeded)
}

func buildStages(store blob.Store, registry docstate.Registry, cfg runConfig) ([]trigger, error) {
	stages := []trigger{
		{"raw-docs/", services.NewIntakeClassifier(store, services.IntakeClassifierConfig{
			Bucket:       cfg.Bucket,
			RawPrefix:    "raw-docs/",
			PDFRawPrefix: "pdf-raw/",
			OfficePrefix: "office-docs/",
		})},
		{"pdf-raw/", services.NewPDFSplitter(store, registry, services.PDFSplitterConfig{
			Bucket:       cfg.Bucket,
			PDFRawPrefix: "pdf-raw/",
			PagePrefix:   "pdf-pages/",
		})},
		{"pdf-pages/", services.NewPageClassifier(store, services.PageClassifierConfig{
			Bucket:        cfg.Bucket,
			PagePrefix:    "pdf-pages/",
			TextPDFPrefix: "pdf-text-pages/",
			ScanPDFPrefix: "pdf-scan-pages/",
		})},
		{"pdf-text-pages/", services.NewTextExtractor(store, services.TextExtractorConfig{
			Bucket:         cfg.Bucket,
			TextPDFPrefix:  "pdf-text-pages/",
			TextPagePrefix: "text-pages/",
		})},
		{"office-docs/", services.NewOfficeExtractor(store, registry, services.OfficeExtractorConfig{
			Bucket:         cfg.Bucket,
			OfficePrefix:   "office-docs/",
			PagePrefix:     "pdf-pages/",
			TextPagePrefix: "text-pages/",
			TextDocPrefix:  "text-docs/",
		})},
		{"text-pages/", services.NewCombiner(store, registry, services.CombinerConfig{
			Bucket:         cfg.Bucket,
			PagePrefix:     "pdf-pages/",
			TextPagePrefix: "text-pages/",
			TextDocPrefix:  "text-docs/",
		})},
	}

	if cfg.OCREngine != "" {
		engine, err := ocr.New(cfg.OCREngine, ocr.Config{Endpoints: cfg.OCREndpoints})
		if err != nil {
			return nil, err
		}
		stages = append(stages, trigger{"pdf-scan-pages/", services.NewOCRExtractor(store, engine, raster.Fitz{}, services.OCRExtractorConfig{
			Bucket:         cfg.Bucket,
			ScanPDFPrefix:  "pdf-scan-pages/",
			TextPagePrefix: "text-pages/",
			DPI:            cfg.DPI,
		})})
	} else {
		slog.Info("No OCR engine configured. Scanned pages will stay pending.")
	}
	return stages, nil
}

// seedInputs uploads every file in the input directory and returns the
// document IDs they will run under.
func seedInputs(ctx context.Context, store blob.Store, cfg runConfig) ([]string, error) {
	entries, err := os.ReadDir(cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		data, err := os.ReadFile(filepath.Join(cfg.InputDir, name))
		if err != nil {
			return nil, err
		}
		if err := store.Put(ctx, cfg.Bucket, "raw-docs/"+name, data, "application/octet-stream"); err != nil {
			return nil, err
		}
		ids = append(ids, models.DocumentIDFromKey("raw-docs/"+name, "raw-docs/"))
		slog.Info("Seeded upload.", "file", name)
	}
	return ids, nil
}

// report writes merged documents to the output directory and prints one
// status line per input.
func report(ctx context.Context, store *blob.Memory, registry *docstate.Memory, cfg runConfig, ids []string) error {
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	keys, err := store.List(ctx, cfg.Bucket, "text-docs/")
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, err := store.Get(ctx, cfg.Bucket, key)
		if err != nil {
			return err
		}
		dest := filepath.Join(cfg.OutputDir, filepath.Base(key))
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return err
		}
		slog.Info("Wrote merged document.", "path", dest)
	}

	for _, id := range ids {
		doc, ok := registry.Get(id)
		if !ok {
			fmt.Printf("%-30s (not tracked; unsupported upload type?)\n", id)
			continue
		}
		line := fmt.Sprintf("%-30s %-12s pages=%d", id, doc.Status, doc.PageCount)
		if doc.ErrorDetails != "" {
			line += "  error: " + doc.ErrorDetails
		}
		fmt.Println(line)
	}
	return nil
}
