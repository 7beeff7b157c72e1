package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/ocr/raster"
	"github.com/pagemill/pagemill/internal/services"

	// Linking the in-process engine makes OCR_ENGINE=tesseract available.
	_ "github.com/pagemill/pagemill/internal/ocr/tesseract"
)

var (
	extractorInstance *services.OCRExtractorFunction
	once              sync.Once
	initErr           error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("RecognizeScannedPage", recognizeScannedPage)
}

// main is required by the Go Functions Framework.
func main() {}

// recognizeScannedPage is the CloudEvent entry point for scanned pages.
func recognizeScannedPage(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		extractorInstance, initErr = services.NewOCRExtractorFromEnv(context.Background(), raster.Fitz{})
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var event models.StorageEvent
	if err := json.Unmarshal(e.Data(), &event); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	extractorInstance.Process(ctx, models.Batch(event))
	return nil
}
