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
	"github.com/pagemill/pagemill/internal/services"
)

var (
	classifierInstance *services.IntakeClassifierFunction
	once               sync.Once
	initErr            error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("ClassifyUpload", classifyUpload)
}

// main is required by the Go Functions Framework.
func main() {}

// classifyUpload is the CloudEvent entry point for raw uploads.
func classifyUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		classifierInstance, initErr = services.NewIntakeClassifierFromEnv(context.Background())
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

	// One CloudEvent carries one object. Hosts that deliver several records
	// per invocation use the batch shape directly.
	classifierInstance.Process(ctx, models.Batch(event))
	return nil
}
