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
	combinerInstance *services.CombinerFunction
	once             sync.Once
	initErr          error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("CombinePages", combinePages)
}

// main is required by the Go Functions Framework.
func main() {}

// combinePages is the CloudEvent entry point for page-output objects.
func combinePages(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		combinerInstance, initErr = services.NewCombinerFromEnv(context.Background())
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

	combinerInstance.Process(ctx, models.Batch(event))
	return nil
}
