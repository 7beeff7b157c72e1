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
	dispatcherInstance *services.OutputDispatcherFunction
	once               sync.Once
	initErr            error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("DispatchOutput", dispatchOutput)
}

// main is required by the Go Functions Framework.
func main() {}

// dispatchOutput is the CloudEvent entry point for merged documents.
func dispatchOutput(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		dispatcherInstance, initErr = services.NewOutputDispatcherFromEnv(context.Background())
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

	dispatcherInstance.Process(ctx, models.Batch(event))
	return nil
}
