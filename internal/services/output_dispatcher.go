package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pagemill/pagemill/internal/blob"
	"github.com/pagemill/pagemill/internal/config"
	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/workflow"
)

// OutputDispatcherConfig holds configuration for the output-dispatcher
// stage.
type OutputDispatcherConfig struct {
	Bucket        string
	TextDocPrefix string
	SearchAPIURL  string
	SearchAPIKey  string
}

// OutputDispatcherFunction forwards each merged document to the
// downstream search API and launches the knowledge base ingestion
// workflow for it. Failures are logged; event redelivery is the retry.
type OutputDispatcherFunction struct {
	store      blob.Store
	launcher   workflow.Launcher
	httpClient *http.Client
	config     OutputDispatcherConfig
}

// NewOutputDispatcher creates an OutputDispatcherFunction with explicit
// dependencies. A nil httpClient gets a default with a 30-second timeout.
func NewOutputDispatcher(store blob.Store, launcher workflow.Launcher, httpClient *http.Client, cfg OutputDispatcherConfig) *OutputDispatcherFunction {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &OutputDispatcherFunction{store: store, launcher: launcher, httpClient: httpClient, config: cfg}
}

// NewOutputDispatcherFromEnv wires the stage from the environment.
func NewOutputDispatcherFromEnv(ctx context.Context) (*OutputDispatcherFunction, error) {
	projectID := config.Getenv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	bucket := config.Getenv("BUCKET_NAME", "")
	if bucket == "" {
		return nil, fmt.Errorf("BUCKET_NAME environment variable must be set")
	}

	cfg := OutputDispatcherConfig{
		Bucket:        bucket,
		TextDocPrefix: config.Prefix("TEXT_DOC_PREFIX", "text-docs/"),
		SearchAPIURL:  config.Getenv("SEARCH_API_URL", ""),
		SearchAPIKey:  config.Getenv("SEARCH_API_KEY", ""),
	}
	if cfg.SearchAPIURL == "" {
		return nil, fmt.Errorf("SEARCH_API_URL environment variable must be set")
	}

	store, err := blob.NewGCS(ctx)
	if err != nil {
		return nil, err
	}
	launcher, err := workflow.NewExecutions(ctx, projectID,
		config.Getenv("WORKFLOW_LOCATION", "us-central1"),
		config.Getenv("WORKFLOW_ID", "kb-ingestion"))
	if err != nil {
		return nil, err
	}

	slog.Info("Output dispatcher initialized.", "bucket", cfg.Bucket, "searchApiUrl", cfg.SearchAPIURL)
	return NewOutputDispatcher(store, launcher, nil, cfg), nil
}

// Process dispatches each merged document in the batch independently.
func (f *OutputDispatcherFunction) Process(ctx context.Context, batch *models.StorageEventBatch) *models.Response {
	for _, record := range batch.Records {
		if err := f.processRecord(ctx, record); err != nil {
			slog.Error("Failed to dispatch merged document", "gcsBucket", record.Bucket, "gcsObject", record.Name, "error", err)
		}
	}
	return models.OK("Output dispatcher executed")
}

func (f *OutputDispatcherFunction) processRecord(ctx context.Context, e models.StorageEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if e.Bucket != f.config.Bucket || !strings.HasPrefix(e.Name, f.config.TextDocPrefix) || !strings.HasSuffix(e.Name, ".json") {
		logCtx.Info("Object outside dispatcher scope. Skipping.")
		return nil
	}
	documentID := models.DocumentIDFromKey(e.Name, f.config.TextDocPrefix)
	logCtx = logCtx.With("documentId", documentID)

	payload, err := f.store.Get(ctx, e.Bucket, e.Name)
	if err != nil {
		return fmt.Errorf("failed to read merged document: %w", err)
	}

	if err := f.postToSearchAPI(ctx, payload); err != nil {
		return err
	}
	logCtx.Info("Merged document posted to search API.")

	executionName, err := f.launcher.Launch(ctx, models.KBIngestRequest{DocumentID: documentID})
	if err != nil {
		return fmt.Errorf("failed to launch ingestion workflow: %w", err)
	}
	logCtx.Info("Ingestion workflow launched.", "execution", executionName)
	return nil
}

func (f *OutputDispatcherFunction) postToSearchAPI(ctx context.Context, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.config.SearchAPIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build search API request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.config.SearchAPIKey != "" {
		req.Header.Set("x-api-key", f.config.SearchAPIKey)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("search API request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("search API returned %s: %.200s", resp.Status, string(body))
	}
	return nil
}
