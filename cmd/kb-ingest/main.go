package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/services"
)

var (
	ingestInstance *services.KBIngestFunction
	once           sync.Once
	initErr        error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleKBIngest", handleKBIngest)
}

// main is required by the Go Functions Framework.
func main() {}

// handleKBIngest is the HTTP handler the ingestion workflow invokes for
// each merged document.
func handleKBIngest(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		ingestInstance, initErr = services.NewKBIngestFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: KB ingest initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.KBIngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.DocumentID) == "" {
		http.Error(w, "Bad Request: missing 'documentId'", http.StatusBadRequest)
		return
	}

	res, err := ingestInstance.Process(r.Context(), &req)
	if err != nil {
		slog.Error("Knowledge base ingestion failed", "documentId", req.DocumentID, "error", err)
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "documentId", req.DocumentID)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
