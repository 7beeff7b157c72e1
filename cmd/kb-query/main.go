package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/pagemill/pagemill/internal/models"
	"github.com/pagemill/pagemill/internal/services"
)

var (
	queryInstance *services.KBQueryFunction
	once          sync.Once
	initErr       error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleKBQuery", handleKBQuery)
}

// main is required by the Go Functions Framework.
func main() {}

// handleKBQuery is the HTTP handler for knowledge base questions.
func handleKBQuery(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		queryInstance, initErr = services.NewKBQueryFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: KB query initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.KBQueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := queryInstance.Process(r.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrMissingQuery) {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Knowledge base query failed", "error", err)
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "query", req.Query)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
