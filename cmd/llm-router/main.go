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
	routerInstance *services.LLMRouterFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleRoutePrompt", handleRoutePrompt)
}

// main is required by the Go Functions Framework.
func main() {}

// handleRoutePrompt is the HTTP handler for the prompt routing service.
func handleRoutePrompt(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		routerInstance, initErr = services.NewLLMRouterFromEnv(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: LLM router initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	var req models.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := routerInstance.Process(r.Context(), &req)
	if err != nil {
		if errors.Is(err, services.ErrMissingPrompt) || errors.Is(err, services.ErrUnknownBackend) {
			http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Prompt routing failed", "error", err)
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err, "modelUsed", res.ModelUsed)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
