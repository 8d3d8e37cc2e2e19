package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/documentpreview/internal/gcp"
	"github.com/Lllllllleong/documentpreview/internal/models"
	"github.com/Lllllllleong/documentpreview/internal/services"
)

var (
	previewInstance *services.PreviewFunction
	once            sync.Once
	initErr         error
)

func init() {
	// Register the HTTP functions with the framework.
	functions.HTTP("HandlePreview", handlePreview)
	functions.HTTP("HandleBatchPreview", handleBatchPreview)
	functions.HTTP("HandleClosePreview", handleClosePreview)
}

// main is required by the Go Functions Framework.
func main() {}

// instance initializes the shared service once per function instance. The
// cache and render sessions live for the lifetime of the instance.
func instance(w http.ResponseWriter) (*services.PreviewFunction, bool) {
	once.Do(func() {
		previewInstance, initErr = services.NewPreviewService(context.Background())
		if initErr == nil {
			go shutdownOnSignal(previewInstance)
		}
	})
	if initErr != nil {
		slog.Error("CRITICAL: Preview service initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return nil, false
	}
	return previewInstance, true
}

// shutdownOnSignal releases the instance's render sessions when the platform
// stops the container, then lets the signal take its default effect.
func shutdownOnSignal(f *services.PreviewFunction) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	slog.Info("Shutting down preview service...", "signal", sig.String())
	f.Shutdown()

	signal.Stop(sigChan)
	if p, err := os.FindProcess(os.Getpid()); err == nil {
		_ = p.Signal(sig)
	}
}

func handlePreview(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok {
		return
	}
	var req models.PreviewRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := f.Process(r.Context(), &req)
	respond(w, res, err)
}

func handleBatchPreview(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok {
		return
	}
	var req models.BatchPreviewRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := f.ProcessBatch(r.Context(), &req)
	respond(w, res, err)
}

func handleClosePreview(w http.ResponseWriter, r *http.Request) {
	f, ok := instance(w)
	if !ok {
		return
	}
	var req models.ClosePreviewRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := f.Close(r.Context(), &req)
	respond(w, res, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		slog.Error("Could not decode request body", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return false
	}
	return true
}

func respond(w http.ResponseWriter, res any, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, gcp.ErrDocumentNotFound):
		http.Error(w, "Not Found: "+err.Error(), http.StatusNotFound)
		return
	case err != nil:
		// The specific error is already logged inside the service.
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		slog.Error("Failed to write response", "error", err)
		http.Error(w, "Internal Server Error: failed to encode response", http.StatusInternalServerError)
	}
}
