package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/documentpreview/internal/services"
)

var (
	registrarInstance *services.RegistrarFunction
	once              sync.Once
	initErr           error
)

func init() {
	// Register the CloudEvent function. The framework will handle routing the event here.
	functions.CloudEvent("RegisterDocument", registerDocument)
}

// main is required by the Go Functions Framework.
func main() {}

// registerDocument is the Cloud Function entry point for GCS finalize events.
func registerDocument(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		registrarInstance, initErr = services.NewRegistrar(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Returning the error marks the invocation as failed so the event is retried.
	return registrarInstance.Process(ctx, gcsEvent)
}
