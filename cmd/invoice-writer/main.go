package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/receiptflow/internal/gcp"
	"github.com/Lllllllleong/receiptflow/internal/models"
	"github.com/Lllllllleong/receiptflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	persistenceInstance *services.PersistenceFunction
	once                sync.Once
	initErr             error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by the push subscription on the extraction topic.
	functions.CloudEvent("PersistInvoice", persistInvoice)
}

func main() {
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

func newPersistence(ctx context.Context) (*services.PersistenceFunction, error) {
	config, err := services.LoadPersistenceConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	firestoreClient, err := gcp.NewFirestoreClient(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}
	slog.Info("Invoice writer initialized.", "collection", config.Collection)
	return services.NewPersistence(gcp.NewFirestoreWriter(firestoreClient, config.Collection)), nil
}

// persistInvoice is the Cloud Function entry point. It acknowledges every delivery it
// could handle; per-message failures are in the logs, not in the return value.
func persistInvoice(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		persistenceInstance, initErr = newPersistence(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	msgs, err := models.DecodePushMessages(e.Data())
	if err != nil {
		slog.Error("Invalid event structure", "error", err, "eventId", e.ID())
		return nil
	}

	persistenceInstance.Process(ctx, msgs)
	return nil
}
