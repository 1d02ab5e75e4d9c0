package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/receiptflow/internal/gcp"
	"github.com/Lllllllleong/receiptflow/internal/models"
	"github.com/Lllllllleong/receiptflow/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"golang.org/x/sync/errgroup"
)

var (
	ingestionInstance *services.IngestionFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by object.finalized events on the upload bucket.
	functions.CloudEvent("ExtractReceipt", extractReceipt)
}

func main() {
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

// newIngestion wires the ingestion trigger to an extraction stage backed by
// Cloud Storage, Vertex AI and the extraction queue.
func newIngestion(ctx context.Context) (*services.IngestionFunction, error) {
	config, err := services.LoadExtractionConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Clients are dialed concurrently.
	var (
		storageClient *storage.Client
		invoker       gcp.ModelInvoker
		pubsubClient  *pubsub.Client
	)
	var eg errgroup.Group
	eg.Go(func() error {
		var err error
		if storageClient, err = storage.NewClient(ctx); err != nil {
			return fmt.Errorf("failed to create storage client: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		invoker, err = gcp.NewModelInvoker(ctx, config.ProjectID, config.VertexAIRegion, config.ModelID, config.MaxTokens)
		if err != nil {
			return fmt.Errorf("failed to create model invoker: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		var err error
		pubsubClient, err = gcp.NewPubSubClient(ctx, config.ProjectID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	extraction := services.NewExtraction(
		gcp.NewStorageReader(storageClient),
		invoker,
		gcp.NewPubSubQueue(pubsubClient, config.QueueTopic),
	)
	slog.Info("Receipt extractor initialized.", "modelId", config.ModelID, "queueTopic", config.QueueTopic)
	return services.NewIngestion(services.LoadIngestionConfig(), extraction), nil
}

// extractReceipt is the Cloud Function entry point.
func extractReceipt(ctx context.Context, e cloudevents.Event) error {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		ingestionInstance, initErr = newIngestion(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	refs, err := models.DecodeObjectEvents(e.Data())
	if err != nil {
		// Redelivering an undecodable event cannot help, so it is dropped.
		slog.Error("Invalid event structure", "error", err, "eventId", e.ID(), "data", string(e.Data()))
		return nil
	}

	report := ingestionInstance.Process(ctx, refs)
	slog.Info("Storage event handled.", "eventId", e.ID(), "report", report)
	return nil
}
