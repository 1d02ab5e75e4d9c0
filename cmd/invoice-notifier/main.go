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
	notificationInstance *services.NotificationFunction
	once                 sync.Once
	initErr              error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by Firestore document events on the invoice collection.
	// The trigger must deliver application/json event data.
	functions.CloudEvent("NotifyInvoice", notifyInvoice)
}

func main() {
	port := gcp.GetEnv("PORT", "8080")
	if err := funcframework.Start(port); err != nil {
		slog.Error("Functions framework exited", "error", err)
		os.Exit(1)
	}
}

func newNotification(ctx context.Context) (*services.NotificationFunction, error) {
	config, err := services.LoadNotificationConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	pubsubClient, err := gcp.NewPubSubClient(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}
	slog.Info("Invoice notifier initialized.", "topic", config.Topic)
	return services.NewNotification(config.Subject, gcp.NewPubSubTopic(pubsubClient, config.Topic)), nil
}

// notifyInvoice is the Cloud Function entry point. Returning an error makes the
// trigger retry the event under its own retry policy.
func notifyInvoice(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		notificationInstance, initErr = newNotification(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	rec, err := models.DecodeFirestoreChange(e.ID(), e.Type(), e.Data())
	if err != nil {
		slog.Error("Invalid event structure", "error", err, "eventId", e.ID(), "eventType", e.Type(), "contentType", e.DataContentType())
		return nil
	}

	report, err := notificationInstance.Process(ctx, []models.ChangeRecord{rec})
	if err != nil {
		return err
	}
	slog.Info("Change event handled.", "eventId", e.ID(), "report", report)
	return nil
}
