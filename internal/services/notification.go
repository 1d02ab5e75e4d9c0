package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/receiptflow/internal/gcp"
	"github.com/Lllllllleong/receiptflow/internal/models"
)

// DefaultNotificationSubject is the subject line of every invoice notification.
const DefaultNotificationSubject = "New Invoice Notification"

// NotificationConfig holds configuration for the notification stage.
type NotificationConfig struct {
	ProjectID string
	Topic     string
	Subject   string
}

// LoadNotificationConfig loads and validates all necessary environment variables for this stage.
func LoadNotificationConfig() (*NotificationConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	topic := gcp.GetEnv("NOTIFICATION_TOPIC", "")
	if topic == "" {
		return nil, fmt.Errorf("NOTIFICATION_TOPIC environment variable must be set")
	}
	return &NotificationConfig{
		ProjectID: projectID,
		Topic:     topic,
		Subject:   gcp.GetEnv("NOTIFICATION_SUBJECT", DefaultNotificationSubject),
	}, nil
}

// NotificationFunction announces newly inserted invoices on the notification topic.
type NotificationFunction struct {
	publisher TopicPublisher
	subject   string
}

// NewNotification creates a new NotificationFunction instance.
func NewNotification(subject string, publisher TopicPublisher) *NotificationFunction {
	if subject == "" {
		subject = DefaultNotificationSubject
	}
	return &NotificationFunction{publisher: publisher, subject: subject}
}

// Process publishes one notification per INSERT entry; other operations are ignored.
// A publish failure aborts the batch and is returned so the change feed redelivers it.
func (f *NotificationFunction) Process(ctx context.Context, records []models.ChangeRecord) (BatchReport, error) {
	var report BatchReport
	for _, rec := range records {
		if rec.EventName != models.ChangeInsert {
			report.add(skipped(rec.EventID))
			continue
		}

		logCtx := slog.With("eventId", rec.EventID)
		if rec.NewImage == nil {
			serr := dataError(KindMalformedEvent, errors.New("insert event carries no new image"))
			logCtx.Error("Invalid change record.", serr.logAttrs()...)
			report.add(failed(rec.EventID, serr))
			continue
		}

		msg, err := FormatNotification(f.subject, rec)
		if err != nil {
			serr := dataError(KindMalformedEvent, err)
			logCtx.Error("Failed to format notification.", serr.logAttrs()...)
			report.add(failed(rec.EventID, serr))
			continue
		}

		if err := f.publisher.Publish(ctx, msg); err != nil {
			serr := dependencyError(KindTopicPublish, err)
			logCtx.Error("Failed to publish notification.", serr.logAttrs()...)
			report.add(failed(rec.EventID, serr))
			return report, serr
		}
		logCtx.Info("Notification published.")
		report.add(processed(rec.EventID))
	}
	return report, nil
}

// FormatNotification renders the new record image as the notification body.
func FormatNotification(subject string, rec models.ChangeRecord) (models.NotificationMessage, error) {
	image, err := json.Marshal(rec.NewImage)
	if err != nil {
		return models.NotificationMessage{}, fmt.Errorf("failed to render new image: %w", err)
	}
	return models.NotificationMessage{
		Subject: subject,
		Body:    "New invoice inserted: " + string(image),
	}, nil
}
