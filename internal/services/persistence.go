package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/receiptflow/internal/gcp"
	"github.com/Lllllllleong/receiptflow/internal/models"
)

// PersistenceConfig holds configuration for the persistence stage.
type PersistenceConfig struct {
	ProjectID  string
	Collection string
}

// LoadPersistenceConfig loads and validates all necessary environment variables for this stage.
func LoadPersistenceConfig() (*PersistenceConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	collection := gcp.GetEnv("INVOICE_COLLECTION", "")
	if collection == "" {
		return nil, fmt.Errorf("INVOICE_COLLECTION environment variable must be set")
	}
	return &PersistenceConfig{ProjectID: projectID, Collection: collection}, nil
}

// PersistenceFunction stores queued extraction results as flat invoice records.
type PersistenceFunction struct {
	writer RecordWriter
}

// NewPersistence creates a new PersistenceFunction instance.
func NewPersistence(writer RecordWriter) *PersistenceFunction {
	return &PersistenceFunction{writer: writer}
}

// Process stores each message independently. Failures are logged per message and never
// stop the rest of the batch; redelivery of failed messages is left to the queue.
func (f *PersistenceFunction) Process(ctx context.Context, msgs []models.QueueMessage) BatchReport {
	var report BatchReport
	if len(msgs) == 0 {
		slog.Error("No records found in the event.")
		return report
	}

	for _, msg := range msgs {
		logCtx := slog.With("messageId", msg.MessageID)
		report.add(guard(msg.MessageID, logCtx, func() Outcome {
			return f.persistOne(ctx, logCtx, msg)
		}))
	}

	slog.Info("Processing complete.", "report", report)
	return report
}

func (f *PersistenceFunction) persistOne(ctx context.Context, logCtx *slog.Logger, msg models.QueueMessage) Outcome {
	if msg.MessageID == "" {
		serr := dataError(KindMalformedEvent, errors.New("queue message has no message id"))
		logCtx.Error("Missing key in data structure.", serr.logAttrs()...)
		return failed(msg.MessageID, serr)
	}

	extraction, err := models.ParseExtraction(string(msg.Body))
	if err != nil {
		serr := dataError(KindParse, err)
		logCtx.Error("Failed to parse JSON.", serr.logAttrs()...)
		return failed(msg.MessageID, serr)
	}

	rec := models.Flatten(msg.MessageID, extraction.Result)
	if err := f.writer.Put(ctx, rec); err != nil {
		serr := dependencyError(KindTableWrite, err)
		logCtx.Error("Failed to write invoice record.", serr.logAttrs()...)
		return failed(msg.MessageID, serr)
	}

	logCtx.Info("Successfully inserted item.", "id", rec.ID)
	return processed(msg.MessageID)
}
