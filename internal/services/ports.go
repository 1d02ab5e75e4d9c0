package services

import (
	"context"

	"github.com/Lllllllleong/receiptflow/internal/models"
)

// ObjectReader reads a whole object from storage.
type ObjectReader interface {
	ReadObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// ModelInvoker runs one multimodal model call and returns the model's text.
// A reply whose envelope cannot be read wraps models.ErrMalformedModelResponse.
type ModelInvoker interface {
	Invoke(ctx context.Context, req models.ModelRequest) (string, error)
}

// QueueSender enqueues an extraction result and returns the queue's message ID.
type QueueSender interface {
	Send(ctx context.Context, body []byte) (string, error)
}

// RecordWriter stores an invoice record keyed by its ID.
type RecordWriter interface {
	Put(ctx context.Context, rec models.InvoiceRecord) error
}

// TopicPublisher fans a notification out to the topic's subscribers.
type TopicPublisher interface {
	Publish(ctx context.Context, msg models.NotificationMessage) error
}

// Extractor is the extraction stage as seen by the ingestion trigger.
type Extractor interface {
	Process(ctx context.Context, ref models.ObjectRef) Outcome
}
