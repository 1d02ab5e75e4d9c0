package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/Lllllllleong/receiptflow/internal/models"
)

// SubjectAttribute carries the notification subject on published messages.
const SubjectAttribute = "subject"

// NewPubSubClient creates a Pub/Sub client for the given project ID.
func NewPubSubClient(ctx context.Context, projectID string) (*pubsub.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a pubsub client")
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return client, nil
}

// PubSubQueue sends extraction results to the topic whose push subscription feeds the invoice writer.
type PubSubQueue struct {
	topic *pubsub.Topic
}

func NewPubSubQueue(client *pubsub.Client, topicID string) *PubSubQueue {
	return &PubSubQueue{topic: client.Topic(topicID)}
}

// Send publishes body unchanged and waits for the server-assigned message ID.
func (q *PubSubQueue) Send(ctx context.Context, body []byte) (string, error) {
	id, err := q.topic.Publish(ctx, &pubsub.Message{Data: body}).Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", q.topic.ID(), err)
	}
	return id, nil
}

// PubSubTopic publishes plain-text notifications. Subscribers (email and others) hang off the topic.
type PubSubTopic struct {
	topic *pubsub.Topic
}

func NewPubSubTopic(client *pubsub.Client, topicID string) *PubSubTopic {
	return &PubSubTopic{topic: client.Topic(topicID)}
}

func (t *PubSubTopic) Publish(ctx context.Context, msg models.NotificationMessage) error {
	res := t.topic.Publish(ctx, &pubsub.Message{
		Data:       []byte(msg.Body),
		Attributes: map[string]string{SubjectAttribute: msg.Subject},
	})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", t.topic.ID(), err)
	}
	return nil
}
