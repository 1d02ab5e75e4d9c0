package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/receiptflow/internal/models"
)

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
// It centralizes client creation for all services.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreWriter stores invoice records in one collection, document ID = record ID.
type FirestoreWriter struct {
	collection *firestore.CollectionRef
}

func NewFirestoreWriter(client *firestore.Client, collection string) *FirestoreWriter {
	return &FirestoreWriter{collection: client.Collection(collection)}
}

// Put writes the record, replacing any document that already has its ID.
func (w *FirestoreWriter) Put(ctx context.Context, rec models.InvoiceRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("invoice record has no id")
	}
	if _, err := w.collection.Doc(rec.ID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to write invoice %s: %w", rec.ID, err)
	}
	return nil
}
