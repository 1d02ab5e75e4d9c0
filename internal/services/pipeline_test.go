package services

import (
	"context"
	"strings"
	"testing"

	"github.com/Lllllllleong/receiptflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// pipeline wires all four stages over in-memory collaborators.
type pipeline struct {
	store     *testObjectStore
	model     *testModel
	queue     *testQueue
	table     *testTable
	publisher *publisherMock

	ingestion    *IngestionFunction
	persistence  *PersistenceFunction
	notification *NotificationFunction
}

func newPipeline(modelResponse string) *pipeline {
	p := &pipeline{
		store: &testObjectStore{objects: map[string][]byte{
			"uploads/invoice123.png": []byte("receipt"),
			"uploads/photo.png":      []byte("holiday"),
			"uploads/notes.txt":      []byte("text"),
		}},
		model:     &testModel{response: modelResponse},
		queue:     &testQueue{},
		table:     newTestTable(),
		publisher: &publisherMock{},
	}
	extraction := NewExtraction(p.store, p.model, p.queue)
	p.ingestion = NewIngestion(IngestionConfig{ImageSuffixes: []string{".png"}}, extraction)
	p.persistence = NewPersistence(p.table)
	p.notification = NewNotification("", p.publisher)
	return p
}

// run uploads keys and pushes everything downstream until the feed is drained.
func (p *pipeline) run(t *testing.T, keys ...string) {
	ctx := context.Background()
	refs := make([]models.ObjectRef, 0, len(keys))
	for _, key := range keys {
		refs = append(refs, models.ObjectRef{Bucket: "uploads", Key: key})
	}
	p.ingestion.Process(ctx, refs)

	if msgs := p.queue.drain(); len(msgs) > 0 {
		p.persistence.Process(ctx, msgs)
	}
	if len(p.table.feed) > 0 {
		_, err := p.notification.Process(ctx, p.table.feed)
		require.NoError(t, err)
		p.table.feed = nil
	}
}

func TestPipeline_ReceiptReachesSubscribers(t *testing.T) {
	p := newPipeline(receiptJSON)
	p.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	p.run(t, "invoice123.png")

	require.Len(t, p.table.records, 1)
	for id, rec := range p.table.records {
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, "R-001", rec.ReceiptNumber)
		assert.Equal(t, "Klinik Sejahtera", rec.MedicalInstitution)
	}
	p.publisher.AssertNumberOfCalls(t, "Publish", 1)
	p.publisher.AssertCalled(t, "Publish", mock.Anything, mock.MatchedBy(func(msg models.NotificationMessage) bool {
		return msg.Subject == DefaultNotificationSubject && strings.Contains(msg.Body, "R-001")
	}))
}

func TestPipeline_NonReceiptProducesNothing(t *testing.T) {
	p := newPipeline("{}")

	p.run(t, "photo.png")

	assert.Len(t, p.model.requests, 1)
	assert.Empty(t, p.table.records)
	p.publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPipeline_NonImageNeverReachesModel(t *testing.T) {
	p := newPipeline(receiptJSON)

	p.run(t, "notes.txt")

	assert.Zero(t, p.store.reads)
	assert.Empty(t, p.model.requests)
	assert.Empty(t, p.table.records)
}

func TestPipeline_SameImageTwiceYieldsTwoRecords(t *testing.T) {
	p := newPipeline(receiptJSON)
	p.publisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	p.run(t, "invoice123.png")
	p.run(t, "invoice123.png")

	assert.Len(t, p.table.records, 2)
	p.publisher.AssertNumberOfCalls(t, "Publish", 2)
}
