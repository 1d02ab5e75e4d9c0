package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/Lllllllleong/receiptflow/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// testObjectStore implements ObjectReader over an in-memory bucket map.
type testObjectStore struct {
	objects map[string][]byte // "bucket/key" -> content
	err     error
	reads   int
}

func (s *testObjectStore) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	data, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

// testModel implements ModelInvoker with a canned answer.
type testModel struct {
	response string
	err      error
	requests []models.ModelRequest
}

func (m *testModel) Invoke(ctx context.Context, req models.ModelRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

// testQueue implements QueueSender and hands out a fresh delivery ID per message.
type testQueue struct {
	mu   sync.Mutex
	sent []models.QueueMessage
	err  error
}

func (q *testQueue) Send(ctx context.Context, body []byte) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	msg := models.QueueMessage{MessageID: uuid.NewString(), Body: append([]byte(nil), body...)}
	q.sent = append(q.sent, msg)
	return msg.MessageID, nil
}

// drain returns and clears everything sent so far.
func (q *testQueue) drain() []models.QueueMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.sent
	q.sent = nil
	return out
}

// testTable implements RecordWriter and records INSERTs on its change feed.
type testTable struct {
	records map[string]models.InvoiceRecord
	feed    []models.ChangeRecord
	failIDs map[string]error
	puts    []string
}

func newTestTable() *testTable {
	return &testTable{records: map[string]models.InvoiceRecord{}, failIDs: map[string]error{}}
}

func (tb *testTable) Put(ctx context.Context, rec models.InvoiceRecord) error {
	tb.puts = append(tb.puts, rec.ID)
	if err := tb.failIDs[rec.ID]; err != nil {
		return err
	}
	kind := models.ChangeInsert
	if _, exists := tb.records[rec.ID]; exists {
		kind = models.ChangeModify
	}
	tb.records[rec.ID] = rec
	tb.feed = append(tb.feed, models.ChangeRecord{
		EventID:   uuid.NewString(),
		EventName: kind,
		NewImage:  typedImage(rec),
	})
	return nil
}

// typedImage renders a record the way Firestore change events carry it.
func typedImage(rec models.InvoiceRecord) map[string]json.RawMessage {
	data, _ := json.Marshal(rec)
	var flat map[string]string
	_ = json.Unmarshal(data, &flat)

	image := make(map[string]json.RawMessage, len(flat))
	for key, value := range flat {
		typed, _ := json.Marshal(map[string]string{"stringValue": value})
		image[key] = typed
	}
	return image
}

// testExtractor implements Extractor and remembers what it was asked to process.
type testExtractor struct {
	refs []models.ObjectRef
}

func (e *testExtractor) Process(ctx context.Context, ref models.ObjectRef) Outcome {
	e.refs = append(e.refs, ref)
	return processed(ref.String())
}

// publisherMock implements TopicPublisher.
type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) Publish(ctx context.Context, msg models.NotificationMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
