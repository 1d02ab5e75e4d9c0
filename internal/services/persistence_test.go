package services

import (
	"context"
	"errors"
	"testing"

	"github.com/Lllllllleong/receiptflow/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestPersistence_WritesFlattenedRecordKeyedByDeliveryID(t *testing.T) {
	table := newTestTable()
	f := NewPersistence(table)

	report := f.Process(context.Background(), []models.QueueMessage{
		{MessageID: "msg-1", Body: []byte(receiptJSON)},
	})

	assert.Equal(t, 1, report.Processed())
	rec, ok := table.records["msg-1"]
	require.True(t, ok)
	assert.Equal(t, "msg-1", rec.ID)
	assert.Equal(t, "R-001", rec.ReceiptNumber)
	assert.Equal(t, "Aisyah Rahman", rec.PatientName)
	assert.Equal(t, "15.00", rec.CashCharger)
}

func TestPersistence_InvalidJSONDoesNotStopBatch(t *testing.T) {
	table := newTestTable()
	f := NewPersistence(table)

	report := f.Process(context.Background(), []models.QueueMessage{
		{MessageID: "bad", Body: []byte(`{"receiptDetails": `)},
		{MessageID: "good", Body: []byte(receiptJSON)},
	})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, KindParse, report.Outcomes[0].Err.Kind)
	assert.Equal(t, StatusProcessed, report.Outcomes[1].Status)
	assert.Equal(t, []string{"good"}, table.puts)
}

func TestPersistence_WriteFailureIsContained(t *testing.T) {
	table := newTestTable()
	table.failIDs["m1"] = status.Error(codes.ResourceExhausted, "write quota exceeded")
	f := NewPersistence(table)

	report := f.Process(context.Background(), []models.QueueMessage{
		{MessageID: "m1", Body: []byte(receiptJSON)},
		{MessageID: "m2", Body: []byte(receiptJSON)},
	})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, KindTableWrite, report.Outcomes[0].Err.Kind)
	assert.Equal(t, "ResourceExhausted", report.Outcomes[0].Err.Code)
	assert.Equal(t, "write quota exceeded", report.Outcomes[0].Err.Message)
	assert.Equal(t, StatusProcessed, report.Outcomes[1].Status)
	assert.Contains(t, table.records, "m2")
}

func TestPersistence_RedeliveryCreatesSecondRecord(t *testing.T) {
	table := newTestTable()
	f := NewPersistence(table)

	f.Process(context.Background(), []models.QueueMessage{{MessageID: "delivery-a", Body: []byte(receiptJSON)}})
	f.Process(context.Background(), []models.QueueMessage{{MessageID: "delivery-b", Body: []byte(receiptJSON)}})

	require.Len(t, table.records, 2)
	a, b := table.records["delivery-a"], table.records["delivery-b"]
	assert.NotEqual(t, a.ID, b.ID)
	b.ID = a.ID
	assert.Equal(t, a, b)
}

func TestPersistence_EmptyObjectStillStored(t *testing.T) {
	table := newTestTable()
	f := NewPersistence(table)

	report := f.Process(context.Background(), []models.QueueMessage{{MessageID: "m", Body: []byte(`{}`)}})

	assert.Equal(t, 1, report.Processed())
	assert.Equal(t, models.InvoiceRecord{ID: "m"}, table.records["m"])
}

func TestPersistence_MissingMessageID(t *testing.T) {
	table := newTestTable()
	f := NewPersistence(table)

	report := f.Process(context.Background(), []models.QueueMessage{{Body: []byte(receiptJSON)}})

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, KindMalformedEvent, report.Outcomes[0].Err.Kind)
	assert.Empty(t, table.puts)
}

func TestPersistence_EmptyBatch(t *testing.T) {
	report := NewPersistence(newTestTable()).Process(context.Background(), nil)
	assert.Empty(t, report.Outcomes)
}

type panickingWriter struct{}

func (panickingWriter) Put(ctx context.Context, rec models.InvoiceRecord) error {
	if rec.ID == "boom" {
		panic(errors.New("nil collection"))
	}
	return nil
}

func TestPersistence_PanicIsContainedToMessage(t *testing.T) {
	f := NewPersistence(panickingWriter{})

	report := f.Process(context.Background(), []models.QueueMessage{
		{MessageID: "boom", Body: []byte(`{}`)},
		{MessageID: "fine", Body: []byte(`{}`)},
	})

	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, KindUnexpected, report.Outcomes[0].Err.Kind)
	assert.Equal(t, StatusProcessed, report.Outcomes[1].Status)
}

func TestLoadPersistenceConfig(t *testing.T) {
	t.Setenv("PROJECT_ID", "proj")
	t.Setenv("INVOICE_COLLECTION", "")
	_, err := LoadPersistenceConfig()
	assert.ErrorContains(t, err, "INVOICE_COLLECTION")

	t.Setenv("INVOICE_COLLECTION", "invoices")
	cfg, err := LoadPersistenceConfig()
	require.NoError(t, err)
	assert.Equal(t, "invoices", cfg.Collection)
}
