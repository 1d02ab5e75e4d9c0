package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/receiptflow/internal/gcp"
	"github.com/Lllllllleong/receiptflow/internal/models"
)

// ExtractionConfig holds configuration for the extraction stage.
type ExtractionConfig struct {
	ProjectID      string
	VertexAIRegion string
	ModelID        string
	MaxTokens      int
	QueueTopic     string
}

// LoadExtractionConfig loads and validates all necessary environment variables for this stage.
func LoadExtractionConfig() (*ExtractionConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	queueTopic := gcp.GetEnv("EXTRACTION_TOPIC", "")
	if queueTopic == "" {
		return nil, fmt.Errorf("EXTRACTION_TOPIC environment variable must be set")
	}
	modelID := gcp.GetEnv("MODEL_ID", "")
	if modelID == "" {
		return nil, fmt.Errorf("MODEL_ID environment variable must be set")
	}
	maxTokens, err := gcp.GetEnvInt("MODEL_MAX_TOKENS", gcp.DefaultMaxTokens)
	if err != nil {
		return nil, err
	}
	if maxTokens <= 0 {
		return nil, fmt.Errorf("MODEL_MAX_TOKENS must be positive, got %d", maxTokens)
	}

	return &ExtractionConfig{
		ProjectID:      projectID,
		VertexAIRegion: gcp.GetEnv("VERTEX_AI_REGION", "us-east5"),
		ModelID:        modelID,
		MaxTokens:      maxTokens,
		QueueTopic:     queueTopic,
	}, nil
}

// ExtractionFunction turns one receipt image into a queued extraction result.
type ExtractionFunction struct {
	reader ObjectReader
	model  ModelInvoker
	queue  QueueSender
}

// NewExtraction creates a new ExtractionFunction instance.
func NewExtraction(reader ObjectReader, model ModelInvoker, queue QueueSender) *ExtractionFunction {
	return &ExtractionFunction{reader: reader, model: model, queue: queue}
}

// Process reads the image, asks the model for the receipt fields and enqueues the answer.
// Nothing is enqueued unless every step succeeds and the model found a receipt.
// The model call is not cached; running twice on the same object calls the model twice.
func (f *ExtractionFunction) Process(ctx context.Context, ref models.ObjectRef) Outcome {
	logCtx := slog.With("bucket", ref.Bucket, "object", ref.Key)
	id := ref.String()

	image, err := f.reader.ReadObject(ctx, ref.Bucket, ref.Key)
	if err != nil {
		serr := dependencyError(KindObjectRead, err)
		logCtx.Error("Failed to read object.", serr.logAttrs()...)
		return failed(id, serr)
	}

	text, err := f.model.Invoke(ctx, models.ModelRequest{
		Prompt:      gcp.ReceiptExtractionPrompt,
		MediaType:   models.MediaType(ref.Key),
		ImageBase64: base64.StdEncoding.EncodeToString(image),
	})
	if err != nil {
		var serr *StageError
		if errors.Is(err, models.ErrMalformedModelResponse) {
			serr = dataError(KindResponseParse, err)
		} else {
			serr = dependencyError(KindModelInvocation, err)
		}
		logCtx.Error("Model invocation failed.", serr.logAttrs()...)
		return failed(id, serr)
	}

	extraction, err := models.ParseExtraction(text)
	if err != nil {
		serr := dataError(KindResponseParse, err)
		logCtx.Error("Failed to parse model response.", append(serr.logAttrs(), "responseBody", text)...)
		return failed(id, serr)
	}

	logCtx.Info("Extracted data from image.", "extracted", string(extraction.Raw))
	if extraction.Empty {
		logCtx.Info("No receipt found in image. Nothing to enqueue.")
		return skipped(id)
	}

	messageID, err := f.queue.Send(ctx, extraction.Raw)
	if err != nil {
		serr := dependencyError(KindQueueSend, err)
		logCtx.Error("Failed to send extraction to queue.", serr.logAttrs()...)
		return failed(id, serr)
	}

	logCtx.Info("Successfully processed image.", "messageId", messageID)
	return processed(id)
}
