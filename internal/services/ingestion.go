package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/receiptflow/internal/gcp"
	"github.com/Lllllllleong/receiptflow/internal/models"
)

// IngestionConfig holds configuration for the ingestion trigger.
type IngestionConfig struct {
	// ImageSuffixes are matched case-insensitively against object keys.
	ImageSuffixes []string
}

// LoadIngestionConfig reads IMAGE_SUFFIXES, a comma-separated list defaulting to ".png".
func LoadIngestionConfig() IngestionConfig {
	var suffixes []string
	for _, s := range strings.Split(gcp.GetEnv("IMAGE_SUFFIXES", ".png"), ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			suffixes = append(suffixes, s)
		}
	}
	if len(suffixes) == 0 {
		suffixes = []string{".png"}
	}
	return IngestionConfig{ImageSuffixes: suffixes}
}

// IngestionFunction filters object-created events and hands images to the extraction stage.
type IngestionFunction struct {
	extractor Extractor
	config    IngestionConfig
}

// NewIngestion creates a new IngestionFunction instance.
func NewIngestion(config IngestionConfig, extractor Extractor) *IngestionFunction {
	return &IngestionFunction{extractor: extractor, config: config}
}

// Process handles every record of an object-created batch in order. Malformed records and
// non-image keys are skipped without affecting their siblings.
func (f *IngestionFunction) Process(ctx context.Context, refs []models.ObjectRef) BatchReport {
	var report BatchReport
	for i, ref := range refs {
		logCtx := slog.With("record", i, "bucket", ref.Bucket, "object", ref.Key)
		report.add(guard(ref.String(), logCtx, func() Outcome {
			return f.processOne(ctx, logCtx, ref)
		}))
	}
	return report
}

func (f *IngestionFunction) processOne(ctx context.Context, logCtx *slog.Logger, ref models.ObjectRef) Outcome {
	if ref.Bucket == "" || ref.Key == "" {
		serr := &StageError{Kind: KindMalformedEvent, Message: "event record is missing bucket name or object key"}
		logCtx.Error("Invalid event structure.", serr.logAttrs()...)
		return failed(ref.String(), serr)
	}
	if !f.IsImage(ref.Key) {
		logCtx.Info("Skipping non-image file.")
		return skipped(ref.String())
	}
	return f.extractor.Process(ctx, ref)
}

// IsImage reports whether key ends in one of the configured image suffixes.
func (f *IngestionFunction) IsImage(key string) bool {
	lower := strings.ToLower(key)
	for _, suffix := range f.config.ImageSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}
