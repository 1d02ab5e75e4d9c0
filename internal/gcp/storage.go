package gcp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"cloud.google.com/go/storage"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvInt reads an integer environment variable, falling back when unset.
func GetEnvInt(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// StorageReader reads whole objects from Cloud Storage.
type StorageReader struct {
	client *storage.Client
}

func NewStorageReader(client *storage.Client) *StorageReader {
	return &StorageReader{client: client}
}

// ReadObject returns the full content of gs://bucket/key.
func (r *StorageReader) ReadObject(ctx context.Context, bucket, key string) ([]byte, error) {
	reader, err := r.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, key, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object gs://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}
