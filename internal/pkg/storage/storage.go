package storage

import (
	"context"
	"fmt"
	"time"
)

// Archive keeps raw provider payloads for audit and replay.
type Archive interface {
	Put(ctx context.Context, key string, body []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Config holds storage configuration
type Config struct {
	S3Endpoint  string
	S3Region    string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
}

// WebhookKey lays payloads out by provider and day: webhooks/paystack/2025/01/31/<id>.json
func WebhookKey(provider string, receivedAt time.Time, id string) string {
	return fmt.Sprintf("webhooks/%s/%s/%s.json", provider, receivedAt.UTC().Format("2006/01/02"), id)
}

// NoopArchive drops payloads when no bucket is configured.
type NoopArchive struct{}

func (NoopArchive) Put(ctx context.Context, key string, body []byte) error { return nil }
func (NoopArchive) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("archive disabled: %s", key)
}
func (NoopArchive) Exists(ctx context.Context, key string) (bool, error) { return false, nil }
