package adapter

import (
	"context"
	"time"
)

// ReceiptStore persists payment-proof blobs and hands out time-limited
// signed URLs for admin review.
type ReceiptStore interface {
	Save(ctx context.Context, data []byte, contentType string) (path string, err error)
	SignedURL(path string, ttl time.Duration) (string, error)
}
