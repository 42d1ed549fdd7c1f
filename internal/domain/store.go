package domain

import (
	"context"
	"time"
)

// TradeJournal persists completed round trips.
type TradeJournal interface {
	Insert(ctx context.Context, rec TradeRecord) error
	ListRecent(ctx context.Context, limit int) ([]TradeRecord, error)
	// ListBefore returns records closed strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]TradeRecord, error)
}

// BlobWriter uploads serialized payloads to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
}
