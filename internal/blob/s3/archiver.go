package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/copybotio/copybot/internal/domain"
)

// Archiver periodically exports closed trade records from the journal to
// object storage as JSONL files.
//
// Deletion of the archived rows from the journal is intentionally NOT
// performed here; that is a separate, explicit step to be executed after the
// archive has been verified.
type Archiver struct {
	writer  domain.BlobWriter
	journal domain.TradeJournal
	maxAge  time.Duration
	logger  *slog.Logger
}

// NewArchiver creates an Archiver that exports journal rows older than
// maxAge.
func NewArchiver(writer domain.BlobWriter, journal domain.TradeJournal, maxAge time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		journal: journal,
		maxAge:  maxAge,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades queries journal rows closed before the cutoff, serializes
// them to JSONL, and uploads the file at archive/trades/YYYY-MM.jsonl. It
// returns the number of archived records.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.journal.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	return int64(len(records)), nil
}

// Run executes one archive pass per tick until ctx is cancelled. Failures
// are logged and retried on the next tick.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-a.maxAge)
			count, err := a.ArchiveTrades(ctx, cutoff)
			if err != nil {
				a.logger.ErrorContext(ctx, "archive pass failed",
					slog.String("error", err.Error()),
				)
				continue
			}
			if count > 0 {
				a.logger.InfoContext(ctx, "archived trade records",
					slog.Int64("count", count),
					slog.Time("cutoff", cutoff),
				)
			}
		}
	}
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serializes a slice of records as newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
