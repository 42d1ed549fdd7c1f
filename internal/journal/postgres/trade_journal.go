package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/copybotio/copybot/internal/domain"
)

// TradeJournal implements domain.TradeJournal using PostgreSQL.
type TradeJournal struct {
	pool *pgxpool.Pool
}

// NewTradeJournal creates a TradeJournal backed by the given connection pool.
func NewTradeJournal(pool *pgxpool.Pool) *TradeJournal {
	return &TradeJournal{pool: pool}
}

const journalSelectCols = `id, trade_id, market_id, side, size, entry_price,
	exit_price, realized_pnl, close_reason, opened_at, closed_at`

func scanRecordRows(rows pgx.Rows) ([]domain.TradeRecord, error) {
	var records []domain.TradeRecord
	for rows.Next() {
		var r domain.TradeRecord
		if err := rows.Scan(
			&r.ID, &r.TradeID, &r.MarketID, &r.Side, &r.Size,
			&r.EntryPrice, &r.ExitPrice, &r.RealizedPnL,
			&r.CloseReason, &r.OpenedAt, &r.ClosedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Insert writes one completed round trip. Re-inserting the same id is a
// no-op so a retried close cannot duplicate a journal row.
func (j *TradeJournal) Insert(ctx context.Context, rec domain.TradeRecord) error {
	const query = `
		INSERT INTO trade_journal (
			id, trade_id, market_id, side, size, entry_price,
			exit_price, realized_pnl, close_reason, opened_at, closed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		) ON CONFLICT (id) DO NOTHING`

	_, err := j.pool.Exec(ctx, query,
		rec.ID, rec.TradeID, rec.MarketID, rec.Side, rec.Size,
		rec.EntryPrice, rec.ExitPrice, rec.RealizedPnL,
		rec.CloseReason, rec.OpenedAt, rec.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade record %s: %w", rec.ID, err)
	}
	return nil
}

// ListRecent returns the most recently closed round trips.
func (j *TradeJournal) ListRecent(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM trade_journal ORDER BY closed_at DESC LIMIT $1`,
		journalSelectCols,
	)

	rows, err := j.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()

	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade records: %w", err)
	}
	return records, nil
}

// ListBefore returns records closed strictly before the cutoff, oldest first,
// for archival.
func (j *TradeJournal) ListBefore(ctx context.Context, before time.Time) ([]domain.TradeRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM trade_journal WHERE closed_at < $1 ORDER BY closed_at ASC`,
		journalSelectCols,
	)

	rows, err := j.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	records, err := scanRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trade records: %w", err)
	}
	return records, nil
}

// Compile-time interface check.
var _ domain.TradeJournal = (*TradeJournal)(nil)
