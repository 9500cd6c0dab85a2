// Package history is an optional Postgres-backed archive of book
// ticker ticks, feeding the `backtest` CLI subcommand (spec §6). Its
// absence is not fatal: the live pipeline in internal/evaluator never
// depends on it.
//
// Grounded on the teacher's internal/repository package (plain
// database/sql + lib/pq, hand-written SQL, one table per repository)
// narrowed to a single `ticks` table.
package history

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"cyclehunter/internal/exchange"
)

// ErrNoRows is returned when a query expecting at least one row
// returns none.
var ErrNoRows = errors.New("history: no rows found")

// TickRepository persists and replays archived book ticker ticks.
type TickRepository struct {
	db *sql.DB
}

// NewTickRepository wraps an open *sql.DB (lib/pq driver).
func NewTickRepository(db *sql.DB) *TickRepository {
	return &TickRepository{db: db}
}

// Schema is the DDL for the ticks table. run-monitor executes it when
// a HISTORY_DSN is configured; its IF NOT EXISTS clauses make that
// idempotent. There is no migration runner: spec Non-goals exclude a
// persistence layer beyond best-effort snapshots, so this stays a
// single static statement rather than a migration framework.
const Schema = `
CREATE TABLE IF NOT EXISTS ticks (
	id BIGSERIAL PRIMARY KEY,
	symbol TEXT NOT NULL,
	best_bid NUMERIC NOT NULL,
	best_ask NUMERIC NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ticks_symbol_recorded_at ON ticks (symbol, recorded_at);
`

// Insert archives one tick.
func (r *TickRepository) Insert(bt exchange.BookTicker) error {
	query := `
		INSERT INTO ticks (symbol, best_bid, best_ask, recorded_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(
		query,
		strings.ToUpper(bt.Symbol),
		bt.BestBid.String(),
		bt.BestAsk.String(),
		bt.Timestamp,
	)
	return err
}

// RangeBetween returns every archived tick between start and end
// inclusive, ordered by recorded_at ascending — the order the
// backtest replay feeds into the evaluator.
func (r *TickRepository) RangeBetween(start, end time.Time) ([]exchange.BookTicker, error) {
	query := `
		SELECT symbol, best_bid, best_ask, recorded_at
		FROM ticks
		WHERE recorded_at BETWEEN $1 AND $2
		ORDER BY recorded_at ASC`

	rows, err := r.db.Query(query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ticks []exchange.BookTicker
	for rows.Next() {
		var symbol, bid, ask string
		var recordedAt time.Time
		if err := rows.Scan(&symbol, &bid, &ask, &recordedAt); err != nil {
			return nil, err
		}

		bidDec, err := decimal.NewFromString(bid)
		if err != nil {
			return nil, err
		}
		askDec, err := decimal.NewFromString(ask)
		if err != nil {
			return nil, err
		}

		ticks = append(ticks, exchange.BookTicker{
			Symbol:    symbol,
			BestBid:   bidDec,
			BestAsk:   askDec,
			Timestamp: recordedAt,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ticks, nil
}

// Count returns the number of archived ticks.
func (r *TickRepository) Count() (int, error) {
	query := `SELECT COUNT(*) FROM ticks`

	var count int
	if err := r.db.QueryRow(query).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
