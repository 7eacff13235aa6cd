package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

type SQLiteAudit struct {
	db *sql.DB
}

func NewSQLiteAudit(dbPath string) (*SQLiteAudit, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create audit dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit db: %w", err)
	}

	// WAL lets report tools read while the bot writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &SQLiteAudit{db: db}, nil
}

func (s *SQLiteAudit) Close() error {
	return s.db.Close()
}

// RecordOpportunities writes all records of a cycle in one transaction.
func (s *SQLiteAudit) RecordOpportunities(ctx context.Context, recs []OpportunityRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO opportunities (block_number, venue_a_pool, venue_b_pool, pair, variant, profit_usd, selected, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("sqlite: prepare opportunity insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx,
			r.BlockNumber, r.VenueAPool, r.VenueBPool, r.Pair, r.Variant,
			r.ProfitUSD.String(), r.Selected, now,
		); err != nil {
			return fmt.Errorf("sqlite: insert opportunity: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteAudit) RecordLatency(ctx context.Context, r LatencyRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO cycle_latency (block_number, pairs, readings, load_us, read_us, eval_us, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.BlockNumber, r.Pairs, r.Readings,
		r.Load.Microseconds(), r.Read.Microseconds(), r.Eval.Microseconds(),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert latency: %w", err)
	}
	return nil
}

func (s *SQLiteAudit) RecordExecution(ctx context.Context, r ExecutionRecord) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO executions (block_number, venue_a_pool, venue_b_pool, variant, nonce, tx_hash, outcome, profit_usd, error, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.BlockNumber, r.VenueAPool, r.VenueBPool, r.Variant, r.Nonce, r.TxHash,
		r.Outcome, r.ProfitUSD.String(), r.Error, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert execution: %w", err)
	}
	return nil
}

// Stats counts rows per table and executions per outcome.
func (s *SQLiteAudit) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)

	for _, table := range []string{"opportunities", "cycle_latency", "executions"} {
		var count int64
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("sqlite: count %s: %w", table, err)
		}
		stats[table] = count
	}

	rows, err := s.db.QueryContext(ctx, "SELECT outcome, COUNT(*) FROM executions GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("sqlite: count outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("sqlite: scan outcome: %w", err)
		}
		stats["executions_"+outcome] = count
	}
	return stats, rows.Err()
}
