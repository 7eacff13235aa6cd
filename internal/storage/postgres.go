package storage

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema_postgres.sql
var postgresSchema string

// PostgresAudit shares one audit database across several bot instances.
type PostgresAudit struct {
	pool *pgxpool.Pool
}

func NewPostgresAudit(ctx context.Context, dsn string) (*PostgresAudit, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: apply schema: %w", err)
	}
	return &PostgresAudit{pool: pool}, nil
}

func (s *PostgresAudit) Close() error {
	s.pool.Close()
	return nil
}

// RecordOpportunities sends the cycle's rows as a single batch.
func (s *PostgresAudit) RecordOpportunities(ctx context.Context, recs []OpportunityRecord) error {
	if len(recs) == 0 {
		return nil
	}

	const query = `INSERT INTO opportunities (block_number, venue_a_pool, venue_b_pool, pair, variant, profit_usd, selected)
		VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7)`

	batch := &pgx.Batch{}
	for _, r := range recs {
		batch.Queue(query, int64(r.BlockNumber), r.VenueAPool, r.VenueBPool, r.Pair, r.Variant, r.ProfitUSD.String(), r.Selected)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert opportunity: %w", err)
		}
	}
	return nil
}

func (s *PostgresAudit) RecordLatency(ctx context.Context, r LatencyRecord) error {
	const query = `INSERT INTO cycle_latency (block_number, pairs, readings, load_us, read_us, eval_us)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (block_number) DO UPDATE SET
			pairs = EXCLUDED.pairs, readings = EXCLUDED.readings,
			load_us = EXCLUDED.load_us, read_us = EXCLUDED.read_us, eval_us = EXCLUDED.eval_us`
	_, err := s.pool.Exec(ctx, query,
		int64(r.BlockNumber), r.Pairs, r.Readings,
		r.Load.Microseconds(), r.Read.Microseconds(), r.Eval.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert latency: %w", err)
	}
	return nil
}

func (s *PostgresAudit) RecordExecution(ctx context.Context, r ExecutionRecord) error {
	const query = `INSERT INTO executions (block_number, venue_a_pool, venue_b_pool, variant, nonce, tx_hash, outcome, profit_usd, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::text::numeric, $9)`
	_, err := s.pool.Exec(ctx, query,
		int64(r.BlockNumber), r.VenueAPool, r.VenueBPool, r.Variant, int64(r.Nonce),
		r.TxHash, r.Outcome, r.ProfitUSD.String(), r.Error,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution: %w", err)
	}
	return nil
}

func (s *PostgresAudit) Stats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64)
	for _, table := range []string{"opportunities", "cycle_latency", "executions"} {
		var count int64
		if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			return nil, fmt.Errorf("postgres: count %s: %w", table, err)
		}
		stats[table] = count
	}

	rows, err := s.pool.Query(ctx, "SELECT outcome, COUNT(*) FROM executions GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("postgres: count outcomes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		stats["executions_"+outcome] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count outcomes rows: %w", err)
	}
	return stats, nil
}
