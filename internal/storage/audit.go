// Package storage persists the audit trail: every qualifying opportunity,
// per-cycle stage latencies and execution outcomes.
package storage

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/shopspring/decimal"
)

type OpportunityRecord struct {
	BlockNumber uint64
	VenueAPool  string
	VenueBPool  string
	Pair        string
	Variant     string
	ProfitUSD   decimal.Decimal
	Selected    bool
}

type LatencyRecord struct {
	BlockNumber uint64
	Pairs       int
	Readings    int
	Load        time.Duration
	Read        time.Duration
	Eval        time.Duration
}

type ExecutionRecord struct {
	BlockNumber uint64
	VenueAPool  string
	VenueBPool  string
	Variant     string
	Nonce       uint64
	TxHash      string
	Outcome     string
	ProfitUSD   decimal.Decimal
	Error       string
}

// Audit is implemented by SQLiteAudit and PostgresAudit.
type Audit interface {
	RecordOpportunities(ctx context.Context, recs []OpportunityRecord) error
	RecordLatency(ctx context.Context, rec LatencyRecord) error
	RecordExecution(ctx context.Context, rec ExecutionRecord) error
	Stats(ctx context.Context) (map[string]int64, error)
	Close() error
}

// Open returns the backend named by kind: "sqlite" (dsn is a file path) or
// "postgres" (dsn is a connection string).
func Open(ctx context.Context, kind, dsn string) (Audit, error) {
	switch kind {
	case "sqlite", "":
		return NewSQLiteAudit(dsn)
	case "postgres":
		return NewPostgresAudit(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", kind)
	}
}

// RatToDecimal rounds to 18 places for storage and reporting.
func RatToDecimal(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(r.Num(), 0).DivRound(decimal.NewFromBigInt(r.Denom(), 0), 18)
}

func NewOpportunityRecord(o arbitrage.Opportunity, selected bool) OpportunityRecord {
	return OpportunityRecord{
		BlockNumber: o.BlockNumber,
		VenueAPool:  o.Pair.VenueA.Hex(),
		VenueBPool:  o.Pair.VenueB.Hex(),
		Pair:        o.Pair.Symbol(),
		Variant:     o.Variant.String(),
		ProfitUSD:   RatToDecimal(o.Profit),
		Selected:    selected,
	}
}
