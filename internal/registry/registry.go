// Package registry loads the tracked pool pairs and their reference prices.
// Sources are re-read every cycle so an external job can refresh prices.
package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/shopspring/decimal"
)

var (
	ErrNoRegistryRows = errors.New("registry has no usable rows")
	ErrBadNativeUSD   = errors.New("registry native_usd must be positive")
)

// Columns every source must provide.
var Columns = []string{
	"venue_a_pool", "venue_b_pool",
	"token0", "token0_symbol", "token0_decimals", "token0_usd",
	"token1", "token1_symbol", "token1_decimals", "token1_usd",
	"fee_a", "fee_b", "native_usd",
}

// Row is one registry record before validation.
type Row struct {
	VenueAPool     string
	VenueBPool     string
	Token0         string
	Token0Symbol   string
	Token0Decimals int64
	Token0USD      decimal.Decimal
	Token1         string
	Token1Symbol   string
	Token1Decimals int64
	Token1USD      decimal.Decimal
	FeeA           int64
	FeeB           int64
	NativeUSD      decimal.Decimal
}

// Snapshot is the registry as of one load.
type Snapshot struct {
	Pairs     []arbitrage.PoolPair
	NativeUSD *big.Rat
	Skipped   int // rows rejected by validation or duplicates
}

type Source interface {
	Load(ctx context.Context) (Snapshot, error)
}

// Open picks a source by file extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return NewCSVSource(path), nil
	case ".parquet":
		return NewParquetSource(path), nil
	default:
		return nil, fmt.Errorf("unsupported registry format %q", filepath.Ext(path))
	}
}

// BuildSnapshot validates rows, drops invalid ones and duplicate pair keys
// (first wins), and takes native_usd from the first valid row.
func BuildSnapshot(rows []Row) (Snapshot, error) {
	if len(rows) == 0 {
		return Snapshot{}, ErrNoRegistryRows
	}

	var snap Snapshot
	native := decimal.Zero
	seen := make(map[arbitrage.PairKey]struct{}, len(rows))
	for _, r := range rows {
		pair, err := r.toPair()
		if err != nil {
			snap.Skipped++
			continue
		}
		if _, dup := seen[pair.Key()]; dup {
			snap.Skipped++
			continue
		}
		if len(snap.Pairs) == 0 {
			native = r.NativeUSD
		}
		seen[pair.Key()] = struct{}{}
		snap.Pairs = append(snap.Pairs, pair)
	}
	if len(snap.Pairs) == 0 {
		return snap, ErrNoRegistryRows
	}
	if !native.IsPositive() {
		return snap, fmt.Errorf("%w (got %s)", ErrBadNativeUSD, native)
	}
	snap.NativeUSD = native.Rat()
	return snap, nil
}

func (r Row) toPair() (arbitrage.PoolPair, error) {
	addrs := make([]common.Address, 0, 4)
	for _, s := range []string{r.VenueAPool, r.VenueBPool, r.Token0, r.Token1} {
		s = strings.TrimSpace(s)
		if !common.IsHexAddress(s) {
			return arbitrage.PoolPair{}, fmt.Errorf("invalid address %q", s)
		}
		addrs = append(addrs, common.HexToAddress(s))
	}
	if addrs[0] == addrs[1] {
		return arbitrage.PoolPair{}, fmt.Errorf("venue pools must differ")
	}
	if addrs[2] == addrs[3] {
		return arbitrage.PoolPair{}, fmt.Errorf("tokens must differ")
	}
	for _, d := range []int64{r.Token0Decimals, r.Token1Decimals} {
		if d < 0 || d > 36 {
			return arbitrage.PoolPair{}, fmt.Errorf("decimals %d out of range", d)
		}
	}
	for _, f := range []int64{r.FeeA, r.FeeB} {
		// uint24 on chain, and a fee of 100% makes no sense
		if f < 0 || f >= 1_000_000 {
			return arbitrage.PoolPair{}, fmt.Errorf("fee %d out of range", f)
		}
	}

	return arbitrage.PoolPair{
		VenueA: addrs[0],
		VenueB: addrs[1],
		Token0: arbitrage.Token{
			Address:  addrs[2],
			Symbol:   strings.TrimSpace(r.Token0Symbol),
			Decimals: uint8(r.Token0Decimals),
			USD:      r.Token0USD.Rat(),
		},
		Token1: arbitrage.Token{
			Address:  addrs[3],
			Symbol:   strings.TrimSpace(r.Token1Symbol),
			Decimals: uint8(r.Token1Decimals),
			USD:      r.Token1USD.Rat(),
		},
		FeeA: uint32(r.FeeA),
		FeeB: uint32(r.FeeB),
	}, nil
}
