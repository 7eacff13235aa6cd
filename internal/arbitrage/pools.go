package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pulkyeet/venue-arb/internal/eth"
)

// slotsPerPair: venueA price, venueB price, token0@A, token1@A, token0@B, token1@B.
const slotsPerPair = 6

var errShortWord = errors.New("return data shorter than one word")

type Aggregator interface {
	Aggregate(ctx context.Context, calls []eth.Call, blockNumber *big.Int) ([][]byte, error)
}

// BatchStateReader fetches prices and balances for every pair in one
// aggregated call.
type BatchStateReader struct {
	agg    Aggregator
	venues Venues
}

func NewBatchStateReader(agg Aggregator, venues Venues) *BatchStateReader {
	return &BatchStateReader{agg: agg, venues: venues}
}

// BuildCalls lays out six calls per pair in slot order.
func (r *BatchStateReader) BuildCalls(pairs []PoolPair) ([]eth.Call, error) {
	calls := make([]eth.Call, 0, len(pairs)*slotsPerPair)
	for _, p := range pairs {
		priceA, err := eth.PriceCall(p.VenueA, r.venues.A.PriceMethod)
		if err != nil {
			return nil, fmt.Errorf("venue a price call: %w", err)
		}
		priceB, err := eth.PriceCall(p.VenueB, r.venues.B.PriceMethod)
		if err != nil {
			return nil, fmt.Errorf("venue b price call: %w", err)
		}
		calls = append(calls, priceA, priceB)

		for _, bc := range [...]struct{ token, pool common.Address }{
			{p.Token0.Address, p.VenueA},
			{p.Token1.Address, p.VenueA},
			{p.Token0.Address, p.VenueB},
			{p.Token1.Address, p.VenueB},
		} {
			c, err := eth.BalanceCall(bc.token, bc.pool)
			if err != nil {
				return nil, err
			}
			calls = append(calls, c)
		}
	}
	return calls, nil
}

// Read returns a reading for every pair whose six slots decoded. An
// aggregate failure fails the whole read.
func (r *BatchStateReader) Read(ctx context.Context, pairs []PoolPair, blockNumber *big.Int) (map[PairKey]PoolReading, error) {
	readings := make(map[PairKey]PoolReading, len(pairs))
	if len(pairs) == 0 {
		return readings, nil
	}

	calls, err := r.BuildCalls(pairs)
	if err != nil {
		return nil, err
	}

	results, err := r.agg.Aggregate(ctx, calls, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("batch read: %w", err)
	}
	if len(results) != len(calls) {
		return nil, fmt.Errorf("batch read: %w: %d results for %d calls", eth.ErrAggregateFailed, len(results), len(calls))
	}

	for i, p := range pairs {
		reading, err := decodeReading(results[i*slotsPerPair : (i+1)*slotsPerPair])
		if err != nil {
			// only this pair is dropped
			continue
		}
		readings[p.Key()] = reading
	}
	return readings, nil
}

func decodeReading(slots [][]byte) (PoolReading, error) {
	var words [slotsPerPair]*uint256.Int
	for i, data := range slots {
		w, err := firstWord(data)
		if err != nil {
			return PoolReading{}, fmt.Errorf("slot %d: %w", i, err)
		}
		words[i] = w
	}
	for i := 0; i < 2; i++ {
		if words[i].BitLen() > 160 {
			return PoolReading{}, fmt.Errorf("slot %d: sqrt price exceeds uint160", i)
		}
	}
	return PoolReading{
		SqrtPriceA: words[0],
		SqrtPriceB: words[1],
		Token0AtA:  words[2],
		Token1AtA:  words[3],
		Token0AtB:  words[4],
		Token1AtB:  words[5],
	}, nil
}

func firstWord(data []byte) (*uint256.Int, error) {
	if len(data) < 32 {
		return nil, errShortWord
	}
	return new(uint256.Int).SetBytes32(data[:32]), nil
}
