package eth

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

type GasPriceSource interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

const gasCacheKey = "base_fee"

// GasOracle serves the latest base fee, refreshing it at most once per ttl.
type GasOracle struct {
	cache *expirable.LRU[string, *big.Int]
}

func NewGasOracle(ttl time.Duration) *GasOracle {
	return &GasOracle{cache: expirable.NewLRU[string, *big.Int](1, nil, ttl)}
}

func (g *GasOracle) GasPrice(ctx context.Context, src GasPriceSource) (*big.Int, error) {
	if price, ok := g.cache.Get(gasCacheKey); ok {
		return new(big.Int).Set(price), nil
	}

	header, err := src.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch latest header: %w", err)
	}

	price := header.BaseFee
	if price == nil {
		// pre-London chains have no base fee
		price, err = src.SuggestGasPrice(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas price: %w", err)
		}
	}

	g.cache.Add(gasCacheKey, new(big.Int).Set(price))
	return new(big.Int).Set(price), nil
}

// Invalidate drops the cached value so the next call refetches.
func (g *GasOracle) Invalidate() {
	g.cache.Remove(gasCacheKey)
}
