package arbitrage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	testToken0 = Token{Address: common.HexToAddress("0x01"), Symbol: "AAA", Decimals: 18, USD: big.NewRat(1, 1)}
	testToken1 = Token{Address: common.HexToAddress("0x02"), Symbol: "BBB", Decimals: 18, USD: big.NewRat(1, 1)}
)

func testPair(poolA, poolB string) PoolPair {
	return PoolPair{
		VenueA: common.HexToAddress(poolA),
		VenueB: common.HexToAddress(poolB),
		Token0: testToken0,
		Token1: testToken1,
		FeeA:   500,
		FeeB:   500,
	}
}

// sqrtPriceX96 encodes a token1-per-token0 price for equal decimals.
func sqrtPriceX96(price float64) *uint256.Int {
	f := new(big.Float).SetPrec(256).SetFloat64(price)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))
	i, _ := f.Int(nil)
	v, _ := uint256.FromBig(i)
	return v
}

// tokens converts whole tokens into an 18-decimal balance.
func tokens(n int64) *uint256.Int {
	v := new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	u, _ := uint256.FromBig(v)
	return u
}

func deepReading(priceA, priceB float64) PoolReading {
	return PoolReading{
		SqrtPriceA: sqrtPriceX96(priceA),
		SqrtPriceB: sqrtPriceX96(priceB),
		Token0AtA:  tokens(1_000_000),
		Token1AtA:  tokens(1_000_000),
		Token0AtB:  tokens(1_000_000),
		Token1AtB:  tokens(1_000_000),
	}
}

type banSet map[PairKey]uint64

func (b banSet) IsBanned(key PairKey, block uint64) bool {
	until, ok := b[key]
	return ok && block < until
}
