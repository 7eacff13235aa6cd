package arbitrage

import (
	"math/big"

	"github.com/holiman/uint256"
)

// BalanceUSD values a raw pool balance: balance / 10^decimals * usd.
func BalanceUSD(balance *uint256.Int, token Token) *big.Rat {
	if balance == nil || token.USD == nil {
		return new(big.Rat)
	}
	v := new(big.Rat).SetInt(balance.ToBig())
	v.Mul(v, pow10Rat(-int(token.Decimals)))
	return v.Mul(v, token.USD)
}

// PassesLiquidity is true only when all four venue balances are worth at
// least floorUSD.
func PassesLiquidity(pair PoolPair, r PoolReading, floorUSD *big.Rat) bool {
	checks := [...]struct {
		bal *uint256.Int
		tok Token
	}{
		{r.Token0AtA, pair.Token0},
		{r.Token1AtA, pair.Token1},
		{r.Token0AtB, pair.Token0},
		{r.Token1AtB, pair.Token1},
	}
	for _, c := range checks {
		if BalanceUSD(c.bal, c.tok).Cmp(floorUSD) < 0 {
			return false
		}
	}
	return true
}
