package arbitrage

import (
	"math/big"

	"github.com/holiman/uint256"
)

// feeDenominator: fees are expressed in hundredths of a bip.
const feeDenominator = 1_000_000

var (
	q192      = new(big.Int).Lsh(big.NewInt(1), 192)
	weiPerEth = new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
	ratOne    = big.NewRat(1, 1)
)

// NormalizePrice converts a sqrtPriceX96 encoding into token1 per token0 in
// whole-token units: raw^2 / 2^192 * 10^(decimals0 - decimals1).
func NormalizePrice(raw *uint256.Int, decimals0, decimals1 uint8) *big.Rat {
	if raw == nil || raw.IsZero() {
		return new(big.Rat)
	}
	r := raw.ToBig()
	num := new(big.Int).Mul(r, r)
	price := new(big.Rat).SetFrac(num, q192)
	return price.Mul(price, pow10Rat(int(decimals0)-int(decimals1)))
}

func pow10Rat(exp int) *big.Rat {
	if exp >= 0 {
		return new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil))
	}
	return new(big.Rat).SetFrac(big.NewInt(1), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-exp)), nil))
}

// WithinRatioBound reports whether min <= priceA/priceB <= max. Zero prices
// never pass.
func WithinRatioBound(priceA, priceB, min, max *big.Rat) bool {
	if priceA.Sign() <= 0 || priceB.Sign() <= 0 {
		return false
	}
	ratio := new(big.Rat).Quo(priceA, priceB)
	return ratio.Cmp(min) >= 0 && ratio.Cmp(max) <= 0
}

// ProfitInputs are the cycle-wide inputs to variant profit.
type ProfitInputs struct {
	NotionalUSD *big.Rat
	GasUnits    uint64
	GasPrice    *big.Int // wei
	NativeUSD   *big.Rat
}

// GasCostUSD = gasUnits * gasPrice / 1e18 * nativeUSD.
func (in ProfitInputs) GasCostUSD() *big.Rat {
	if in.GasPrice == nil || in.NativeUSD == nil {
		return new(big.Rat)
	}
	wei := new(big.Int).Mul(new(big.Int).SetUint64(in.GasUnits), in.GasPrice)
	cost := new(big.Rat).SetInt(wei)
	cost.Quo(cost, weiPerEth)
	return cost.Mul(cost, in.NativeUSD)
}

// VariantProfit returns the net USD profit of routing the notional through
// the given variant. priceA and priceB are normalized token1-per-token0
// prices on each venue. Missing or non-positive reference prices and zero
// pool prices yield zero.
func VariantProfit(pair PoolPair, v SwapVariant, priceA, priceB *big.Rat, in ProfitInputs) *big.Rat {
	tokenIn, _ := v.Tokens(pair)
	if !positive(tokenIn.USD) || !positive(in.NativeUSD) || !positive(in.NotionalUSD) {
		return new(big.Rat)
	}
	if !positive(priceA) || !positive(priceB) {
		return new(big.Rat)
	}

	first, second := priceA, priceB
	if !v.VenueAFirst() {
		first, second = priceB, priceA
	}

	// token0 in: sell token0 at the first venue's price, buy it back at the
	// inverse of the second venue's price. token1 in is the mirror.
	var priceIn, priceOut *big.Rat
	if v.Token0In() {
		priceIn = first
		priceOut = new(big.Rat).Inv(second)
	} else {
		priceIn = new(big.Rat).Inv(first)
		priceOut = second
	}

	feeIn, feeOut := v.Fees(pair)

	amountIn := new(big.Rat).Quo(in.NotionalUSD, tokenIn.USD)

	leg1 := new(big.Rat).Mul(amountIn, priceIn)
	leg1.Mul(leg1, feeMultiplier(feeIn))

	leg2 := new(big.Rat).Mul(leg1, priceOut)
	leg2.Mul(leg2, feeMultiplier(feeOut))

	profit := new(big.Rat).Sub(leg2, amountIn)
	profit.Mul(profit, tokenIn.USD)
	return profit.Sub(profit, in.GasCostUSD())
}

func feeMultiplier(fee uint32) *big.Rat {
	return new(big.Rat).Sub(ratOne, big.NewRat(int64(fee), feeDenominator))
}

func positive(r *big.Rat) bool {
	return r != nil && r.Sign() > 0
}
