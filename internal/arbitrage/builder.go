package arbitrage

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/venue-arb/internal/eth"
)

// Venue describes how to read from and route through one exchange.
type Venue struct {
	Name        string
	Router      common.Address
	PriceMethod string // eth.PriceMethodSlot0 or eth.PriceMethodGlobalState
	// Algebra-style routers take no fee argument; their fee is sent as 0.
	PassFee bool
}

type Venues struct {
	A Venue
	B Venue
}

func DefaultVenues() Venues {
	return Venues{
		A: Venue{Name: "uniswap_v3", Router: eth.UniswapV3Router, PriceMethod: eth.PriceMethodSlot0, PassFee: true},
		B: Venue{Name: "camelot", Router: eth.CamelotRouter, PriceMethod: eth.PriceMethodGlobalState, PassFee: false},
	}
}

// AmountInUnits converts a USD notional into native units of token,
// truncating toward zero.
func AmountInUnits(token Token, notionalUSD *big.Rat) (*big.Int, error) {
	if !positive(token.USD) {
		return nil, fmt.Errorf("token %s has no positive usd price", token.Symbol)
	}
	amount := new(big.Rat).Quo(notionalUSD, token.USD)
	amount.Mul(amount, pow10Rat(int(token.Decimals)))
	units := new(big.Int).Quo(amount.Num(), amount.Denom())
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("notional rounds to zero units of %s", token.Symbol)
	}
	return units, nil
}

// BuildParams lays out executeArbitrage arguments for an opportunity:
// routers in trade order, tokens in input/output order, fees per venue.
func BuildParams(opp Opportunity, venues Venues, notionalUSD *big.Rat) (eth.ArbParams, error) {
	if !opp.Variant.Valid() {
		return eth.ArbParams{}, fmt.Errorf("invalid variant %d", opp.Variant)
	}

	tokenIn, tokenOut := opp.Variant.Tokens(opp.Pair)
	amountIn, err := AmountInUnits(tokenIn, notionalUSD)
	if err != nil {
		return eth.ArbParams{}, fmt.Errorf("amount in: %w", err)
	}

	first, second := venues.A, venues.B
	feeFirst, feeSecond := opp.Pair.FeeA, opp.Pair.FeeB
	if !opp.Variant.VenueAFirst() {
		first, second = venues.B, venues.A
		feeFirst, feeSecond = opp.Pair.FeeB, opp.Pair.FeeA
	}
	if !first.PassFee {
		feeFirst = 0
	}
	if !second.PassFee {
		feeSecond = 0
	}

	return eth.ArbParams{
		RouterA:  first.Router,
		RouterB:  second.Router,
		TokenIn:  tokenIn.Address,
		TokenOut: tokenOut.Address,
		FeeA:     feeFirst,
		FeeB:     feeSecond,
		AmountIn: amountIn,
	}, nil
}
