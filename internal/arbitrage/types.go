package arbitrage

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Token is one side of a pool pair with its off-chain USD reference price.
type Token struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
	USD      *big.Rat
}

// PairKey identifies a pool pair by its two venue pools. Bans are scoped to it.
type PairKey struct {
	VenueA common.Address
	VenueB common.Address
}

func (k PairKey) String() string {
	return fmt.Sprintf("%s/%s", k.VenueA.Hex(), k.VenueB.Hex())
}

// PoolPair is the same token pair listed on venue A and venue B.
// Fees are in hundredths of a bip (500 = 0.05%).
type PoolPair struct {
	VenueA common.Address
	VenueB common.Address
	Token0 Token
	Token1 Token
	FeeA   uint32
	FeeB   uint32
}

func (p PoolPair) Key() PairKey {
	return PairKey{VenueA: p.VenueA, VenueB: p.VenueB}
}

func (p PoolPair) Symbol() string {
	return p.Token0.Symbol + "/" + p.Token1.Symbol
}

// PoolReading is one block's snapshot of a pair: raw sqrt prices and the
// four pool balances.
type PoolReading struct {
	SqrtPriceA *uint256.Int
	SqrtPriceB *uint256.Int
	Token0AtA  *uint256.Int
	Token1AtA  *uint256.Int
	Token0AtB  *uint256.Int
	Token1AtB  *uint256.Int
}

// Opportunity is a qualifying variant for one pair at one block.
type Opportunity struct {
	Pair        PoolPair
	Variant     SwapVariant
	Profit      *big.Rat // USD, net of gas
	BlockNumber uint64
}

// ProfitFloat is for reporting only; comparisons use Profit.
func (o Opportunity) ProfitFloat() float64 {
	f, _ := o.Profit.Float64()
	return f
}
