package arbitrage

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EngineConfig holds the evaluation thresholds. All values are USD unless noted.
type EngineConfig struct {
	NotionalUSD       *big.Rat
	MinProfitUSD      *big.Rat
	LiquidityFloorUSD *big.Rat
	RatioMin          *big.Rat
	RatioMax          *big.Rat
	GasUnits          uint64

	// AllowedInputs restricts which tokens may start a route. Empty allows all.
	AllowedInputs []common.Address
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		NotionalUSD:       big.NewRat(100, 1),
		MinProfitUSD:      big.NewRat(1, 10),
		LiquidityFloorUSD: big.NewRat(1500, 1),
		RatioMin:          big.NewRat(1, 3),
		RatioMax:          big.NewRat(3, 1),
		GasUnits:          450_000,
	}
}

// Evaluation is the outcome of one pass over the registry.
type Evaluation struct {
	Opportunities    []Opportunity
	Evaluated        int // pairs that reached variant evaluation
	MissingReading   int
	SkippedLiquidity int
	SkippedRatio     int
}

// Engine turns readings into qualifying opportunities.
type Engine struct {
	cfg     EngineConfig
	allowed map[common.Address]struct{}
}

func NewEngine(cfg EngineConfig) *Engine {
	e := &Engine{cfg: cfg}
	if len(cfg.AllowedInputs) > 0 {
		e.allowed = make(map[common.Address]struct{}, len(cfg.AllowedInputs))
		for _, a := range cfg.AllowedInputs {
			e.allowed[a] = struct{}{}
		}
	}
	return e
}

func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Evaluate checks every pair that has a reading. Opportunities come back in
// registry order, variants in Variants order, so a stable sort keeps ties
// deterministic.
func (e *Engine) Evaluate(pairs []PoolPair, readings map[PairKey]PoolReading, gasPrice *big.Int, nativeUSD *big.Rat, block uint64) Evaluation {
	var out Evaluation
	in := ProfitInputs{
		NotionalUSD: e.cfg.NotionalUSD,
		GasUnits:    e.cfg.GasUnits,
		GasPrice:    gasPrice,
		NativeUSD:   nativeUSD,
	}

	for _, pair := range pairs {
		reading, ok := readings[pair.Key()]
		if !ok {
			out.MissingReading++
			continue
		}
		opps, status := e.evaluatePair(pair, reading, in, block)
		switch status {
		case pairThinLiquidity:
			out.SkippedLiquidity++
		case pairRatioOutOfBound:
			out.SkippedRatio++
		default:
			out.Evaluated++
			out.Opportunities = append(out.Opportunities, opps...)
		}
	}
	return out
}

type pairStatus int

const (
	pairEvaluated pairStatus = iota
	pairThinLiquidity
	pairRatioOutOfBound
)

func (e *Engine) evaluatePair(pair PoolPair, reading PoolReading, in ProfitInputs, block uint64) ([]Opportunity, pairStatus) {
	if !PassesLiquidity(pair, reading, e.cfg.LiquidityFloorUSD) {
		return nil, pairThinLiquidity
	}

	priceA := NormalizePrice(reading.SqrtPriceA, pair.Token0.Decimals, pair.Token1.Decimals)
	priceB := NormalizePrice(reading.SqrtPriceB, pair.Token0.Decimals, pair.Token1.Decimals)
	if !WithinRatioBound(priceA, priceB, e.cfg.RatioMin, e.cfg.RatioMax) {
		return nil, pairRatioOutOfBound
	}

	var opps []Opportunity
	for _, v := range Variants {
		tokenIn, _ := v.Tokens(pair)
		if !e.inputAllowed(tokenIn.Address) {
			continue
		}
		profit := VariantProfit(pair, v, priceA, priceB, in)
		if profit.Cmp(e.cfg.MinProfitUSD) <= 0 {
			continue
		}
		opps = append(opps, Opportunity{
			Pair:        pair,
			Variant:     v,
			Profit:      profit,
			BlockNumber: block,
		})
	}
	return opps, pairEvaluated
}

func (e *Engine) inputAllowed(token common.Address) bool {
	if e.allowed == nil {
		return true
	}
	_, ok := e.allowed[token]
	return ok
}
