package arbitrage

// SwapVariant is one of the four directional paths through a pool pair.
type SwapVariant uint8

const (
	AToBToken0In SwapVariant = iota
	AToBToken1In
	BToAToken0In
	BToAToken1In
)

// Variants in evaluation order. Ties in profit keep this order.
var Variants = [...]SwapVariant{AToBToken0In, AToBToken1In, BToAToken0In, BToAToken1In}

type route struct {
	name     string
	aFirst   bool // first leg on venue A
	token0In bool
}

var routes = [...]route{
	AToBToken0In: {name: "a_to_b_token0_in", aFirst: true, token0In: true},
	AToBToken1In: {name: "a_to_b_token1_in", aFirst: true, token0In: false},
	BToAToken0In: {name: "b_to_a_token0_in", aFirst: false, token0In: true},
	BToAToken1In: {name: "b_to_a_token1_in", aFirst: false, token0In: false},
}

func (v SwapVariant) Valid() bool {
	return int(v) < len(routes)
}

func (v SwapVariant) String() string {
	if !v.Valid() {
		return "unknown"
	}
	return routes[v].name
}

// VenueAFirst reports whether the first leg trades on venue A.
func (v SwapVariant) VenueAFirst() bool {
	return routes[v].aFirst
}

func (v SwapVariant) Token0In() bool {
	return routes[v].token0In
}

// Tokens returns (tokenIn, tokenOut) for the pair.
func (v SwapVariant) Tokens(p PoolPair) (Token, Token) {
	if v.Token0In() {
		return p.Token0, p.Token1
	}
	return p.Token1, p.Token0
}

// Fees returns the fee of the first and second leg.
func (v SwapVariant) Fees(p PoolPair) (uint32, uint32) {
	if v.VenueAFirst() {
		return p.FeeA, p.FeeB
	}
	return p.FeeB, p.FeeA
}

// parseVariant is the inverse of String.
func parseVariant(s string) (SwapVariant, bool) {
	for _, v := range Variants {
		if routes[v].name == s {
			return v, true
		}
	}
	return 0, false
}
