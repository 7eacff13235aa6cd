package arbitrage

import "sort"

// BanChecker answers whether a pair is excluded at a block.
type BanChecker interface {
	IsBanned(key PairKey, block uint64) bool
}

// Rank sorts opportunities by profit, highest first. Equal profits keep
// their input order.
func Rank(opps []Opportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].Profit.Cmp(opps[j].Profit) > 0
	})
}

// SelectBest returns the most profitable opportunity whose pair is not
// banned at block. opps must already be ranked.
func SelectBest(opps []Opportunity, bans BanChecker, block uint64) (Opportunity, bool) {
	for _, o := range opps {
		if bans != nil && bans.IsBanned(o.Pair.Key(), block) {
			continue
		}
		return o, true
	}
	return Opportunity{}, false
}
