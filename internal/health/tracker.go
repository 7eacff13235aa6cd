// Package health tracks execution failures per pool pair and bans pairs that
// keep reverting.
package health

import (
	"fmt"

	"github.com/pulkyeet/venue-arb/internal/arbitrage"
)

type Config struct {
	RevertThreshold int    // consecutive reverts that trigger a ban
	BanBlocks       uint64 // ban length, counted from the triggering block
	StaleBlocks     uint64 // warnings older than this are forgiven by Sweep
}

func DefaultConfig() Config {
	return Config{RevertThreshold: 2, BanBlocks: 150, StaleBlocks: 150}
}

func (c Config) Validate() error {
	if c.RevertThreshold < 1 {
		return fmt.Errorf("revert threshold must be at least 1")
	}
	if c.BanBlocks == 0 {
		return fmt.Errorf("ban blocks must be positive")
	}
	return nil
}

// PoolHealth is the failure record of one pair. Zero-valued Has* flags mean
// the corresponding block is unset.
type PoolHealth struct {
	ConsecutiveReverts int
	LastRevertBlock    uint64
	HasLastRevert      bool
	BannedUntilBlock   uint64
	HasBan             bool
}

// State names the record's position in the healthy/warned/banned machine.
func (h PoolHealth) State(block uint64) string {
	switch {
	case h.HasBan && block < h.BannedUntilBlock:
		return "banned"
	case h.ConsecutiveReverts > 0:
		return "warned"
	default:
		return "healthy"
	}
}

// Tracker owns every pair's record. It is not safe for concurrent use; the
// cycle driver is its only caller.
type Tracker struct {
	cfg     Config
	records map[arbitrage.PairKey]*PoolHealth
}

func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg, records: make(map[arbitrage.PairKey]*PoolHealth)}
}

func (t *Tracker) record(key arbitrage.PairKey) *PoolHealth {
	h, ok := t.records[key]
	if !ok {
		h = &PoolHealth{}
		t.records[key] = h
	}
	return h
}

// RecordRevert counts a revert at block and reports whether it banned the pair.
func (t *Tracker) RecordRevert(key arbitrage.PairKey, block uint64) bool {
	h := t.record(key)
	h.ConsecutiveReverts++
	h.LastRevertBlock = block
	h.HasLastRevert = true

	if h.ConsecutiveReverts >= t.cfg.RevertThreshold {
		h.BannedUntilBlock = block + t.cfg.BanBlocks
		h.HasBan = true
		h.ConsecutiveReverts = 0
		return true
	}
	return false
}

// RecordSuccess clears the warning count. An active ban is left in place.
func (t *Tracker) RecordSuccess(key arbitrage.PairKey) {
	if h, ok := t.records[key]; ok {
		h.ConsecutiveReverts = 0
	}
}

func (t *Tracker) IsBanned(key arbitrage.PairKey, block uint64) bool {
	h, ok := t.records[key]
	return ok && h.HasBan && block < h.BannedUntilBlock
}

// Sweep forgives stale warnings and drops records that carry no state.
// Returns the number of warnings reset.
func (t *Tracker) Sweep(block uint64) int {
	reset := 0
	for key, h := range t.records {
		if h.ConsecutiveReverts > 0 && block > h.LastRevertBlock && block-h.LastRevertBlock > t.cfg.StaleBlocks {
			h.ConsecutiveReverts = 0
			reset++
		}
		if h.ConsecutiveReverts == 0 && !(h.HasBan && block < h.BannedUntilBlock) {
			delete(t.records, key)
		}
	}
	return reset
}

// Get returns a copy of the pair's record.
func (t *Tracker) Get(key arbitrage.PairKey) (PoolHealth, bool) {
	h, ok := t.records[key]
	if !ok {
		return PoolHealth{}, false
	}
	return *h, true
}

func (t *Tracker) Len() int {
	return len(t.records)
}

// Banned counts pairs under an active ban at block.
func (t *Tracker) Banned(block uint64) int {
	n := 0
	for _, h := range t.records {
		if h.HasBan && block < h.BannedUntilBlock {
			n++
		}
	}
	return n
}
