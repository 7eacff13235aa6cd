package health

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pairR = arbitrage.PairKey{VenueA: common.HexToAddress("0xa1"), VenueB: common.HexToAddress("0xb1")}
	pairS = arbitrage.PairKey{VenueA: common.HexToAddress("0xa1"), VenueB: common.HexToAddress("0xb2")}
)

func TestTwoRevertsBanFor150Blocks(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	assert.False(t, tr.RecordRevert(pairR, 100))
	assert.False(t, tr.IsBanned(pairR, 100))

	assert.True(t, tr.RecordRevert(pairR, 101))

	h, ok := tr.Get(pairR)
	require.True(t, ok)
	assert.Equal(t, uint64(251), h.BannedUntilBlock)
	assert.Equal(t, 0, h.ConsecutiveReverts)
	assert.Greater(t, h.BannedUntilBlock, uint64(101))

	for _, b := range []uint64{101, 102, 200, 250} {
		assert.True(t, tr.IsBanned(pairR, b), "block %d", b)
	}
	assert.False(t, tr.IsBanned(pairR, 251))
	assert.False(t, tr.IsBanned(pairR, 400))
}

func TestBanIsPairScoped(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.RecordRevert(pairR, 10)
	tr.RecordRevert(pairR, 11)

	// pairS shares venue A with pairR
	assert.True(t, tr.IsBanned(pairR, 12))
	assert.False(t, tr.IsBanned(pairS, 12))
}

func TestSuccessResetsWarnings(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.RecordRevert(pairR, 100)
	tr.RecordSuccess(pairR)
	assert.False(t, tr.RecordRevert(pairR, 101))
	assert.False(t, tr.IsBanned(pairR, 101))

	h, _ := tr.Get(pairR)
	assert.Equal(t, 1, h.ConsecutiveReverts)
	assert.Equal(t, "warned", h.State(101))

	// success on an unknown pair is a no-op
	tr.RecordSuccess(pairS)
	_, ok := tr.Get(pairS)
	assert.False(t, ok)
}

func TestSuccessDoesNotLiftBan(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.RecordRevert(pairR, 100)
	tr.RecordRevert(pairR, 101)
	tr.RecordSuccess(pairR)
	assert.True(t, tr.IsBanned(pairR, 120))
}

func TestSweepForgivesStaleWarnings(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.RecordRevert(pairR, 100)

	// exactly 150 behind is not stale yet
	assert.Equal(t, 0, tr.Sweep(250))
	h, ok := tr.Get(pairR)
	require.True(t, ok)
	assert.Equal(t, 1, h.ConsecutiveReverts)

	assert.Equal(t, 1, tr.Sweep(251))
	_, ok = tr.Get(pairR)
	assert.False(t, ok, "healthy records are pruned")

	// the next revert starts from zero
	assert.False(t, tr.RecordRevert(pairR, 260))
}

func TestSweepKeepsActiveBans(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	tr.RecordRevert(pairR, 100)
	tr.RecordRevert(pairR, 101)

	tr.Sweep(200)
	assert.Equal(t, 1, tr.Len())
	assert.Equal(t, 1, tr.Banned(200))

	tr.Sweep(251)
	assert.Equal(t, 0, tr.Len())
	assert.False(t, tr.IsBanned(pairR, 251))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Error(t, Config{RevertThreshold: 0, BanBlocks: 1}.Validate())
	assert.Error(t, Config{RevertThreshold: 2, BanBlocks: 0}.Validate())
}
