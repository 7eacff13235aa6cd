package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/pulkyeet/venue-arb/internal/eth"
	"github.com/pulkyeet/venue-arb/internal/execution"
	"github.com/pulkyeet/venue-arb/internal/health"
	"github.com/pulkyeet/venue-arb/internal/metrics"
	"github.com/pulkyeet/venue-arb/internal/registry"
	"github.com/pulkyeet/venue-arb/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testPair() arbitrage.PoolPair {
	return arbitrage.PoolPair{
		VenueA: common.HexToAddress("0xa1"),
		VenueB: common.HexToAddress("0xb1"),
		Token0: arbitrage.Token{Address: common.HexToAddress("0x01"), Symbol: "AAA", Decimals: 18, USD: big.NewRat(1, 1)},
		Token1: arbitrage.Token{Address: common.HexToAddress("0x02"), Symbol: "BBB", Decimals: 18, USD: big.NewRat(1, 1)},
		FeeA:   500,
		FeeB:   500,
	}
}

func sqrtPriceX96(price float64) *uint256.Int {
	f := new(big.Float).SetPrec(256).SetFloat64(price)
	f.Sqrt(f)
	f.Mul(f, new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96)))
	i, _ := f.Int(nil)
	v, _ := uint256.FromBig(i)
	return v
}

func deepReading(priceA, priceB float64) arbitrage.PoolReading {
	million := new(uint256.Int).Mul(uint256.NewInt(1_000_000), uint256.NewInt(1e18))
	return arbitrage.PoolReading{
		SqrtPriceA: sqrtPriceX96(priceA),
		SqrtPriceB: sqrtPriceX96(priceB),
		Token0AtA:  million,
		Token1AtA:  million,
		Token0AtB:  million,
		Token1AtB:  million,
	}
}

type fakeRegistry struct {
	snap registry.Snapshot
	err  error
}

func (f *fakeRegistry) Load(context.Context) (registry.Snapshot, error) {
	return f.snap, f.err
}

type fakeGas struct{ price *big.Int }

func (f fakeGas) GasPrice(context.Context) (*big.Int, error) { return f.price, nil }

type fakeReader struct {
	mu       sync.Mutex
	readings map[arbitrage.PairKey]arbitrage.PoolReading
	err      error
	blocks   []uint64
	onRead   func(block uint64)
}

func (f *fakeReader) Read(_ context.Context, _ []arbitrage.PoolPair, bn *big.Int) (map[arbitrage.PairKey]arbitrage.PoolReading, error) {
	f.mu.Lock()
	f.blocks = append(f.blocks, bn.Uint64())
	f.mu.Unlock()
	if f.onRead != nil {
		f.onRead(bn.Uint64())
	}
	return f.readings, f.err
}

func (f *fakeReader) seen() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.blocks...)
}

type fakeExecutor struct {
	calls   []arbitrage.Opportunity
	outcome execution.Outcome
}

func (f *fakeExecutor) Execute(_ context.Context, opp arbitrage.Opportunity) execution.Result {
	f.calls = append(f.calls, opp)
	return execution.Result{Opportunity: opp, Outcome: f.outcome, Nonce: 7, TxHash: common.HexToHash("0xabc")}
}

type memAudit struct {
	opps      []storage.OpportunityRecord
	latencies []storage.LatencyRecord
	execs     []storage.ExecutionRecord
}

func (m *memAudit) RecordOpportunities(_ context.Context, recs []storage.OpportunityRecord) error {
	m.opps = append(m.opps, recs...)
	return nil
}

func (m *memAudit) RecordLatency(_ context.Context, rec storage.LatencyRecord) error {
	m.latencies = append(m.latencies, rec)
	return nil
}

func (m *memAudit) RecordExecution(_ context.Context, rec storage.ExecutionRecord) error {
	m.execs = append(m.execs, rec)
	return nil
}

func (m *memAudit) Stats(context.Context) (map[string]int64, error) { return nil, nil }
func (m *memAudit) Close() error                                    { return nil }

type harness struct {
	driver  *Driver
	reader  *fakeReader
	exec    *fakeExecutor
	audit   *memAudit
	health  *health.Tracker
	metrics *metrics.Metrics
}

func newHarness(t *testing.T, cfg Config, priceA, priceB float64) *harness {
	t.Helper()
	p := testPair()
	h := &harness{
		reader: &fakeReader{readings: map[arbitrage.PairKey]arbitrage.PoolReading{
			p.Key(): deepReading(priceA, priceB),
		}},
		exec:    &fakeExecutor{outcome: execution.OutcomeSuccess},
		audit:   &memAudit{},
		health:  health.NewTracker(health.DefaultConfig()),
		metrics: metrics.New(),
	}
	d, err := New(cfg, Deps{
		Registry: &fakeRegistry{snap: registry.Snapshot{Pairs: []arbitrage.PoolPair{p}, NativeUSD: big.NewRat(1, 1)}},
		Gas:      fakeGas{price: big.NewInt(0)},
		Reader:   h.reader,
		Engine:   arbitrage.NewEngine(arbitrage.DefaultEngineConfig()),
		Health:   h.health,
		Executor: h.exec,
		Audit:    h.audit,
		Metrics:  h.metrics,
	}, discard)
	require.NoError(t, err)
	h.driver = d
	return h
}

func TestRunCycleExecutesBestOpportunity(t *testing.T) {
	h := newHarness(t, Config{}, 1.02, 1.00)

	rep, err := h.driver.RunCycle(context.Background(), 1000)
	require.NoError(t, err)

	require.NotNil(t, rep.Selected)
	assert.Equal(t, arbitrage.AToBToken0In, rep.Selected.Variant)
	require.Len(t, h.exec.calls, 1)
	assert.Equal(t, arbitrage.AToBToken0In, h.exec.calls[0].Variant)

	// both qualifying variants audited, only the executed one marked
	require.Len(t, h.audit.opps, 2)
	assert.True(t, h.audit.opps[0].Selected)
	assert.False(t, h.audit.opps[1].Selected)
	assert.Equal(t, "a_to_b_token0_in", h.audit.opps[0].Variant)

	require.Len(t, h.audit.latencies, 1)
	assert.Equal(t, 1, h.audit.latencies[0].Pairs)
	assert.Equal(t, 1, h.audit.latencies[0].Readings)

	require.Len(t, h.audit.execs, 1)
	assert.Equal(t, "success", h.audit.execs[0].Outcome)
	assert.Equal(t, uint64(7), h.audit.execs[0].Nonce)

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Opportunities))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Executions.WithLabelValues("success")))
	assert.Equal(t, 1000.0, testutil.ToFloat64(h.metrics.LastBlock))
}

func TestRunCycleDryRun(t *testing.T) {
	h := newHarness(t, Config{DryRun: true}, 1.02, 1.00)

	rep, err := h.driver.RunCycle(context.Background(), 1000)
	require.NoError(t, err)
	require.NotNil(t, rep.Selected)
	assert.Nil(t, rep.Execution)
	assert.Empty(t, h.exec.calls)
	assert.Len(t, h.audit.opps, 2)
	assert.Empty(t, h.audit.execs)
}

func TestRunCycleOutOfRatioFindsNothing(t *testing.T) {
	h := newHarness(t, Config{}, 4.0, 1.0)

	rep, err := h.driver.RunCycle(context.Background(), 1000)
	require.NoError(t, err)
	assert.Nil(t, rep.Selected)
	assert.Equal(t, 1, rep.Evaluation.SkippedRatio)
	assert.Empty(t, h.exec.calls)
	assert.Empty(t, h.audit.opps)
	assert.Len(t, h.audit.latencies, 1)
}

func TestRunCycleAbortsOnBatchReadFailure(t *testing.T) {
	h := newHarness(t, Config{}, 1.02, 1.00)
	h.reader.err = fmt.Errorf("aggregate: %w", eth.ErrAggregateFailed)

	_, err := h.driver.RunCycle(context.Background(), 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, eth.ErrAggregateFailed))

	assert.Empty(t, h.exec.calls)
	assert.Empty(t, h.audit.opps)
	assert.Empty(t, h.audit.latencies)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CyclesAborted.WithLabelValues(StageRead)))
}

func TestRunCycleSkipsBannedPair(t *testing.T) {
	h := newHarness(t, Config{}, 1.02, 1.00)
	key := testPair().Key()
	h.health.RecordRevert(key, 990)
	require.True(t, h.health.RecordRevert(key, 991))

	rep, err := h.driver.RunCycle(context.Background(), 1000)
	require.NoError(t, err)
	assert.Nil(t, rep.Selected)
	assert.Empty(t, h.exec.calls)

	// still audited, none selected
	require.Len(t, h.audit.opps, 2)
	for _, r := range h.audit.opps {
		assert.False(t, r.Selected)
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.BannedPairs))
}

func TestRunCycleRevertFeedsMetrics(t *testing.T) {
	h := newHarness(t, Config{}, 1.02, 1.00)
	h.exec.outcome = execution.OutcomeReverted

	_, err := h.driver.RunCycle(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Executions.WithLabelValues("reverted")))
	require.Len(t, h.audit.execs, 1)
	assert.Equal(t, "reverted", h.audit.execs[0].Outcome)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{}, discard)
	assert.Error(t, err)
}

type fakeSub struct {
	errc chan error
	once sync.Once
}

func newFakeSub() *fakeSub { return &fakeSub{errc: make(chan error, 1)} }

func (s *fakeSub) Unsubscribe()      { s.once.Do(func() { close(s.errc) }) }
func (s *fakeSub) Err() <-chan error { return s.errc }

type headScript struct {
	blocks []uint64
	fail   bool // subscription errors right after delivering blocks
}

// fakeHeads hands out one scripted batch of headers per subscription.
type fakeHeads struct {
	mu         sync.Mutex
	scripts    []headScript
	subs       []*fakeSub
	reconnects int
}

func (f *fakeHeads) SubscribeNewHead(_ context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := newFakeSub()
	f.subs = append(f.subs, sub)
	if len(f.scripts) > 0 {
		sc := f.scripts[0]
		f.scripts = f.scripts[1:]
		for _, n := range sc.blocks {
			ch <- &types.Header{Number: new(big.Int).SetUint64(n)}
		}
		if sc.fail {
			sub.errc <- errors.New("dropped")
		}
	}
	return sub, nil
}

func (f *fakeHeads) Reconnect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reconnects++
	return nil
}

func (f *fakeHeads) sub(i int) *fakeSub {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[i]
}

func TestRunCoalescesQueuedHeads(t *testing.T) {
	h := newHarness(t, Config{DryRun: true}, 1.0, 1.0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.reader.onRead = func(uint64) { cancel() }

	heads := &fakeHeads{scripts: []headScript{{blocks: []uint64{5, 7, 6}}}}
	require.NoError(t, h.driver.Run(ctx, heads))

	assert.Equal(t, []uint64{7}, h.reader.seen())
}

func TestRunReconnectsAndSkipsOldHeads(t *testing.T) {
	h := newHarness(t, Config{DryRun: true}, 1.0, 1.0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the second subscription replays 7 and then drops
	heads := &fakeHeads{scripts: []headScript{
		{blocks: []uint64{7}},
		{blocks: []uint64{7}, fail: true},
		{blocks: []uint64{8}},
	}}
	h.reader.onRead = func(block uint64) {
		switch block {
		case 7:
			heads.sub(0).errc <- errors.New("connection reset")
		case 8:
			cancel()
		}
	}

	require.NoError(t, h.driver.Run(ctx, heads))
	assert.Equal(t, []uint64{7, 8}, h.reader.seen())
	assert.Equal(t, 2, heads.reconnects)
	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Reconnects))
}

func TestNewestKeepsHighestHead(t *testing.T) {
	ch := make(chan *types.Header, 4)
	for _, n := range []int64{9, 12, 11} {
		ch <- &types.Header{Number: big.NewInt(n)}
	}
	got := newest(ch, &types.Header{Number: big.NewInt(10)})
	assert.Equal(t, int64(12), got.Number.Int64())
	assert.Empty(t, ch)
}

type headerSource struct {
	baseFee *big.Int
	asked   *big.Int
}

func (h *headerSource) HeaderByNumber(_ context.Context, n *big.Int) (*types.Header, error) {
	h.asked = n
	return &types.Header{Number: n, BaseFee: h.baseFee}, nil
}

func (h *headerSource) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(42), nil
}

func TestHeaderGasUsesBlockBaseFee(t *testing.T) {
	src := &headerSource{baseFee: big.NewInt(10_000_000)}
	g := &HeaderGas{Source: src, Block: big.NewInt(123)}

	price, err := g.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(10_000_000), price)
	assert.Equal(t, big.NewInt(123), src.asked)

	src.baseFee = nil
	price, err = g.GasPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(42), price)
}

func TestRunCycleAbortsOnBadRegistry(t *testing.T) {
	h := newHarness(t, Config{}, 1.02, 1.00)
	h.driver.deps.Registry = &fakeRegistry{err: fmt.Errorf("%w (got 0)", registry.ErrBadNativeUSD)}

	_, err := h.driver.RunCycle(context.Background(), 1000)
	assert.ErrorIs(t, err, registry.ErrBadNativeUSD)
	assert.Empty(t, h.reader.seen())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.CyclesAborted.WithLabelValues(StageLoad)))
}
