// Package bot runs one evaluation cycle per new block: reload the registry,
// read pool state in one batch, evaluate, audit, and execute the best
// opportunity.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/pulkyeet/venue-arb/internal/eth"
	"github.com/pulkyeet/venue-arb/internal/execution"
	"github.com/pulkyeet/venue-arb/internal/health"
	"github.com/pulkyeet/venue-arb/internal/metrics"
	"github.com/pulkyeet/venue-arb/internal/registry"
	"github.com/pulkyeet/venue-arb/internal/storage"
)

// Stage labels used for latency metrics and aborted-cycle counts.
const (
	StageLoad     = "load"
	StageGas      = "gas"
	StageRead     = "batch_read"
	StageEvaluate = "evaluate"
	StageExecute  = "execute"
)

type StateReader interface {
	Read(ctx context.Context, pairs []arbitrage.PoolPair, blockNumber *big.Int) (map[arbitrage.PairKey]arbitrage.PoolReading, error)
}

type GasPricer interface {
	GasPrice(ctx context.Context) (*big.Int, error)
}

type Executor interface {
	Execute(ctx context.Context, opp arbitrage.Opportunity) execution.Result
}

// HeadSource delivers new block headers and can replace its connection.
type HeadSource interface {
	SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error)
	Reconnect(ctx context.Context) error
}

// OracleGas serves the cached gas price from Source.
type OracleGas struct {
	Oracle *eth.GasOracle
	Source eth.GasPriceSource
}

func (g OracleGas) GasPrice(ctx context.Context) (*big.Int, error) {
	return g.Oracle.GasPrice(ctx, g.Source)
}

// HeaderGas prices gas from the base fee of a fixed block. Replays use it so
// historical cycles are costed at the gas price of their own block.
type HeaderGas struct {
	Source eth.GasPriceSource
	Block  *big.Int
}

func (g *HeaderGas) GasPrice(ctx context.Context) (*big.Int, error) {
	h, err := g.Source.HeaderByNumber(ctx, g.Block)
	if err != nil {
		return nil, fmt.Errorf("header %v: %w", g.Block, err)
	}
	if h.BaseFee == nil {
		return g.Source.SuggestGasPrice(ctx)
	}
	return new(big.Int).Set(h.BaseFee), nil
}

type Config struct {
	// DryRun ranks and audits without submitting anything.
	DryRun         bool
	ReconnectDelay time.Duration
}

// Deps are the collaborators of a Driver. Audit and Executor may be nil;
// a nil Executor forces dry-run.
type Deps struct {
	Registry registry.Source
	Gas      GasPricer
	Reader   StateReader
	Engine   *arbitrage.Engine
	Health   *health.Tracker
	Executor Executor
	Audit    storage.Audit
	Metrics  *metrics.Metrics
}

// CycleReport summarizes one cycle for logging and tests.
type CycleReport struct {
	Block      uint64
	Pairs      int
	Readings   int
	Swept      int
	Evaluation arbitrage.Evaluation
	Selected   *arbitrage.Opportunity
	Execution  *execution.Result
}

type Driver struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	lastBlock uint64
	hasLast   bool
}

func New(cfg Config, deps Deps, log *slog.Logger) (*Driver, error) {
	switch {
	case deps.Registry == nil:
		return nil, errors.New("bot: registry source is required")
	case deps.Gas == nil:
		return nil, errors.New("bot: gas pricer is required")
	case deps.Reader == nil:
		return nil, errors.New("bot: state reader is required")
	case deps.Engine == nil:
		return nil, errors.New("bot: engine is required")
	case deps.Health == nil:
		return nil, errors.New("bot: health tracker is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Executor == nil {
		cfg.DryRun = true
	}
	return &Driver{cfg: cfg, deps: deps, log: log.With("component", "driver")}, nil
}

func (d *Driver) abort(stage string, err error) error {
	d.deps.Metrics.CyclesAborted.WithLabelValues(stage).Inc()
	return fmt.Errorf("%s: %w", stage, err)
}

// RunCycle evaluates the registry at block. A failed registry load, gas
// lookup or batch read abandons the cycle; audit failures are logged only.
func (d *Driver) RunCycle(ctx context.Context, block uint64) (CycleReport, error) {
	m := d.deps.Metrics
	m.Cycles.Inc()
	rep := CycleReport{Block: block}

	start := time.Now()
	snap, err := d.deps.Registry.Load(ctx)
	if err != nil {
		return rep, d.abort(StageLoad, err)
	}
	loadDur := time.Since(start)
	m.ObserveStage(StageLoad, loadDur)
	rep.Pairs = len(snap.Pairs)
	if snap.Skipped > 0 {
		m.PairsSkipped.WithLabelValues("registry").Add(float64(snap.Skipped))
	}

	gasPrice, err := d.deps.Gas.GasPrice(ctx)
	if err != nil {
		return rep, d.abort(StageGas, err)
	}
	m.GasPriceGwei.Set(weiToGwei(gasPrice))

	start = time.Now()
	readings, err := d.deps.Reader.Read(ctx, snap.Pairs, new(big.Int).SetUint64(block))
	if err != nil {
		return rep, d.abort(StageRead, err)
	}
	readDur := time.Since(start)
	m.ObserveStage(StageRead, readDur)
	rep.Readings = len(readings)

	rep.Swept = d.deps.Health.Sweep(block)

	start = time.Now()
	eval := d.deps.Engine.Evaluate(snap.Pairs, readings, gasPrice, snap.NativeUSD, block)
	arbitrage.Rank(eval.Opportunities)
	best, ok := arbitrage.SelectBest(eval.Opportunities, d.deps.Health, block)
	evalDur := time.Since(start)
	m.ObserveStage(StageEvaluate, evalDur)
	rep.Evaluation = eval

	m.Opportunities.Add(float64(len(eval.Opportunities)))
	m.PairsSkipped.WithLabelValues("missing_reading").Add(float64(eval.MissingReading))
	m.PairsSkipped.WithLabelValues("liquidity").Add(float64(eval.SkippedLiquidity))
	m.PairsSkipped.WithLabelValues("ratio").Add(float64(eval.SkippedRatio))
	if len(eval.Opportunities) > 0 {
		m.BestProfitUSD.Set(eval.Opportunities[0].ProfitFloat())
	}

	if ok {
		rep.Selected = &best
	}
	d.recordCycle(ctx, block, eval.Opportunities, rep.Selected, storage.LatencyRecord{
		BlockNumber: block,
		Pairs:       rep.Pairs,
		Readings:    rep.Readings,
		Load:        loadDur,
		Read:        readDur,
		Eval:        evalDur,
	})

	d.log.Info("cycle",
		"block", block,
		"pairs", rep.Pairs,
		"readings", rep.Readings,
		"evaluated", eval.Evaluated,
		"opportunities", len(eval.Opportunities),
		"load_ms", loadDur.Milliseconds(),
		"read_ms", readDur.Milliseconds(),
		"eval_ms", evalDur.Milliseconds(),
	)

	if ok && !d.cfg.DryRun {
		start = time.Now()
		res := d.deps.Executor.Execute(ctx, best)
		m.ObserveStage(StageExecute, time.Since(start))
		rep.Execution = &res
		d.recordExecution(ctx, res)
		if res.Outcome == execution.OutcomeReverted {
			d.logPairHealth(best.Pair.Key(), block)
		}
	} else if ok {
		d.log.Info("dry run, not submitting",
			"pair", best.Pair.Key().String(),
			"variant", best.Variant.String(),
			"profit_usd", best.ProfitFloat(),
		)
	}

	m.BannedPairs.Set(float64(d.deps.Health.Banned(block)))
	m.LastBlock.Set(float64(block))
	return rep, nil
}

func (d *Driver) recordCycle(ctx context.Context, block uint64, opps []arbitrage.Opportunity, selected *arbitrage.Opportunity, lat storage.LatencyRecord) {
	if d.deps.Audit == nil {
		return
	}
	if len(opps) > 0 {
		recs := make([]storage.OpportunityRecord, 0, len(opps))
		picked := false
		for _, o := range opps {
			// first match only: two variants of one pair can tie
			isSel := !picked && selected != nil && o.Pair.Key() == selected.Pair.Key() && o.Variant == selected.Variant
			picked = picked || isSel
			recs = append(recs, storage.NewOpportunityRecord(o, isSel))
		}
		if err := d.deps.Audit.RecordOpportunities(ctx, recs); err != nil {
			d.log.Error("audit opportunities failed", "block", block, "error", err)
		}
	}
	if err := d.deps.Audit.RecordLatency(ctx, lat); err != nil {
		d.log.Error("audit latency failed", "block", block, "error", err)
	}
}

func (d *Driver) logPairHealth(key arbitrage.PairKey, block uint64) {
	h, ok := d.deps.Health.Get(key)
	if !ok {
		return
	}
	d.log.Warn("pair health",
		"pair", key.String(),
		"state", h.State(block),
		"reverts", h.ConsecutiveReverts,
		"banned_until", h.BannedUntilBlock,
	)
}

func (d *Driver) recordExecution(ctx context.Context, res execution.Result) {
	m := d.deps.Metrics
	m.Executions.WithLabelValues(string(res.Outcome)).Inc()
	if res.Banned {
		m.Bans.Inc()
	}
	if d.deps.Audit == nil {
		return
	}

	rec := storage.ExecutionRecord{
		BlockNumber: res.Opportunity.BlockNumber,
		VenueAPool:  res.Opportunity.Pair.VenueA.Hex(),
		VenueBPool:  res.Opportunity.Pair.VenueB.Hex(),
		Variant:     res.Opportunity.Variant.String(),
		Nonce:       res.Nonce,
		Outcome:     string(res.Outcome),
		ProfitUSD:   storage.RatToDecimal(res.Opportunity.Profit),
	}
	if res.Outcome != execution.OutcomeSubmitFailed {
		rec.TxHash = res.TxHash.Hex()
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := d.deps.Audit.RecordExecution(ctx, rec); err != nil {
		d.log.Error("audit execution failed", "error", err)
	}
}

// Run follows new heads until ctx ends. Heads that queue up during a cycle
// collapse to the newest; heads at or below the last processed block are
// ignored. A lost subscription is re-established on a fresh connection.
func (d *Driver) Run(ctx context.Context, heads HeadSource) error {
	for {
		err := d.follow(ctx, heads)
		if ctx.Err() != nil {
			return nil
		}
		d.log.Warn("head subscription lost", "error", err)
		d.deps.Metrics.Reconnects.Inc()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(d.cfg.ReconnectDelay):
		}
		if err := heads.Reconnect(ctx); err != nil {
			d.log.Error("reconnect failed", "error", err)
		}
	}
}

func (d *Driver) follow(ctx context.Context, heads HeadSource) error {
	ch := make(chan *types.Header, 64)
	sub, err := heads.SubscribeNewHead(ctx, ch)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("subscription: %w", err)
		case h := <-ch:
			select {
			case err := <-sub.Err():
				return fmt.Errorf("subscription: %w", err)
			default:
			}

			n := newest(ch, h).Number.Uint64()
			if d.hasLast && n <= d.lastBlock {
				continue
			}
			d.lastBlock, d.hasLast = n, true

			if _, err := d.RunCycle(ctx, n); err != nil {
				d.log.Warn("cycle abandoned", "block", n, "error", err)
			}
		}
	}
}

// newest drains whatever is already queued and keeps the highest head.
func newest(ch <-chan *types.Header, h *types.Header) *types.Header {
	for {
		select {
		case next := <-ch:
			if next.Number.Cmp(h.Number) > 0 {
				h = next
			}
		default:
			return h
		}
	}
}

func weiToGwei(wei *big.Int) float64 {
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(1e9)).Float64()
	return f
}
