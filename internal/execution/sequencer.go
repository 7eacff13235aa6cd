// Package execution turns a selected opportunity into a signed transaction and
// feeds its on-chain outcome back to the pool health tracker.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pulkyeet/venue-arb/internal/arbitrage"
	"github.com/pulkyeet/venue-arb/internal/eth"
)

type Outcome string

const (
	OutcomeSuccess      Outcome = "success"
	OutcomeReverted     Outcome = "reverted"
	OutcomeTimeout      Outcome = "timeout"
	OutcomeSubmitFailed Outcome = "submit_failed"
)

type NonceSource interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
}

type Submitter interface {
	From() common.Address
	Submit(ctx context.Context, params eth.ArbParams, nonce, gasLimit uint64, gasPrice *big.Int) (common.Hash, error)
}

type Awaiter interface {
	Await(ctx context.Context, hash common.Hash, timeout time.Duration) (eth.Outcome, error)
}

// HealthRecorder receives execution outcomes; *health.Tracker implements it.
type HealthRecorder interface {
	RecordRevert(key arbitrage.PairKey, block uint64) bool
	RecordSuccess(key arbitrage.PairKey)
}

type Config struct {
	GasLimit       uint64
	GasPrice       *big.Int
	ReceiptTimeout time.Duration
	NotionalUSD    *big.Rat
	Venues         arbitrage.Venues
}

func DefaultConfig() Config {
	return Config{
		GasLimit:       550_000,
		GasPrice:       big.NewInt(200_000_000), // 0.2 gwei
		ReceiptTimeout: 60 * time.Second,
		NotionalUSD:    big.NewRat(100, 1),
		Venues:         arbitrage.DefaultVenues(),
	}
}

// Result describes one execution attempt.
type Result struct {
	Opportunity arbitrage.Opportunity
	Params      eth.ArbParams
	Outcome     Outcome
	Nonce       uint64
	TxHash      common.Hash
	Banned      bool // the revert triggered a ban
	Err         error
}

type Sequencer struct {
	cfg       Config
	nonces    NonceSource
	submitter Submitter
	awaiter   Awaiter
	health    HealthRecorder
	cursor    NonceCursor
	log       *slog.Logger
}

func NewSequencer(cfg Config, nonces NonceSource, submitter Submitter, awaiter Awaiter, health HealthRecorder, log *slog.Logger) *Sequencer {
	return &Sequencer{
		cfg:       cfg,
		nonces:    nonces,
		submitter: submitter,
		awaiter:   awaiter,
		health:    health,
		log:       log.With("component", "execution"),
	}
}

// Execute submits the opportunity and blocks until its receipt arrives or
// the receipt timeout passes. Timeouts leave pool health untouched.
func (s *Sequencer) Execute(ctx context.Context, opp arbitrage.Opportunity) Result {
	res := Result{Opportunity: opp, Outcome: OutcomeSubmitFailed}
	key := opp.Pair.Key()

	params, err := arbitrage.BuildParams(opp, s.cfg.Venues, s.cfg.NotionalUSD)
	if err != nil {
		res.Err = fmt.Errorf("build params: %w", err)
		s.log.Warn("build params failed", "pair", key.String(), "error", err)
		return res
	}
	res.Params = params

	chainNonce, err := s.nonces.NonceAt(ctx, s.submitter.From(), nil)
	if err != nil {
		res.Err = fmt.Errorf("fetch nonce: %w", err)
		s.log.Warn("nonce lookup failed", "error", err)
		return res
	}
	nonce := s.cursor.Next(chainNonce)
	res.Nonce = nonce

	hash, err := s.submitter.Submit(ctx, params, nonce, s.cfg.GasLimit, s.cfg.GasPrice)
	if err != nil {
		res.Err = err
		s.log.Warn("submit failed", "pair", key.String(), "nonce", nonce, "error", err)
		return res
	}
	s.cursor.Commit(nonce)
	res.TxHash = hash

	s.log.Info("submitted",
		"pair", key.String(),
		"variant", opp.Variant.String(),
		"nonce", nonce,
		"tx", hash.Hex(),
		"profit_usd", opp.ProfitFloat(),
	)

	outcome, err := s.awaiter.Await(ctx, hash, s.cfg.ReceiptTimeout)
	if err != nil {
		res.Err = err
	}

	switch outcome {
	case eth.OutcomeSuccess:
		res.Outcome = OutcomeSuccess
		s.health.RecordSuccess(key)
		s.log.Info("executed", "tx", hash.Hex())
	case eth.OutcomeReverted:
		res.Outcome = OutcomeReverted
		res.Banned = s.health.RecordRevert(key, opp.BlockNumber)
		s.log.Warn("reverted", "tx", hash.Hex(), "pair", key.String(), "banned", res.Banned)
	default:
		res.Outcome = OutcomeTimeout
		s.log.Warn("no receipt before timeout", "tx", hash.Hex(), "timeout", s.cfg.ReceiptTimeout, "error", err)
	}
	return res
}

// LastNonce exposes the cursor for reporting.
func (s *Sequencer) LastNonce() (uint64, bool) {
	return s.cursor.Last()
}
