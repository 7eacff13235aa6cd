package eth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Outcome of a broadcast transaction as seen by the receipt waiter.
type Outcome int

const (
	OutcomeTimeout Outcome = iota
	OutcomeSuccess
	OutcomeReverted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeReverted:
		return "reverted"
	default:
		return "timeout"
	}
}

type ReceiptFetcher interface {
	TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// ReceiptWaiter polls for a receipt until it appears or the timeout elapses.
type ReceiptWaiter struct {
	fetcher  ReceiptFetcher
	interval time.Duration
}

func NewReceiptWaiter(fetcher ReceiptFetcher, interval time.Duration) *ReceiptWaiter {
	if interval <= 0 {
		interval = time.Second
	}
	return &ReceiptWaiter{fetcher: fetcher, interval: interval}
}

// Await never reports a timeout as an error: callers treat it as an
// indeterminate outcome. Errors are only returned for RPC failures other than
// "not found" and for a cancelled parent context.
func (w *ReceiptWaiter) Await(ctx context.Context, hash common.Hash, timeout time.Duration) (Outcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		receipt, err := w.fetcher.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusSuccessful {
				return OutcomeSuccess, nil
			}
			return OutcomeReverted, nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil:
			return OutcomeTimeout, fmt.Errorf("fetch receipt %s: %w", hash.Hex(), err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return OutcomeTimeout, ctx.Err()
			}
			return OutcomeTimeout, nil
		case <-ticker.C:
		}
	}
}
