package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ErrNoEndpoint = errors.New("no working rpc endpoint")

// Client is an ethclient that can be redialed in place, so components holding
// it survive a reconnect.
type Client struct {
	mu        sync.RWMutex
	rpc       *ethclient.Client
	url       string
	endpoints []string
}

// Dial tries each endpoint in order and keeps the first one that can serve the
// latest header.
func Dial(ctx context.Context, endpoints []string) (*Client, error) {
	rpc, url, err := dialFirst(ctx, endpoints)
	if err != nil {
		return nil, err
	}
	return &Client{rpc: rpc, url: url, endpoints: endpoints}, nil
}

// Reconnect drops the current connection and dials the endpoint list again.
func (c *Client) Reconnect(ctx context.Context) error {
	rpc, url, err := dialFirst(ctx, c.endpoints)
	if err != nil {
		return err
	}
	c.mu.Lock()
	old := c.rpc
	c.rpc, c.url = rpc, url
	c.mu.Unlock()
	old.Close()
	return nil
}

func dialFirst(ctx context.Context, endpoints []string) (*ethclient.Client, string, error) {
	var lastErr error
	for _, url := range endpoints {
		rpc, err := ethclient.DialContext(ctx, url)
		if err != nil {
			lastErr = fmt.Errorf("dial %s: %w", url, err)
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		_, err = rpc.HeaderByNumber(probeCtx, nil)
		cancel()
		if err != nil {
			rpc.Close()
			lastErr = fmt.Errorf("probe %s: %w", url, err)
			continue
		}
		return rpc, url, nil
	}
	if lastErr == nil {
		return nil, "", ErrNoEndpoint
	}
	return nil, "", fmt.Errorf("%w: %v", ErrNoEndpoint, lastErr)
}

func (c *Client) conn() *ethclient.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rpc
}

func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.url
}

func (c *Client) Close() {
	c.conn().Close()
}

func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	return c.conn().ChainID(ctx)
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.conn().HeaderByNumber(ctx, number)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.conn().SuggestGasPrice(ctx)
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.conn().CallContract(ctx, msg, blockNumber)
}

func (c *Client) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return c.conn().NonceAt(ctx, account, blockNumber)
}

func (c *Client) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.conn().SendTransaction(ctx, tx)
}

func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.conn().TransactionReceipt(ctx, hash)
}

func (c *Client) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	return c.conn().SubscribeNewHead(ctx, ch)
}
