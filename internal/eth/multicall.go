package eth

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

var ErrAggregateFailed = errors.New("multicall aggregate failed")

// Call is one read inside an aggregated batch. Field names must match the
// multicall tuple components for abi packing.
type Call struct {
	Target   common.Address
	CallData []byte
}

type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Multicall bundles reads into a single eth_call against a Multicall v1 contract.
type Multicall struct {
	caller  ContractCaller
	address common.Address
}

func NewMulticall(caller ContractCaller, address common.Address) *Multicall {
	return &Multicall{caller: caller, address: address}
}

// Aggregate returns one payload per call, in call order.
func (m *Multicall) Aggregate(ctx context.Context, calls []Call, blockNumber *big.Int) ([][]byte, error) {
	if len(calls) == 0 {
		return nil, nil
	}

	data, err := multicallABI.Pack("aggregate", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate: %w", err)
	}

	result, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &m.address, Data: data}, blockNumber)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAggregateFailed, err)
	}

	unpacked, err := multicallABI.Unpack("aggregate", result)
	if err != nil {
		return nil, fmt.Errorf("%w: unpack: %v", ErrAggregateFailed, err)
	}
	if len(unpacked) < 2 {
		return nil, fmt.Errorf("%w: unexpected output length %d", ErrAggregateFailed, len(unpacked))
	}

	returnData, ok := unpacked[1].([][]byte)
	if !ok {
		return nil, fmt.Errorf("%w: returnData type assertion failed", ErrAggregateFailed)
	}
	if len(returnData) != len(calls) {
		return nil, fmt.Errorf("%w: got %d results for %d calls", ErrAggregateFailed, len(returnData), len(calls))
	}
	return returnData, nil
}

// PriceCall encodes the venue's sqrt price getter for a pool.
func PriceCall(pool common.Address, method string) (Call, error) {
	if _, ok := poolPriceABI.Methods[method]; !ok {
		return Call{}, fmt.Errorf("unknown price method %q", method)
	}
	data, err := poolPriceABI.Pack(method)
	if err != nil {
		return Call{}, fmt.Errorf("pack %s: %w", method, err)
	}
	return Call{Target: pool, CallData: data}, nil
}

// BalanceCall encodes token.balanceOf(owner).
func BalanceCall(token, owner common.Address) (Call, error) {
	data, err := erc20ABI.Pack("balanceOf", owner)
	if err != nil {
		return Call{}, fmt.Errorf("pack balanceOf: %w", err)
	}
	return Call{Target: token, CallData: data}, nil
}

// PackAggregateResult builds the return payload of aggregate; used by tests
// and fakes that stand in for the multicall contract.
func PackAggregateResult(blockNumber *big.Int, returnData [][]byte) ([]byte, error) {
	return multicallABI.Methods["aggregate"].Outputs.Pack(blockNumber, returnData)
}
