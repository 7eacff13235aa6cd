package eth

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Arbitrum One defaults
var (
	UniswapV3Router  = common.HexToAddress("0xE592427A0AEce92De3Edee1F18E0157C05861564")
	CamelotRouter    = common.HexToAddress("0x1F721E2E82F6676FCE4eA07A5958cF098D339e18")
	MulticallAddress = common.HexToAddress("0x842eC2c7D803033Edf55E478F461FC547Bc54EB2")
	WETHAddress      = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
)

const ArbitrumChainID = 42161

// Price methods understood by the batch reader. Both return the sqrt price as
// the first word of their output.
const (
	PriceMethodSlot0       = "slot0"
	PriceMethodGlobalState = "globalState"
)

// Multicall (v1) aggregate, reverts as a whole if any inner call reverts
const MulticallABI = `[{
	"constant": true,
	"inputs": [{
		"components": [
			{"name": "target", "type": "address"},
			{"name": "callData", "type": "bytes"}
		],
		"name": "calls",
		"type": "tuple[]"
	}],
	"name": "aggregate",
	"outputs": [
		{"name": "blockNumber", "type": "uint256"},
		{"name": "returnData", "type": "bytes[]"}
	],
	"stateMutability": "view",
	"type": "function"
}]`

// slot0 on Uniswap v3 pools and globalState on Algebra pools, trimmed to the
// leading sqrt price output
const PoolPriceABI = `[
	{
		"inputs": [],
		"name": "slot0",
		"outputs": [{"internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "globalState",
		"outputs": [{"internalType": "uint160", "name": "price", "type": "uint160"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const ERC20BalanceABI = `[{
	"constant": true,
	"inputs": [{"name": "_owner", "type": "address"}],
	"name": "balanceOf",
	"outputs": [{"name": "balance", "type": "uint256"}],
	"stateMutability": "view",
	"type": "function"
}]`

// executor contract entry point: swap on routerA, swap back on routerB, revert unless profitable
const ExecutorABI = `[{
	"inputs": [
		{"internalType": "address", "name": "routerA", "type": "address"},
		{"internalType": "address", "name": "routerB", "type": "address"},
		{"internalType": "address", "name": "tokenIn", "type": "address"},
		{"internalType": "address", "name": "tokenOut", "type": "address"},
		{"internalType": "uint24", "name": "feeA", "type": "uint24"},
		{"internalType": "uint24", "name": "feeB", "type": "uint24"},
		{"internalType": "uint256", "name": "amountIn", "type": "uint256"}
	],
	"name": "executeArbitrage",
	"outputs": [],
	"stateMutability": "nonpayable",
	"type": "function"
}]`

var (
	multicallABI = mustParseABI(MulticallABI)
	poolPriceABI = mustParseABI(PoolPriceABI)
	erc20ABI     = mustParseABI(ERC20BalanceABI)
	executorABI  = mustParseABI(ExecutorABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("eth: bad embedded ABI: " + err.Error())
	}
	return parsed
}
