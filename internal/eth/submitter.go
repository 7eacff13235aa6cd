package eth

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ArbParams is the argument set of executeArbitrage.
type ArbParams struct {
	RouterA  common.Address
	RouterB  common.Address
	TokenIn  common.Address
	TokenOut common.Address
	FeeA     uint32
	FeeB     uint32
	AmountIn *big.Int
}

// BuildExecuteCalldata packs executeArbitrage for the executor contract.
func BuildExecuteCalldata(p ArbParams) ([]byte, error) {
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return nil, fmt.Errorf("amountIn must be positive")
	}
	// uint24 arguments pack from *big.Int
	calldata, err := executorABI.Pack("executeArbitrage",
		p.RouterA, p.RouterB, p.TokenIn, p.TokenOut,
		new(big.Int).SetUint64(uint64(p.FeeA)),
		new(big.Int).SetUint64(uint64(p.FeeB)),
		p.AmountIn,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeArbitrage: %w", err)
	}
	return calldata, nil
}

type TxSender interface {
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

// TxSubmitter signs legacy transactions to the executor contract and broadcasts them.
type TxSubmitter struct {
	sender   TxSender
	key      *ecdsa.PrivateKey
	from     common.Address
	executor common.Address
	signer   types.Signer
}

func NewTxSubmitter(sender TxSender, privateKeyHex string, executor common.Address, chainID *big.Int) (*TxSubmitter, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &TxSubmitter{
		sender:   sender,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		executor: executor,
		signer:   types.LatestSignerForChainID(chainID),
	}, nil
}

// From is the account whose nonce sequence the submitter consumes.
func (s *TxSubmitter) From() common.Address {
	return s.from
}

func (s *TxSubmitter) Submit(ctx context.Context, params ArbParams, nonce, gasLimit uint64, gasPrice *big.Int) (common.Hash, error) {
	calldata, err := BuildExecuteCalldata(params)
	if err != nil {
		return common.Hash{}, err
	}

	to := s.executor
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    big.NewInt(0),
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     calldata,
	})

	signed, err := types.SignTx(tx, s.signer, s.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := s.sender.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send tx: %w", err)
	}
	return signed.Hash(), nil
}
