// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package aa

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// ChainFeeReader is the part of ethclient.Client used for fee estimation.
type ChainFeeReader interface {
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// EthFeeEstimator suggests maxFeePerGas = 2*baseFee + tip.
type EthFeeEstimator struct {
	chain ChainFeeReader
}

// NewEthFeeEstimator creates a fee estimator backed by an execution client.
func NewEthFeeEstimator(chain ChainFeeReader) *EthFeeEstimator {
	return &EthFeeEstimator{chain: chain}
}

// EstimateFeesPerGas implements FeeEstimator.
func (e *EthFeeEstimator) EstimateFeesPerGas(ctx context.Context) (*big.Int, *big.Int, error) {
	tip, err := e.chain.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, nil, err
	}
	head, err := e.chain.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	if head.BaseFee == nil {
		return nil, nil, errors.New("chain does not support EIP-1559")
	}
	maxFee := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	maxFee.Add(maxFee, tip)
	return maxFee, tip, nil
}
