// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.
//
// Client speaks the ERC-4337 bundler JSON-RPC API.

package bundler

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/HITEYY/obsidian-aa/core/aa"
)

const (
	methodSendUserOperation        = "eth_sendUserOperation"
	methodEstimateUserOperationGas = "eth_estimateUserOperationGas"
	methodGetUserOperationReceipt  = "eth_getUserOperationReceipt"
	methodSupportedEntryPoints     = "eth_supportedEntryPoints"
	methodChainID                  = "eth_chainId"
)

const defaultReceiptPollInterval = time.Second

var errNilUserOp = errors.New("nil user operation")

// transport wraps an rpc.Client with request metrics.
type transport struct {
	rpc     *rpc.Client
	metrics *Metrics
}

func (t *transport) call(ctx context.Context, result any, method string, args ...any) error {
	start := time.Now()
	err := t.rpc.CallContext(ctx, result, method, args...)
	t.metrics.observe(method, start, err)
	if err != nil {
		log.Debug("RPC request failed", "method", method, "err", err)
	}
	return err
}

// Client is a bundler RPC client. It implements aa.Bundler.
type Client struct {
	transport
}

var _ aa.Bundler = (*Client)(nil)

// Dial connects to the bundler at endpoint.
func Dial(ctx context.Context, endpoint string) (*Client, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return NewClient(c), nil
}

// NewClient creates a bundler client using an existing RPC connection.
func NewClient(c *rpc.Client) *Client {
	return &Client{transport{rpc: c}}
}

// WithMetrics records requests on m.
func (c *Client) WithMetrics(m *Metrics) *Client {
	c.metrics = m
	return c
}

// Close closes the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// SendUserOperation submits a signed user operation and returns its hash.
func (c *Client) SendUserOperation(ctx context.Context, op *aa.UserOperation, entryPoint common.Address) (common.Hash, error) {
	if op == nil {
		return common.Hash{}, errNilUserOp
	}
	var hash common.Hash
	if err := c.call(ctx, &hash, methodSendUserOperation, op, entryPoint); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

type rpcGasEstimate struct {
	PreVerificationGas            *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit          *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit                  *hexutil.Big `json:"callGasLimit"`
	PaymasterVerificationGasLimit *hexutil.Big `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big `json:"paymasterPostOpGasLimit,omitempty"`
}

// EstimateUserOperationGas asks the bundler for the gas limits of op.
func (c *Client) EstimateUserOperationGas(ctx context.Context, op *aa.UserOperation, entryPoint common.Address) (*aa.GasEstimate, error) {
	if op == nil {
		return nil, errNilUserOp
	}
	var res rpcGasEstimate
	if err := c.call(ctx, &res, methodEstimateUserOperationGas, op, entryPoint); err != nil {
		return nil, err
	}
	return &aa.GasEstimate{
		PreVerificationGas:            toBig(res.PreVerificationGas),
		VerificationGasLimit:          toBig(res.VerificationGasLimit),
		CallGasLimit:                  toBig(res.CallGasLimit),
		PaymasterVerificationGasLimit: toBig(res.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       toBig(res.PaymasterPostOpGasLimit),
	}, nil
}

// GetUserOperationReceipt returns the receipt of an included user operation.
// It returns ethereum.NotFound while the operation is pending.
func (c *Client) GetUserOperationReceipt(ctx context.Context, hash common.Hash) (*aa.UserOpReceipt, error) {
	var receipt *aa.UserOpReceipt
	if err := c.call(ctx, &receipt, methodGetUserOperationReceipt, hash); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

// SupportedEntryPoints returns the EntryPoint addresses the bundler accepts.
func (c *Client) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var eps []common.Address
	if err := c.call(ctx, &eps, methodSupportedEntryPoints); err != nil {
		return nil, err
	}
	return eps, nil
}

// ChainID returns the chain id reported by the bundler.
func (c *Client) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.call(ctx, &id, methodChainID); err != nil {
		return nil, err
	}
	return (*big.Int)(&id), nil
}

// WaitForUserOperationReceipt polls until the operation is included or ctx
// is done. A non-positive interval uses one second.
func (c *Client) WaitForUserOperationReceipt(ctx context.Context, hash common.Hash, interval time.Duration) (*aa.UserOpReceipt, error) {
	if interval <= 0 {
		interval = defaultReceiptPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger := log.New("userOpHash", hash)
	for {
		receipt, err := c.GetUserOperationReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, ethereum.NotFound) {
			logger.Trace("User operation not yet included")
		} else {
			logger.Trace("Receipt retrieval failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func toBig(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set((*big.Int)(v))
}
