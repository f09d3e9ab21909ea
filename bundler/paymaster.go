// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package bundler

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/HITEYY/obsidian-aa/core/aa"
)

const (
	methodGetPaymasterStubData = "pm_getPaymasterStubData"
	methodGetPaymasterData     = "pm_getPaymasterData"
)

var errNilPaymasterRequest = errors.New("nil paymaster request")

// PaymasterClient is an ERC-7677 paymaster service client. It implements
// aa.PaymasterActions.
type PaymasterClient struct {
	transport
}

var _ aa.PaymasterActions = (*PaymasterClient)(nil)

// DialPaymaster connects to the paymaster service at endpoint.
func DialPaymaster(ctx context.Context, endpoint string) (*PaymasterClient, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return NewPaymasterClient(c), nil
}

// NewPaymasterClient creates a paymaster client using an existing RPC
// connection. Bundlers that also serve pm_ methods can share one connection.
func NewPaymasterClient(c *rpc.Client) *PaymasterClient {
	return &PaymasterClient{transport{rpc: c}}
}

// WithMetrics records requests on m.
func (p *PaymasterClient) WithMetrics(m *Metrics) *PaymasterClient {
	p.metrics = m
	return p
}

// Close closes the underlying RPC connection.
func (p *PaymasterClient) Close() {
	p.rpc.Close()
}

type rpcPaymasterData struct {
	Paymaster                     common.Address `json:"paymaster"`
	PaymasterData                 hexutil.Bytes  `json:"paymasterData"`
	PaymasterVerificationGasLimit *hexutil.Big   `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big   `json:"paymasterPostOpGasLimit,omitempty"`
	IsFinal                       bool           `json:"isFinal,omitempty"`
}

// GetPaymasterStubData implements aa.PaymasterActions.
func (p *PaymasterClient) GetPaymasterStubData(ctx context.Context, req *aa.PaymasterRequest) (*aa.PaymasterData, error) {
	return p.request(ctx, methodGetPaymasterStubData, req)
}

// GetPaymasterData implements aa.PaymasterActions.
func (p *PaymasterClient) GetPaymasterData(ctx context.Context, req *aa.PaymasterRequest) (*aa.PaymasterData, error) {
	return p.request(ctx, methodGetPaymasterData, req)
}

func (p *PaymasterClient) request(ctx context.Context, method string, req *aa.PaymasterRequest) (*aa.PaymasterData, error) {
	if req == nil || req.UserOperation == nil || req.ChainID == nil {
		return nil, errNilPaymasterRequest
	}
	pmContext := req.Context
	if pmContext == nil {
		pmContext = map[string]any{}
	}
	var res rpcPaymasterData
	if err := p.call(ctx, &res, method, req.UserOperation, req.EntryPoint, (*hexutil.Big)(req.ChainID), pmContext); err != nil {
		return nil, err
	}
	return &aa.PaymasterData{
		Paymaster:                     res.Paymaster,
		PaymasterData:                 res.PaymasterData,
		PaymasterVerificationGasLimit: toBig(res.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       toBig(res.PaymasterPostOpGasLimit),
		IsFinal:                       res.IsFinal,
	}, nil
}
