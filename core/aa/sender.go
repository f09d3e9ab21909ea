// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.
//
// Sender turns calls into a signed user operation and submits it to a bundler.

package aa

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
)

// SendUserOperationParameters describes one user operation to send.
// Nil fee and nonce fields are filled in by the sender.
type SendUserOperationParameters struct {
	Account              SmartAccount
	Calls                []Call
	Paymaster            *Paymaster
	PaymasterContext     any // Passed to the paymaster service verbatim
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                *big.Int
}

// UserOperationSender sends a user operation and returns its userop hash.
type UserOperationSender interface {
	SendUserOperation(ctx context.Context, params *SendUserOperationParameters) (common.Hash, error)
}

// Bundler is the subset of the ERC-4337 bundler RPC the sender needs.
type Bundler interface {
	EstimateUserOperationGas(ctx context.Context, op *UserOperation, entryPoint common.Address) (*GasEstimate, error)
	SendUserOperation(ctx context.Context, op *UserOperation, entryPoint common.Address) (common.Hash, error)
}

// FeeEstimator suggests EIP-1559 fees for a user operation.
type FeeEstimator interface {
	EstimateFeesPerGas(ctx context.Context) (maxFeePerGas, maxPriorityFeePerGas *big.Int, err error)
}

// Sender prepares, signs and submits user operations.
type Sender struct {
	bundler   Bundler
	paymaster PaymasterActions // optional paymaster service
	fees      FeeEstimator     // optional
	chainID   *big.Int
}

// NewSender creates a sender that submits to bundler for chainID.
func NewSender(bundler Bundler, chainID *big.Int) *Sender {
	return &Sender{
		bundler: bundler,
		chainID: new(big.Int).Set(chainID),
	}
}

// WithPaymaster sets the paymaster service used for sponsored operations.
func (s *Sender) WithPaymaster(pm PaymasterActions) *Sender {
	s.paymaster = pm
	return s
}

// WithFeeEstimator sets the estimator used when fees are not given.
func (s *Sender) WithFeeEstimator(f FeeEstimator) *Sender {
	s.fees = f
	return s
}

// SendUserOperation prepares, signs and submits a user operation.
func (s *Sender) SendUserOperation(ctx context.Context, params *SendUserOperationParameters) (common.Hash, error) {
	op, err := s.PrepareUserOperation(ctx, params)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := params.Account.SignUserOperation(op, s.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign user operation: %w", err)
	}
	op.Signature = sig

	hash, err := s.bundler.SendUserOperation(ctx, op, params.Account.EntryPoint())
	if err != nil {
		return common.Hash{}, fmt.Errorf("send user operation: %w", err)
	}
	log.Info("Sent user operation",
		"hash", hash,
		"sender", op.Sender,
		"nonce", op.Nonce,
		"hasPaymaster", op.HasPaymaster(),
		"totalGas", op.TotalGasLimit(),
	)
	return hash, nil
}

// PrepareUserOperation builds an unsigned user operation with gas limits and
// paymaster fields filled in. The returned operation carries a stub signature.
func (s *Sender) PrepareUserOperation(ctx context.Context, params *SendUserOperationParameters) (*UserOperation, error) {
	if params == nil || params.Account == nil {
		return nil, ErrAccountNotFound
	}
	if len(params.Calls) == 0 {
		return nil, ErrNoCalls
	}
	account := params.Account
	entryPoint := account.EntryPoint()

	// Phase 1: calldata, nonce and fees
	callData, err := account.EncodeCalls(params.Calls)
	if err != nil {
		return nil, fmt.Errorf("encode calls: %w", err)
	}
	op := &UserOperation{
		Sender:    account.Address(),
		CallData:  callData,
		Signature: account.StubSignature(),
	}
	if params.Nonce != nil {
		op.Nonce = new(big.Int).Set(params.Nonce)
	} else {
		if op.Nonce, err = account.GetNonce(ctx); err != nil {
			return nil, fmt.Errorf("get nonce: %w", err)
		}
	}
	if err := s.fillFees(ctx, op, params); err != nil {
		return nil, err
	}

	// Phase 2: paymaster stub data for estimation
	actions, err := resolvePaymaster(params.Paymaster, s.paymaster, op)
	if err != nil {
		return nil, err
	}
	req := &PaymasterRequest{
		UserOperation: op,
		EntryPoint:    entryPoint,
		ChainID:       s.chainID,
		Context:       params.PaymasterContext,
	}
	final := false
	if actions != nil {
		stub, err := actions.GetPaymasterStubData(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("paymaster stub data: %w", err)
		}
		if stub == nil {
			// No stub: the final data stands in so estimation sees the paymaster
			if stub, err = actions.GetPaymasterData(ctx, req); err != nil {
				return nil, fmt.Errorf("paymaster data: %w", err)
			}
			final = true
		} else {
			final = stub.IsFinal
		}
		applyPaymasterData(op, stub)
	}

	// Phase 3: gas estimation, keeping limits already set by the paymaster
	gas, err := s.bundler.EstimateUserOperationGas(ctx, op, entryPoint)
	if err != nil {
		return nil, fmt.Errorf("estimate user operation gas: %w", err)
	}
	applyGasEstimate(op, gas)

	// Phase 4: final paymaster data
	if actions != nil && !final {
		data, err := actions.GetPaymasterData(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("paymaster data: %w", err)
		}
		applyPaymasterData(op, data)
	}

	log.Debug("Prepared user operation",
		"sender", op.Sender,
		"nonce", op.Nonce,
		"calls", len(params.Calls),
		"paymaster", paymasterOf(op),
	)
	return op, nil
}

func (s *Sender) fillFees(ctx context.Context, op *UserOperation, params *SendUserOperationParameters) error {
	op.MaxFeePerGas = copyBig(params.MaxFeePerGas)
	op.MaxPriorityFeePerGas = copyBig(params.MaxPriorityFeePerGas)
	if op.MaxFeePerGas != nil && op.MaxPriorityFeePerGas != nil {
		return nil
	}
	if s.fees == nil {
		return fmt.Errorf("%w: missing fees and no fee estimator", ErrInvalidUserOp)
	}
	maxFee, maxPriority, err := s.fees.EstimateFeesPerGas(ctx)
	if err != nil {
		return fmt.Errorf("estimate fees: %w", err)
	}
	if op.MaxFeePerGas == nil {
		op.MaxFeePerGas = maxFee
	}
	if op.MaxPriorityFeePerGas == nil {
		op.MaxPriorityFeePerGas = maxPriority
	}
	return nil
}

func applyGasEstimate(op *UserOperation, gas *GasEstimate) {
	if gas == nil {
		return
	}
	fill := func(dst **big.Int, v *big.Int) {
		if *dst == nil && v != nil {
			*dst = new(big.Int).Set(v)
		}
	}
	fill(&op.CallGasLimit, gas.CallGasLimit)
	fill(&op.VerificationGasLimit, gas.VerificationGasLimit)
	fill(&op.PreVerificationGas, gas.PreVerificationGas)
	if op.Paymaster != nil {
		fill(&op.PaymasterVerificationGasLimit, gas.PaymasterVerificationGasLimit)
		fill(&op.PaymasterPostOpGasLimit, gas.PaymasterPostOpGasLimit)
	}
}

func paymasterOf(op *UserOperation) common.Address {
	if op.Paymaster == nil {
		return common.Address{}
	}
	return *op.Paymaster
}
