// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package aa

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// EntryPointV07Address is the canonical EntryPoint v0.7 deployment.
	EntryPointV07Address = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

	ErrAccountNotFound    = errors.New("smart account not found")
	ErrInvalidUserOp      = errors.New("invalid user operation")
	ErrNoCalls            = errors.New("user operation has no calls")
	ErrNoPaymasterService = errors.New("no paymaster service configured")
)

// SmartAccount is a contract account that can be driven by user operations.
type SmartAccount interface {
	// Address returns the account contract address (the userop sender).
	Address() common.Address

	// EntryPoint returns the EntryPoint the account validates against.
	EntryPoint() common.Address

	// EncodeCalls encodes calls into the account's execution calldata.
	EncodeCalls(calls []Call) ([]byte, error)

	// GetNonce reads the next userop nonce for the account.
	GetNonce(ctx context.Context) (*big.Int, error)

	// StubSignature returns a signature with the right shape for gas estimation.
	StubSignature() []byte

	// SignUserOperation signs the userop hash for chainID.
	SignUserOperation(op *UserOperation, chainID *big.Int) ([]byte, error)
}
