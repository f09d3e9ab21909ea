// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.
//
// Paymaster selection for gas sponsorship of user operations.

package aa

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PaymasterMode defines how a user operation finds its paymaster.
type PaymasterMode uint8

const (
	// PaymasterModeDefault uses the sender's configured paymaster service, if any
	PaymasterModeDefault PaymasterMode = iota
	// PaymasterModeAddress uses a fixed paymaster address with no paymaster data
	PaymasterModeAddress
	// PaymasterModeSponsor requires the sender's paymaster service
	PaymasterModeSponsor
	// PaymasterModeCustom uses caller-supplied PaymasterActions
	PaymasterModeCustom
)

func (m PaymasterMode) String() string {
	switch m {
	case PaymasterModeDefault:
		return "default"
	case PaymasterModeAddress:
		return "address"
	case PaymasterModeSponsor:
		return "sponsor"
	case PaymasterModeCustom:
		return "custom"
	}
	return fmt.Sprintf("PaymasterMode(%d)", uint8(m))
}

// Paymaster selects the paymaster of a user operation. A nil *Paymaster is the
// same as PaymasterModeDefault.
type Paymaster struct {
	Mode    PaymasterMode
	Address common.Address   // For address mode
	Actions PaymasterActions // For custom mode
}

// PaymasterAddress returns a Paymaster fixed to addr.
func PaymasterAddress(addr common.Address) *Paymaster {
	return &Paymaster{Mode: PaymasterModeAddress, Address: addr}
}

// SponsoredPaymaster returns a Paymaster that requires the sender's paymaster service.
func SponsoredPaymaster() *Paymaster {
	return &Paymaster{Mode: PaymasterModeSponsor}
}

// CustomPaymaster returns a Paymaster that uses actions.
func CustomPaymaster(actions PaymasterActions) *Paymaster {
	return &Paymaster{Mode: PaymasterModeCustom, Actions: actions}
}

// PaymasterRequest is passed to the paymaster service (ERC-7677).
type PaymasterRequest struct {
	UserOperation *UserOperation
	EntryPoint    common.Address
	ChainID       *big.Int
	Context       any
}

// PaymasterData holds the paymaster fields returned by a paymaster service.
type PaymasterData struct {
	Paymaster                     common.Address
	PaymasterData                 []byte
	PaymasterVerificationGasLimit *big.Int // optional
	PaymasterPostOpGasLimit       *big.Int // optional
	IsFinal                       bool     // stub data is already final
}

// PaymasterActions retrieves paymaster fields for a user operation.
type PaymasterActions interface {
	// GetPaymasterStubData returns fields used for gas estimation.
	GetPaymasterStubData(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error)

	// GetPaymasterData returns fields used for sending.
	GetPaymasterData(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error)
}

// PaymasterFuncs adapts optional functions to PaymasterActions. A missing
// function returns (nil, nil). Without StubData the sender fetches Data once,
// before gas estimation. Without Data the stub fields are final.
type PaymasterFuncs struct {
	StubData func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error)
	Data     func(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error)
}

func (f PaymasterFuncs) GetPaymasterStubData(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
	if f.StubData == nil {
		return nil, nil
	}
	return f.StubData(ctx, req)
}

func (f PaymasterFuncs) GetPaymasterData(ctx context.Context, req *PaymasterRequest) (*PaymasterData, error) {
	if f.Data == nil {
		return nil, nil
	}
	return f.Data(ctx, req)
}

// resolvePaymaster applies the static part of pm to op and returns the
// actions to consult, if any.
func resolvePaymaster(pm *Paymaster, service PaymasterActions, op *UserOperation) (PaymasterActions, error) {
	if pm == nil {
		return service, nil
	}
	switch pm.Mode {
	case PaymasterModeDefault:
		return service, nil

	case PaymasterModeAddress:
		addr := pm.Address
		op.Paymaster = &addr
		op.PaymasterData = []byte{}
		return nil, nil

	case PaymasterModeSponsor:
		if service == nil {
			return nil, ErrNoPaymasterService
		}
		return service, nil

	case PaymasterModeCustom:
		if pm.Actions == nil {
			return nil, fmt.Errorf("%w: custom paymaster without actions", ErrNoPaymasterService)
		}
		return pm.Actions, nil
	}
	return nil, fmt.Errorf("unknown paymaster mode %d", pm.Mode)
}

// applyPaymasterData copies paymaster fields into op. Gas limits the service
// did not return are kept.
func applyPaymasterData(op *UserOperation, data *PaymasterData) {
	if data == nil {
		return
	}
	addr := data.Paymaster
	op.Paymaster = &addr
	op.PaymasterData = common.CopyBytes(data.PaymasterData)
	if data.PaymasterVerificationGasLimit != nil {
		op.PaymasterVerificationGasLimit = new(big.Int).Set(data.PaymasterVerificationGasLimit)
	}
	if data.PaymasterPostOpGasLimit != nil {
		op.PaymasterPostOpGasLimit = new(big.Int).Set(data.PaymasterPostOpGasLimit)
	}
}
