// Copyright 2025 The go-obsidian Authors

package aa

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestResolvePaymasterDefault(t *testing.T) {
	service := PaymasterFuncs{}
	op := &UserOperation{}

	actions, err := resolvePaymaster(nil, service, op)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if actions == nil {
		t.Fatal("nil paymaster should fall back to the service")
	}

	actions, err = resolvePaymaster(nil, nil, op)
	if err != nil || actions != nil {
		t.Errorf("expected no paymaster without a service, got %v, %v", actions, err)
	}
	if op.Paymaster != nil {
		t.Error("default mode must not touch the operation")
	}
}

func TestResolvePaymasterAddress(t *testing.T) {
	pmAddr := common.HexToAddress("0x3333333333333333333333333333333333333333")
	op := &UserOperation{}

	actions, err := resolvePaymaster(PaymasterAddress(pmAddr), PaymasterFuncs{}, op)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if actions != nil {
		t.Error("address mode should not consult a service")
	}
	if !op.HasPaymaster() || *op.Paymaster != pmAddr {
		t.Errorf("paymaster address not applied: %v", op.Paymaster)
	}
}

func TestResolvePaymasterCustomWithoutActions(t *testing.T) {
	_, err := resolvePaymaster(&Paymaster{Mode: PaymasterModeCustom}, nil, &UserOperation{})
	if !errors.Is(err, ErrNoPaymasterService) {
		t.Errorf("expected ErrNoPaymasterService, got %v", err)
	}
}

func TestPaymasterFuncsMissingCallbacks(t *testing.T) {
	var f PaymasterFuncs
	data, err := f.GetPaymasterStubData(context.Background(), &PaymasterRequest{})
	if data != nil || err != nil {
		t.Errorf("expected nil stub data, got %v, %v", data, err)
	}
	data, err = f.GetPaymasterData(context.Background(), &PaymasterRequest{})
	if data != nil || err != nil {
		t.Errorf("expected nil data, got %v, %v", data, err)
	}
}

func TestApplyPaymasterDataKeepsGasLimits(t *testing.T) {
	op := &UserOperation{
		PaymasterVerificationGasLimit: big.NewInt(100),
		PaymasterPostOpGasLimit:       big.NewInt(200),
	}
	applyPaymasterData(op, &PaymasterData{
		Paymaster:               common.HexToAddress("0x3333333333333333333333333333333333333333"),
		PaymasterData:           []byte{0x01},
		PaymasterPostOpGasLimit: big.NewInt(300),
	})
	if op.PaymasterVerificationGasLimit.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("verification gas limit overwritten: %s", op.PaymasterVerificationGasLimit)
	}
	if op.PaymasterPostOpGasLimit.Cmp(big.NewInt(300)) != 0 {
		t.Errorf("postOp gas limit not applied: %s", op.PaymasterPostOpGasLimit)
	}
}

func TestPaymasterModeString(t *testing.T) {
	if PaymasterModeSponsor.String() != "sponsor" {
		t.Errorf("unexpected mode name %q", PaymasterModeSponsor)
	}
	if PaymasterMode(9).String() != "PaymasterMode(9)" {
		t.Errorf("unexpected unknown mode name %q", PaymasterMode(9))
	}
}
