// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package erc7579

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/HITEYY/obsidian-aa/core/aa"
)

// InstallModuleParameters describes a single module install.
type InstallModuleParameters struct {
	Account  aa.SmartAccount
	Type     ModuleType
	Address  common.Address
	InitData []byte
	Calls    []aa.Call

	Paymaster            *aa.Paymaster
	PaymasterContext     any
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                *big.Int
}

// InstallModule sends one user operation that installs a module on the
// account, followed by any extra calls.
func InstallModule(ctx context.Context, client Client, params *InstallModuleParameters) (common.Hash, error) {
	account := resolveAccount(client, params.Account)
	if account == nil {
		return common.Hash{}, aa.ErrAccountNotFound
	}
	installs, err := EncodeInstallModule(account, Module{
		Type:    params.Type,
		Address: params.Address,
		Context: params.InitData,
	})
	if err != nil {
		return common.Hash{}, err
	}
	log.Debug("Installing module", "account", account.Address(), "type", params.Type, "module", params.Address)

	return client.SendUserOperation(ctx, &aa.SendUserOperationParameters{
		Account:              account,
		Calls:                appendCalls(installs, params.Calls),
		Paymaster:            params.Paymaster,
		PaymasterContext:     params.PaymasterContext,
		MaxFeePerGas:         params.MaxFeePerGas,
		MaxPriorityFeePerGas: params.MaxPriorityFeePerGas,
		Nonce:                params.Nonce,
	})
}
