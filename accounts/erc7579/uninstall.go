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

// Client is what module actions need from an account abstraction client.
// *aa.Client implements it.
type Client interface {
	Account() aa.SmartAccount
	SendUserOperation(ctx context.Context, params *aa.SendUserOperationParameters) (common.Hash, error)
}

// UninstallModuleParameters describes a single module uninstall. At most one
// of Context and DeInitData may be set.
type UninstallModuleParameters struct {
	Account    aa.SmartAccount // Defaults to the client account
	Type       ModuleType
	Address    common.Address
	Context    []byte
	DeInitData []byte

	// Extra calls executed after the uninstall, in order
	Calls []aa.Call

	Paymaster            *aa.Paymaster
	PaymasterContext     any
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                *big.Int
}

// UninstallModule sends one user operation that uninstalls a module from the
// account, followed by any extra calls. It returns the userop hash.
func UninstallModule(ctx context.Context, client Client, params *UninstallModuleParameters) (common.Hash, error) {
	account := resolveAccount(client, params.Account)
	if account == nil {
		return common.Hash{}, aa.ErrAccountNotFound
	}
	payload, err := deInitPayload(params.Context, params.DeInitData)
	if err != nil {
		return common.Hash{}, err
	}
	return UninstallModules(ctx, client, &UninstallModulesParameters{
		Account:              account,
		Modules:              []Module{{Type: params.Type, Address: params.Address, Context: payload}},
		Calls:                params.Calls,
		Paymaster:            params.Paymaster,
		PaymasterContext:     params.PaymasterContext,
		MaxFeePerGas:         params.MaxFeePerGas,
		MaxPriorityFeePerGas: params.MaxPriorityFeePerGas,
		Nonce:                params.Nonce,
	})
}

// UninstallModulesParameters describes several module uninstalls sent as one
// user operation. Each Module.Context is the module's deInitData.
type UninstallModulesParameters struct {
	Account aa.SmartAccount
	Modules []Module
	Calls   []aa.Call

	Paymaster            *aa.Paymaster
	PaymasterContext     any
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
	Nonce                *big.Int
}

// UninstallModules sends one user operation that uninstalls every module in
// order, followed by any extra calls.
func UninstallModules(ctx context.Context, client Client, params *UninstallModulesParameters) (common.Hash, error) {
	account := resolveAccount(client, params.Account)
	if account == nil {
		return common.Hash{}, aa.ErrAccountNotFound
	}
	uninstalls, err := EncodeUninstallModule(account, params.Modules...)
	if err != nil {
		return common.Hash{}, err
	}
	log.Debug("Uninstalling modules", "account", account.Address(), "modules", len(params.Modules), "extraCalls", len(params.Calls))

	return client.SendUserOperation(ctx, &aa.SendUserOperationParameters{
		Account:              account,
		Calls:                appendCalls(uninstalls, params.Calls),
		Paymaster:            params.Paymaster,
		PaymasterContext:     params.PaymasterContext,
		MaxFeePerGas:         params.MaxFeePerGas,
		MaxPriorityFeePerGas: params.MaxPriorityFeePerGas,
		Nonce:                params.Nonce,
	})
}

// resolveAccount returns the explicit account, else the client default.
func resolveAccount(client Client, account aa.SmartAccount) aa.SmartAccount {
	if account != nil {
		return account
	}
	if client == nil {
		return nil
	}
	return client.Account()
}

// appendCalls returns head followed by tail in a new slice.
func appendCalls(head, tail []aa.Call) []aa.Call {
	calls := make([]aa.Call, 0, len(head)+len(tail))
	calls = append(calls, head...)
	return append(calls, tail...)
}
