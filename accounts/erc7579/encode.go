// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package erc7579

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/HITEYY/obsidian-aa/core/aa"
)

const accountABIJSON = `[
	{"type":"function","name":"installModule","stateMutability":"payable","outputs":[],"inputs":[
		{"name":"moduleTypeId","type":"uint256"},{"name":"module","type":"address"},{"name":"initData","type":"bytes"}]},
	{"type":"function","name":"uninstallModule","stateMutability":"payable","outputs":[],"inputs":[
		{"name":"moduleTypeId","type":"uint256"},{"name":"module","type":"address"},{"name":"deInitData","type":"bytes"}]},
	{"type":"function","name":"isModuleInstalled","stateMutability":"view","outputs":[{"name":"","type":"bool"}],"inputs":[
		{"name":"moduleTypeId","type":"uint256"},{"name":"module","type":"address"},{"name":"additionalContext","type":"bytes"}]},
	{"type":"function","name":"execute","stateMutability":"payable","outputs":[],"inputs":[
		{"name":"mode","type":"bytes32"},{"name":"executionCalldata","type":"bytes"}]}
]`

const entryPointABIJSON = `[
	{"type":"function","name":"getNonce","stateMutability":"view","outputs":[{"name":"nonce","type":"uint256"}],"inputs":[
		{"name":"sender","type":"address"},{"name":"key","type":"uint192"}]}
]`

var (
	accountABI    = mustParseABI(accountABIJSON)
	entryPointABI = mustParseABI(entryPointABIJSON)

	executionsT, _ = abi.NewType("tuple[]", "", []abi.ArgumentMarshaling{
		{Name: "target", Type: "address"},
		{Name: "value", Type: "uint256"},
		{Name: "callData", Type: "bytes"},
	})
	executionsArgs = abi.Arguments{{Type: executionsT}}
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeUninstallModule returns one uninstallModule call on the account per
// module, in order.
func EncodeUninstallModule(account aa.SmartAccount, modules ...Module) ([]aa.Call, error) {
	return encodeModuleCalls("uninstallModule", account, modules)
}

// EncodeInstallModule returns one installModule call on the account per
// module, in order.
func EncodeInstallModule(account aa.SmartAccount, modules ...Module) ([]aa.Call, error) {
	return encodeModuleCalls("installModule", account, modules)
}

func encodeModuleCalls(method string, account aa.SmartAccount, modules []Module) ([]aa.Call, error) {
	if account == nil {
		return nil, aa.ErrAccountNotFound
	}
	calls := make([]aa.Call, 0, len(modules))
	for i, m := range modules {
		id, err := m.Type.ID()
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		data := m.Context
		if data == nil {
			data = []byte{}
		}
		input, err := accountABI.Pack(method, id, m.Address, data)
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		calls = append(calls, aa.Call{
			To:    account.Address(),
			Value: new(big.Int),
			Data:  input,
		})
	}
	return calls, nil
}

// EncodeIsModuleInstalled returns the calldata of an isModuleInstalled query.
func EncodeIsModuleInstalled(m Module) ([]byte, error) {
	id, err := m.Type.ID()
	if err != nil {
		return nil, err
	}
	data := m.Context
	if data == nil {
		data = []byte{}
	}
	return accountABI.Pack("isModuleInstalled", id, m.Address, data)
}

// execution mirrors the ERC-7579 Execution struct for batch encoding.
type execution struct {
	Target   common.Address
	Value    *big.Int
	CallData []byte
}

// Execution mode call types.
const (
	callTypeSingle byte = 0x00
	callTypeBatch  byte = 0x01
)

// encodeExecute encodes calls as execute(mode, executionCalldata). A single
// call is packed as target || value || callData, several as Execution[].
func encodeExecute(calls []aa.Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, aa.ErrNoCalls
	}
	var (
		mode     [32]byte
		execData []byte
	)
	if len(calls) == 1 {
		mode[0] = callTypeSingle
		c := calls[0]
		value := common.BigToHash(valueOrZero(c.Value))
		execData = make([]byte, 0, common.AddressLength+common.HashLength+len(c.Data))
		execData = append(execData, c.To.Bytes()...)
		execData = append(execData, value.Bytes()...)
		execData = append(execData, c.Data...)
	} else {
		mode[0] = callTypeBatch
		execs := make([]execution, len(calls))
		for i, c := range calls {
			data := c.Data
			if data == nil {
				data = []byte{}
			}
			execs[i] = execution{Target: c.To, Value: valueOrZero(c.Value), CallData: data}
		}
		var err error
		if execData, err = executionsArgs.Pack(execs); err != nil {
			return nil, err
		}
	}
	return accountABI.Pack("execute", mode, execData)
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
