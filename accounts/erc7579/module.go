// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package erc7579

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrUnknownModuleType     = errors.New("unknown module type")
	ErrConflictingDeInitData = errors.New("both context and deInitData given")
)

// ModuleType is an ERC-7579 module type id.
type ModuleType uint8

const (
	ValidatorModule ModuleType = 1
	ExecutorModule  ModuleType = 2
	FallbackModule  ModuleType = 3
	HookModule      ModuleType = 4
)

var moduleTypeNames = map[ModuleType]string{
	ValidatorModule: "validator",
	ExecutorModule:  "executor",
	FallbackModule:  "fallback",
	HookModule:      "hook",
}

func (t ModuleType) String() string {
	if name, ok := moduleTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ModuleType(%d)", uint8(t))
}

// Valid reports whether t is one of the four standard module types.
func (t ModuleType) Valid() bool {
	_, ok := moduleTypeNames[t]
	return ok
}

// ID returns the module type id for ABI packing.
func (t ModuleType) ID() (*big.Int, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownModuleType, uint8(t))
	}
	return big.NewInt(int64(t)), nil
}

// ParseModuleType parses a module type name ("validator", "executor",
// "fallback", "hook") or its decimal id.
func ParseModuleType(s string) (ModuleType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range moduleTypeNames {
		if n == name {
			return t, nil
		}
	}
	if id, err := strconv.ParseUint(name, 10, 8); err == nil && ModuleType(id).Valid() {
		return ModuleType(id), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownModuleType, s)
}

// Module identifies a module on an account together with the data passed to
// its onInstall or onUninstall hook.
type Module struct {
	Type    ModuleType
	Address common.Address
	Context []byte
}

// deInitPayload picks the uninstall payload: context if given, else deInitData.
// Neither given means empty bytes.
func deInitPayload(context, deInitData []byte) ([]byte, error) {
	if context != nil && deInitData != nil {
		return nil, ErrConflictingDeInitData
	}
	if context != nil {
		return context, nil
	}
	if deInitData != nil {
		return deInitData, nil
	}
	return []byte{}, nil
}
