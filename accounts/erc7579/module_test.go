// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package erc7579

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
)

func TestParseModuleType(t *testing.T) {
	tests := []struct {
		in   string
		want ModuleType
	}{
		{"validator", ValidatorModule},
		{"Executor", ExecutorModule},
		{" fallback ", FallbackModule},
		{"hook", HookModule},
		{"1", ValidatorModule},
		{"4", HookModule},
	}
	for _, tt := range tests {
		got, err := ParseModuleType(tt.in)
		if err != nil {
			t.Errorf("ParseModuleType(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseModuleType(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	for _, bad := range []string{"", "0", "5", "signer", "256"} {
		if _, err := ParseModuleType(bad); !errors.Is(err, ErrUnknownModuleType) {
			t.Errorf("ParseModuleType(%q): expected ErrUnknownModuleType, got %v", bad, err)
		}
	}
}

func TestModuleTypeString(t *testing.T) {
	if HookModule.String() != "hook" {
		t.Errorf("unexpected name %q", HookModule)
	}
	if ModuleType(0).String() != "ModuleType(0)" {
		t.Errorf("unexpected name %q", ModuleType(0))
	}
	if _, err := ModuleType(0).ID(); !errors.Is(err, ErrUnknownModuleType) {
		t.Errorf("expected ErrUnknownModuleType, got %v", err)
	}
}

func TestDeInitPayload(t *testing.T) {
	got, err := deInitPayload(nil, nil)
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("expected empty payload, got %x, %v", got, err)
	}
	got, _ = deInitPayload([]byte{0x01}, nil)
	if !bytes.Equal(got, []byte{0x01}) {
		t.Errorf("expected context payload, got %x", got)
	}
	got, _ = deInitPayload(nil, []byte{0x02})
	if !bytes.Equal(got, []byte{0x02}) {
		t.Errorf("expected deInitData payload, got %x", got)
	}
	// An empty but non-nil context still counts as given
	if _, err := deInitPayload([]byte{}, []byte{0x02}); !errors.Is(err, ErrConflictingDeInitData) {
		t.Errorf("expected ErrConflictingDeInitData, got %v", err)
	}
}

func TestModuleSelectors(t *testing.T) {
	tests := map[string]string{
		"installModule":     "installModule(uint256,address,bytes)",
		"uninstallModule":   "uninstallModule(uint256,address,bytes)",
		"isModuleInstalled": "isModuleInstalled(uint256,address,bytes)",
		"execute":           "execute(bytes32,bytes)",
	}
	for name, sig := range tests {
		want := crypto.Keccak256([]byte(sig))[:4]
		if got := accountABI.Methods[name].ID; !bytes.Equal(got, want) {
			t.Errorf("%s selector %x, want %x", name, got, want)
		}
	}
}

func TestEncodeUninstallModuleNilAccount(t *testing.T) {
	if _, err := EncodeUninstallModule(nil, Module{Type: ValidatorModule}); err == nil {
		t.Error("expected error for nil account")
	}
}
