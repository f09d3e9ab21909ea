// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

// Package config loads client settings from a YAML file and AA_* environment
// variables.
package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/HITEYY/obsidian-aa/core/aa"
)

var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrMissingKey    = errors.New("owner key not set")
)

// Config holds everything needed to send user operations for one account.
type Config struct {
	RPCURL       string
	BundlerURL   string
	PaymasterURL string // empty disables sponsorship

	EntryPoint common.Address
	ChainID    uint64 // 0 asks the bundler
	Account    common.Address
	NonceKey   *big.Int // 192-bit EntryPoint nonce key, nil means 0

	// OwnerKeyEnv names the environment variable holding the owner's
	// hex-encoded private key.
	OwnerKeyEnv string

	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration // 0 waits until cancelled
	MetricsAddr         string        // empty disables the metrics endpoint
	Verbosity           int
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		RPCURL:              "http://localhost:8545",
		BundlerURL:          "http://localhost:4337",
		EntryPoint:          aa.EntryPointV07Address,
		OwnerKeyEnv:         "AA_OWNER_KEY",
		ReceiptPollInterval: 2 * time.Second,
		ReceiptTimeout:      5 * time.Minute,
		Verbosity:           3,
	}
}

// FileConfig mirrors the YAML file layout.
type FileConfig struct {
	Network FileNetworkConfig `yaml:"network"`
	Account FileAccountConfig `yaml:"account"`
	Log     FileLogConfig     `yaml:"log"`
}

type FileNetworkConfig struct {
	RPCURL              string        `yaml:"rpcURL"`
	BundlerURL          string        `yaml:"bundlerURL"`
	PaymasterURL        string        `yaml:"paymasterURL"`
	EntryPoint          string        `yaml:"entryPoint"`
	ChainID             uint64        `yaml:"chainID"`
	ReceiptPollInterval time.Duration `yaml:"receiptPollInterval"`
	ReceiptTimeout      time.Duration `yaml:"receiptTimeout"`
	MetricsAddr         string        `yaml:"metricsAddr"`
}

type FileAccountConfig struct {
	Address     string `yaml:"address"`
	OwnerKeyEnv string `yaml:"ownerKeyEnv"`
	NonceKey    string `yaml:"nonceKey"` // decimal or 0x-prefixed hex
}

type FileLogConfig struct {
	Verbosity *int `yaml:"verbosity"`
}

// defaultPaths are tried in order when no path is given.
var defaultPaths = []string{
	"aa-module.yaml",
	"configs/aa-module.yaml",
}

// LoadFromPath reads the config file at path, or the first default path that
// exists, merges it over the defaults and applies environment overrides.
// A missing default file is not an error.
func LoadFromPath(path string) (Config, error) {
	cfg := DefaultConfig()

	candidates := defaultPaths
	if path != "" {
		candidates = []string{path}
	}
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if path != "" {
				return Config{}, err
			}
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, p, err)
		}
		if err := Merge(&cfg, parsed); err != nil {
			return Config{}, fmt.Errorf("%s: %w", p, err)
		}
		log.Debug("Loaded config file", "path", p)
		break
	}
	ApplyEnvOverrides(&cfg)
	return cfg, nil
}

// Merge copies every set field of src into dst.
func Merge(dst *Config, src FileConfig) error {
	n := src.Network
	if n.RPCURL != "" {
		dst.RPCURL = n.RPCURL
	}
	if n.BundlerURL != "" {
		dst.BundlerURL = n.BundlerURL
	}
	if n.PaymasterURL != "" {
		dst.PaymasterURL = n.PaymasterURL
	}
	if n.EntryPoint != "" {
		addr, err := parseAddress("entryPoint", n.EntryPoint)
		if err != nil {
			return err
		}
		dst.EntryPoint = addr
	}
	if n.ChainID != 0 {
		dst.ChainID = n.ChainID
	}
	if n.ReceiptPollInterval != 0 {
		dst.ReceiptPollInterval = n.ReceiptPollInterval
	}
	if n.ReceiptTimeout != 0 {
		dst.ReceiptTimeout = n.ReceiptTimeout
	}
	if n.MetricsAddr != "" {
		dst.MetricsAddr = n.MetricsAddr
	}
	if src.Account.Address != "" {
		addr, err := parseAddress("account.address", src.Account.Address)
		if err != nil {
			return err
		}
		dst.Account = addr
	}
	if src.Account.NonceKey != "" {
		key, err := ParseNonceKey(src.Account.NonceKey)
		if err != nil {
			return err
		}
		dst.NonceKey = key
	}
	if src.Account.OwnerKeyEnv != "" {
		dst.OwnerKeyEnv = src.Account.OwnerKeyEnv
	}
	if src.Log.Verbosity != nil {
		dst.Verbosity = *src.Log.Verbosity
	}
	return nil
}

// ApplyEnvOverrides applies AA_* environment variables. Malformed values are
// logged and ignored.
func ApplyEnvOverrides(cfg *Config) {
	if v := env("AA_RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := env("AA_BUNDLER_URL"); v != "" {
		cfg.BundlerURL = v
	}
	if v := env("AA_PAYMASTER_URL"); v != "" {
		cfg.PaymasterURL = v
	}
	if v := env("AA_ENTRY_POINT"); v != "" {
		if addr, err := parseAddress("AA_ENTRY_POINT", v); err == nil {
			cfg.EntryPoint = addr
		} else {
			log.Warn("Ignoring environment override", "err", err)
		}
	}
	if v := env("AA_ACCOUNT"); v != "" {
		if addr, err := parseAddress("AA_ACCOUNT", v); err == nil {
			cfg.Account = addr
		} else {
			log.Warn("Ignoring environment override", "err", err)
		}
	}
	if v := env("AA_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseUint(v, 0, 64); err == nil {
			cfg.ChainID = id
		} else {
			log.Warn("Ignoring environment override", "name", "AA_CHAIN_ID", "value", v)
		}
	}
	if v := env("AA_NONCE_KEY"); v != "" {
		if key, err := ParseNonceKey(v); err == nil {
			cfg.NonceKey = key
		} else {
			log.Warn("Ignoring environment override", "err", err)
		}
	}
	if v := env("AA_RECEIPT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReceiptTimeout = d
		} else {
			log.Warn("Ignoring environment override", "name", "AA_RECEIPT_TIMEOUT", "value", v)
		}
	}
	if v := env("AA_VERBOSITY"); v != "" {
		if level, err := strconv.Atoi(v); err == nil {
			cfg.Verbosity = level
		} else {
			log.Warn("Ignoring environment override", "name", "AA_VERBOSITY", "value", v)
		}
	}
}

// Validate checks the settings required to send a user operation.
func (c Config) Validate() error {
	if c.BundlerURL == "" {
		return fmt.Errorf("%w: bundler URL not set", ErrInvalidConfig)
	}
	if c.Account == (common.Address{}) {
		return fmt.Errorf("%w: account address not set", ErrInvalidConfig)
	}
	if c.EntryPoint == (common.Address{}) {
		return fmt.Errorf("%w: entry point not set", ErrInvalidConfig)
	}
	return nil
}

// OwnerKey reads the owner's private key from the OwnerKeyEnv variable.
func (c Config) OwnerKey() (*ecdsa.PrivateKey, error) {
	raw := env(c.OwnerKeyEnv)
	if raw == "" {
		return nil, fmt.Errorf("%w: $%s is empty", ErrMissingKey, c.OwnerKeyEnv)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: $%s: %v", ErrInvalidConfig, c.OwnerKeyEnv, err)
	}
	return key, nil
}

// ParseNonceKey parses a decimal or 0x-prefixed EntryPoint nonce key.
func ParseNonceKey(s string) (*big.Int, error) {
	key, ok := math.ParseBig256(s)
	if !ok || key.Sign() < 0 || key.BitLen() > 192 {
		return nil, fmt.Errorf("%w: nonce key %q is not a 192-bit integer", ErrInvalidConfig, s)
	}
	return key, nil
}

func env(name string) string {
	if name == "" {
		return ""
	}
	return strings.TrimSpace(os.Getenv(name))
}

func parseAddress(field, s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s is not an address: %q", ErrInvalidConfig, field, s)
	}
	return common.HexToAddress(s), nil
}
