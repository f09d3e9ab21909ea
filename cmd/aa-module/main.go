// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

// aa-module installs and uninstalls ERC-7579 modules on a smart account by
// sending ERC-4337 user operations.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "YAML config file",
		EnvVars: []string{"AA_CONFIG"},
	}
	rpcURLFlag = &cli.StringFlag{
		Name:  "rpc",
		Usage: "Execution client RPC endpoint",
	}
	bundlerURLFlag = &cli.StringFlag{
		Name:  "bundler",
		Usage: "Bundler RPC endpoint",
	}
	paymasterURLFlag = &cli.StringFlag{
		Name:  "paymaster-url",
		Usage: "ERC-7677 paymaster service endpoint",
	}
	accountFlag = &cli.StringFlag{
		Name:  "account",
		Usage: "Smart account address",
	}
	nonceKeyFlag = &cli.StringFlag{
		Name:  "nonce-key",
		Usage: "192-bit EntryPoint nonce key, decimal or 0x hex",
	}
	verbosityFlag = &cli.IntFlag{
		Name:    "verbosity",
		Usage:   "Logging verbosity: 0=silent, 1=error, 2=warn, 3=info, 4=debug, 5=trace",
		Value:   3,
		EnvVars: []string{"AA_VERBOSITY"},
	}

	moduleTypeFlag = &cli.StringFlag{
		Name:     "type",
		Usage:    "Module type: validator, executor, fallback, hook or its id",
		Required: true,
	}
	moduleAddressFlag = &cli.StringFlag{
		Name:     "module",
		Usage:    "Module address",
		Required: true,
	}
	nonceFlag = &cli.StringFlag{
		Name:  "nonce",
		Usage: "User operation nonce, decimal or 0x hex (default: read from the EntryPoint)",
	}
	sponsorFlag = &cli.BoolFlag{
		Name:  "sponsor",
		Usage: "Request sponsorship from the paymaster service",
	}
	paymasterFlag = &cli.StringFlag{
		Name:  "paymaster",
		Usage: "Paymaster address that needs no paymaster data",
	}
	waitFlag = &cli.BoolFlag{
		Name:  "wait",
		Usage: "Wait for the user operation receipt",
	}
	sendFlags = []cli.Flag{moduleTypeFlag, moduleAddressFlag, nonceFlag, sponsorFlag, paymasterFlag, waitFlag}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "aa-module",
		Usage: "manage ERC-7579 modules of a smart account",
		Flags: []cli.Flag{configFlag, rpcURLFlag, bundlerURLFlag, paymasterURLFlag, accountFlag, nonceKeyFlag, verbosityFlag},
		Commands: []*cli.Command{
			uninstallCommand,
			installCommand,
			statusCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// logOutput receives all log output.
var logOutput io.Writer = os.Stderr

func setupLogging(verbosity int) {
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(logOutput, log.FromLegacyLevel(verbosity), true)))
}
