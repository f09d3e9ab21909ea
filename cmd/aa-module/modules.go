// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/HITEYY/obsidian-aa/accounts/erc7579"
	"github.com/HITEYY/obsidian-aa/core/aa"
)

var (
	deInitDataFlag = &cli.StringFlag{
		Name:  "deinit-data",
		Usage: "Hex data passed to the module's onUninstall",
	}
	contextFlag = &cli.StringFlag{
		Name:  "context",
		Usage: "Hex uninstall context, replaces --deinit-data",
	}
	initDataFlag = &cli.StringFlag{
		Name:  "init-data",
		Usage: "Hex data passed to the module's onInstall",
	}
)

var uninstallCommand = &cli.Command{
	Name:   "uninstall",
	Usage:  "Uninstall a module from the account",
	Flags:  append([]cli.Flag{deInitDataFlag, contextFlag}, sendFlags...),
	Action: uninstallModule,
}

var installCommand = &cli.Command{
	Name:   "install",
	Usage:  "Install a module on the account",
	Flags:  append([]cli.Flag{initDataFlag}, sendFlags...),
	Action: installModule,
}

var statusCommand = &cli.Command{
	Name:   "status",
	Usage:  "Report whether a module is installed",
	Flags:  []cli.Flag{moduleTypeFlag, moduleAddressFlag},
	Action: moduleStatus,
}

// sendOptions are the flags shared by commands that send a user operation.
type sendOptions struct {
	module    erc7579.Module
	nonce     *big.Int
	paymaster *aa.Paymaster
	wait      bool
}

func parseSendOptions(c *cli.Context) (*sendOptions, error) {
	module, err := parseModule(c.String(moduleTypeFlag.Name), c.String(moduleAddressFlag.Name))
	if err != nil {
		return nil, err
	}
	opts := &sendOptions{module: module, wait: c.Bool(waitFlag.Name)}
	if c.IsSet(nonceFlag.Name) {
		if opts.nonce, err = parseNonce(c.String(nonceFlag.Name)); err != nil {
			return nil, err
		}
	}
	opts.paymaster, err = paymasterOption(c.Bool(sponsorFlag.Name), c.String(paymasterFlag.Name))
	if err != nil {
		return nil, err
	}
	return opts, nil
}

func parseModule(typ, address string) (erc7579.Module, error) {
	mt, err := erc7579.ParseModuleType(typ)
	if err != nil {
		return erc7579.Module{}, err
	}
	if !common.IsHexAddress(address) {
		return erc7579.Module{}, fmt.Errorf("invalid module address %q", address)
	}
	return erc7579.Module{Type: mt, Address: common.HexToAddress(address)}, nil
}

// parseNonce parses a full 256-bit EntryPoint nonce (key << 64 | sequence).
func parseNonce(s string) (*big.Int, error) {
	nonce, ok := math.ParseBig256(s)
	if !ok || nonce.Sign() < 0 {
		return nil, fmt.Errorf("invalid --%s %q", nonceFlag.Name, s)
	}
	return nonce, nil
}

// paymasterOption maps the paymaster flags to a paymaster choice. Neither
// flag means the sender's default.
func paymasterOption(sponsor bool, address string) (*aa.Paymaster, error) {
	switch {
	case sponsor && address != "":
		return nil, errors.New("--sponsor and --paymaster are mutually exclusive")
	case sponsor:
		return aa.SponsoredPaymaster(), nil
	case address != "":
		if !common.IsHexAddress(address) {
			return nil, fmt.Errorf("invalid paymaster address %q", address)
		}
		return aa.PaymasterAddress(common.HexToAddress(address)), nil
	}
	return nil, nil
}

// hexFlag decodes a hex flag value. An unset flag yields nil, "0x" yields
// empty bytes.
func hexFlag(c *cli.Context, flag *cli.StringFlag) ([]byte, error) {
	if !c.IsSet(flag.Name) {
		return nil, nil
	}
	return decodeHex(flag.Name, c.String(flag.Name))
}

func decodeHex(name, value string) ([]byte, error) {
	b, err := hexutil.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --%s: %w", name, err)
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

func uninstallModule(c *cli.Context) error {
	opts, err := parseSendOptions(c)
	if err != nil {
		return err
	}
	deInitData, err := hexFlag(c, deInitDataFlag)
	if err != nil {
		return err
	}
	uninstallContext, err := hexFlag(c, contextFlag)
	if err != nil {
		return err
	}
	return send(c, opts, func(ctx context.Context, client *aa.Client) (common.Hash, error) {
		return erc7579.UninstallModule(ctx, client, &erc7579.UninstallModuleParameters{
			Type:       opts.module.Type,
			Address:    opts.module.Address,
			Context:    uninstallContext,
			DeInitData: deInitData,
			Paymaster:  opts.paymaster,
			Nonce:      opts.nonce,
		})
	})
}

func installModule(c *cli.Context) error {
	opts, err := parseSendOptions(c)
	if err != nil {
		return err
	}
	initData, err := hexFlag(c, initDataFlag)
	if err != nil {
		return err
	}
	return send(c, opts, func(ctx context.Context, client *aa.Client) (common.Hash, error) {
		return erc7579.InstallModule(ctx, client, &erc7579.InstallModuleParameters{
			Type:      opts.module.Type,
			Address:   opts.module.Address,
			InitData:  initData,
			Paymaster: opts.paymaster,
			Nonce:     opts.nonce,
		})
	})
}

func send(c *cli.Context, opts *sendOptions, action func(context.Context, *aa.Client) (common.Hash, error)) error {
	ctx := c.Context
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	hash, err := action(ctx, s.client)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash.Hex())
	if !opts.wait {
		return nil
	}
	log.Info("Waiting for user operation receipt", "hash", hash, "timeout", s.cfg.ReceiptTimeout)
	waitCtx, cancel := receiptContext(ctx, s.cfg.ReceiptTimeout)
	defer cancel()
	receipt, err := s.bundler.WaitForUserOperationReceipt(waitCtx, hash, s.cfg.ReceiptPollInterval)
	if err != nil {
		return err
	}
	log.Info("User operation included",
		"hash", hash,
		"success", receipt.Success,
		"tx", receipt.Receipt.TransactionHash,
		"gasUsed", receipt.ActualGasUsed,
	)
	if !receipt.Success {
		return fmt.Errorf("user operation %s reverted: %s", hash.Hex(), receipt.Reason)
	}
	return nil
}

// receiptContext bounds the receipt wait by timeout. A non-positive timeout
// only follows parent.
func receiptContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func moduleStatus(c *cli.Context) error {
	module, err := parseModule(c.String(moduleTypeFlag.Name), c.String(moduleAddressFlag.Name))
	if err != nil {
		return err
	}
	s, err := openSession(c.Context, c)
	if err != nil {
		return err
	}
	defer s.Close()

	installed, err := s.account.IsModuleInstalled(c.Context, module)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "%s %s installed: %t\n", module.Type, module.Address.Hex(), installed)
	return nil
}
