// Copyright 2025 The go-obsidian Authors
// This file is part of the go-obsidian library.

package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/HITEYY/obsidian-aa/accounts/erc7579"
	"github.com/HITEYY/obsidian-aa/bundler"
	"github.com/HITEYY/obsidian-aa/config"
	"github.com/HITEYY/obsidian-aa/core/aa"
)

// session holds the connections of one command invocation.
type session struct {
	cfg     config.Config
	eth     *ethclient.Client
	bundler *bundler.Client
	account *erc7579.Account
	client  *aa.Client
	metrics *http.Server

	closers []func()
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := readConfig(c.String(configFlag.Name), c.Int(verbosityFlag.Name))
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet(rpcURLFlag.Name) {
		cfg.RPCURL = c.String(rpcURLFlag.Name)
	}
	if c.IsSet(bundlerURLFlag.Name) {
		cfg.BundlerURL = c.String(bundlerURLFlag.Name)
	}
	if c.IsSet(paymasterURLFlag.Name) {
		cfg.PaymasterURL = c.String(paymasterURLFlag.Name)
	}
	if c.IsSet(accountFlag.Name) {
		addr := c.String(accountFlag.Name)
		if !common.IsHexAddress(addr) {
			return config.Config{}, fmt.Errorf("%w: invalid --%s %q", config.ErrInvalidConfig, accountFlag.Name, addr)
		}
		cfg.Account = common.HexToAddress(addr)
	}
	if c.IsSet(nonceKeyFlag.Name) {
		key, err := config.ParseNonceKey(c.String(nonceKeyFlag.Name))
		if err != nil {
			return config.Config{}, err
		}
		cfg.NonceKey = key
	}
	if c.IsSet(verbosityFlag.Name) {
		cfg.Verbosity = c.Int(verbosityFlag.Name)
	}
	return cfg, cfg.Validate()
}

// readConfig sets up logging at the flag verbosity before loading the file,
// so warnings raised while loading are visible.
func readConfig(path string, verbosity int) (config.Config, error) {
	setupLogging(verbosity)
	return config.LoadFromPath(path)
}

func openSession(ctx context.Context, c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Verbosity)

	key, err := cfg.OwnerKey()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg}
	if s.eth, err = ethclient.DialContext(ctx, cfg.RPCURL); err != nil {
		return nil, fmt.Errorf("dial execution client: %w", err)
	}
	s.closers = append(s.closers, s.eth.Close)

	reg := prometheus.NewRegistry()
	metrics, err := bundler.NewMetrics(reg, "aa")
	if err != nil {
		s.Close()
		return nil, err
	}
	if cfg.MetricsAddr != "" {
		s.serveMetrics(reg, cfg.MetricsAddr)
	}

	if s.bundler, err = bundler.Dial(ctx, cfg.BundlerURL); err != nil {
		s.Close()
		return nil, fmt.Errorf("dial bundler: %w", err)
	}
	s.bundler.WithMetrics(metrics)
	s.closers = append(s.closers, s.bundler.Close)

	chainID, err := s.chainID(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.checkEntryPoint(ctx)

	s.account = erc7579.NewAccount(cfg.Account, key, s.eth).WithEntryPoint(cfg.EntryPoint)
	if cfg.NonceKey != nil {
		s.account.WithNonceKey(cfg.NonceKey)
	}
	sender := aa.NewSender(s.bundler, chainID).WithFeeEstimator(aa.NewEthFeeEstimator(s.eth))
	if cfg.PaymasterURL != "" {
		pm, err := bundler.DialPaymaster(ctx, cfg.PaymasterURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("dial paymaster: %w", err)
		}
		pm.WithMetrics(metrics)
		s.closers = append(s.closers, pm.Close)
		sender.WithPaymaster(pm)
	}
	s.client = aa.NewClient(sender, s.account)

	log.Info("Session ready", "account", cfg.Account, "owner", s.account.Owner(), "chain", chainID, "entryPoint", cfg.EntryPoint)
	return s, nil
}

func (s *session) chainID(ctx context.Context) (*big.Int, error) {
	if s.cfg.ChainID != 0 {
		return new(big.Int).SetUint64(s.cfg.ChainID), nil
	}
	id, err := s.bundler.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	return id, nil
}

func (s *session) checkEntryPoint(ctx context.Context) {
	eps, err := s.bundler.SupportedEntryPoints(ctx)
	if err != nil {
		log.Warn("Could not query supported entry points", "err", err)
		return
	}
	for _, ep := range eps {
		if ep == s.cfg.EntryPoint {
			return
		}
	}
	log.Warn("Bundler does not list the configured entry point", "entryPoint", s.cfg.EntryPoint, "supported", eps)
}

func (s *session) serveMetrics(reg *prometheus.Registry, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.metrics = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("Metrics endpoint failed", "addr", addr, "err", err)
		}
	}()
	s.closers = append(s.closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := s.metrics.Shutdown(ctx); err != nil {
			log.Debug("Metrics endpoint shutdown failed", "err", err)
		}
	})
	log.Info("Serving metrics", "addr", addr)
}

// Close releases connections in reverse order of opening.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
