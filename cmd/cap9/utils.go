// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/vechain/cap9/api"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/host"
	"github.com/vechain/cap9/kernel"
	"github.com/vechain/cap9/log"
	"github.com/vechain/cap9/lvldb"
	"github.com/vechain/cap9/proctable"
	cli "gopkg.in/urfave/cli.v1"
)

func initLogger(ctx *cli.Context) (*slog.LevelVar, error) {
	format, err := log.ParseFormat(ctx.String(logFormatFlag.Name))
	if err != nil {
		return nil, errors.WithMessage(err, "-"+logFormatFlag.Name)
	}
	level := log.NewLevelVar(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))

	// machine readable formats go to stdout
	out, useColor := os.Stdout, false
	if format == log.FormatTerminal {
		fd := os.Stderr.Fd()
		out = os.Stderr
		useColor = (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("TERM") != "dumb"
	}
	log.SetDefault(log.NewLogger(log.NewHandler(out, format, level, useColor)))
	return level, nil
}

func defaultDataDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cap9")
	}
	return ""
}

func makeDataDir(ctx *cli.Context) (string, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return "", errors.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	return dataDir, nil
}

// openState opens the persisted kernel storage. A nil self uses the kernel
// address recorded in storage.
func openState(ctx *cli.Context, cfg *Config, self *cap9.Address) (*host.State, error) {
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dataDir, "kernel.db")
	db, err := lvldb.New(path, lvldb.Options{CacheSize: 16, OpenFilesCacheCapacity: 64})
	if err != nil {
		return nil, errors.WithMessagef(err, "open kernel database [%v]", path)
	}
	opts := host.Options{CacheSize: cfg.CacheSize}

	if self == nil {
		peek, err := host.New(db, cap9.Address{}, opts)
		if err != nil {
			db.Close()
			return nil, err
		}
		addr, err := proctable.New(peek).KernelAddress()
		if err != nil {
			db.Close()
			return nil, err
		}
		self = &addr
	}
	st, err := host.New(db, *self, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("kernel database opened", "path", path, "kernel", *self)
	return st, nil
}

// parseCaps decodes a 0x prefixed serialized capability list.
func parseCaps(s string) (caps.List, error) {
	if s == "" {
		return nil, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, err
	}
	if len(b)%32 != 0 {
		return nil, errors.Errorf("capability list of %d bytes is not word aligned", len(b))
	}
	words := make([]cap9.Bytes32, len(b)/32)
	for i := range words {
		copy(words[i][:], b[i*32:])
	}
	return caps.DecodeList(words)
}

func parseAddress(ctx *cli.Context, flag cli.StringFlag) (cap9.Address, error) {
	s := ctx.String(flag.Name)
	if s == "" {
		return cap9.Address{}, errors.Errorf("-%s is required", flag.Name)
	}
	addr, err := cap9.ParseAddress(s)
	if err != nil {
		return cap9.Address{}, errors.WithMessage(err, "-"+flag.Name)
	}
	return *addr, nil
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func startAPIServer(ctx *cli.Context, cfg *Config, k *kernel.Kernel, store host.Storage, level *slog.LevelVar) (*http.Server, string, error) {
	listener, err := net.Listen("tcp", cfg.APIAddr)
	if err != nil {
		return nil, "", errors.Wrapf(err, "listen API addr [%v]", cfg.APIAddr)
	}

	var reqLogger atomic.Bool
	reqLogger.Store(ctx.Bool(enableAPILogsFlag.Name))

	opts := api.Options{
		AllowedOrigins:       ctx.String(apiCorsFlag.Name),
		EnableMetrics:        cfg.Metrics,
		EnableReqLogger:      &reqLogger,
		SlowQueriesThreshold: time.Duration(ctx.Uint64(apiSlowQueriesThresholdFlag.Name)) * time.Millisecond,
	}
	if ctx.Bool(enableAdminFlag.Name) {
		opts.LogLevel = level
	}

	srv := &http.Server{
		Handler:           api.New(k, store, opts),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("API server stopped", "err", err)
		}
	}()
	return srv, "http://" + listener.Addr().String() + "/", nil
}

func printKV(pairs ...any) {
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Printf("%-16s%v\n", strings.TrimSpace(fmt.Sprint(pairs[i]))+":", pairs[i+1])
	}
}
