// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/vechain/cap9/cap9"
	"github.com/vechain/cap9/caps"
	"github.com/vechain/cap9/kernel"
	"github.com/vechain/cap9/log"
	"github.com/vechain/cap9/metrics"
	cli "gopkg.in/urfave/cli.v1"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "cap9")

	commonFlags = []cli.Flag{
		dataDirFlag,
		configFlag,
		verbosityFlag,
		logFormatFlag,
	}
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "cap9",
		Usage:   "Capability kernel storage tool",
		Commands: []cli.Command{
			{
				Name:   "init",
				Usage:  "deploy a kernel into the data dir",
				Flags:  append([]cli.Flag{kernelAddressFlag, entryFlag, entryAddressFlag, capsFlag}, commonFlags...),
				Action: initAction,
			},
			{
				Name:   "list",
				Usage:  "list registered procedures",
				Flags:  commonFlags,
				Action: listAction,
			},
			{
				Name:      "show",
				Usage:     "show a procedure and its capabilities",
				ArgsUsage: "<key>",
				Flags:     commonFlags,
				Action:    showAction,
			},
			{
				Name:   "logs",
				Usage:  "print events emitted by the kernel",
				Flags:  commonFlags,
				Action: logsAction,
			},
			{
				Name:  "serve",
				Usage: "serve the read only accessor API",
				Flags: append([]cli.Flag{
					apiAddrFlag,
					apiCorsFlag,
					enableAPILogsFlag,
					apiSlowQueriesThresholdFlag,
					enableMetricsFlag,
					enableAdminFlag,
				}, commonFlags...),
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(ctx *cli.Context) (*Config, *slog.LevelVar, error) {
	level, err := initLogger(ctx)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := loadConfig(ctx.String(configFlag.Name))
	if err != nil {
		return nil, nil, err
	}
	cfg.merge(ctx)
	return cfg, level, nil
}

func initAction(ctx *cli.Context) error {
	cfg, _, err := setup(ctx)
	if err != nil {
		return err
	}
	kernelAddr, err := parseAddress(ctx, kernelAddressFlag)
	if err != nil {
		return err
	}
	entryAddr, err := parseAddress(ctx, entryAddressFlag)
	if err != nil {
		return err
	}
	entryKey, err := cap9.ParseProcedureKey(ctx.String(entryFlag.Name))
	if err != nil {
		return errors.WithMessage(err, "-"+entryFlag.Name)
	}
	list, err := parseCaps(ctx.String(capsFlag.Name))
	if err != nil {
		return errors.WithMessage(err, "-"+capsFlag.Name)
	}

	st, err := openState(ctx, cfg, &kernelAddr)
	if err != nil {
		return err
	}
	defer func() { logger.Debug("closing kernel database..."); st.Close() }()

	k := kernel.New(st, cfg.kernelOptions())
	if err := k.Deploy(entryKey, entryAddr, list...); err != nil {
		return err
	}
	if err := st.Commit(); err != nil {
		return err
	}
	logger.Info("kernel initialized", "address", kernelAddr, "entry", entryKey, "caps", len(list))
	return nil
}

func openKernel(ctx *cli.Context) (*kernel.Kernel, func(), error) {
	cfg, _, err := setup(ctx)
	if err != nil {
		return nil, nil, err
	}
	st, err := openState(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	k := kernel.New(st, cfg.kernelOptions())
	deployed, err := k.Deployed()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	if !deployed {
		st.Close()
		return nil, nil, errors.New("no kernel in data dir, run init first")
	}
	return k, func() { st.Close() }, nil
}

func listAction(ctx *cli.Context) error {
	k, closeFn, err := openKernel(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	procs, err := k.Table().Procedures()
	if err != nil {
		return err
	}
	entry, err := k.Table().Entry()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "INDEX\tKEY\tADDRESS\tCAPS\t")
	for _, p := range procs {
		mark := ""
		if p.Key == entry {
			mark = " (entry)"
		}
		fmt.Fprintf(w, "%d\t%v%s\t%v\t%d\t\n", p.Index, p.Key, mark, p.Address, len(p.Caps))
	}
	return w.Flush()
}

func showAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("show takes exactly one procedure key")
	}
	key, err := cap9.ParseProcedureKey(ctx.Args().First())
	if err != nil {
		return err
	}
	k, closeFn, err := openKernel(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	p, err := k.Table().Procedure(key)
	if err != nil {
		return err
	}
	if p == nil {
		return errors.Errorf("procedure %v not found", key)
	}
	printKV(
		"key", p.Key,
		"address", p.Address,
		"index", p.Index,
		"caps", len(p.Caps),
	)
	for i, c := range p.Caps {
		fmt.Printf("  #%d %v\n", i, c)
		for _, word := range caps.Encode(c) {
			fmt.Printf("      %s\n", hexutil.Encode(word[:]))
		}
	}
	return nil
}

func logsAction(ctx *cli.Context) error {
	cfg, _, err := setup(ctx)
	if err != nil {
		return err
	}
	st, err := openState(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer st.Close()

	logs, err := st.Logs()
	if err != nil {
		return err
	}
	for i, l := range logs {
		fmt.Printf("#%d data=%s\n", i, hexutil.Encode(l.Data))
		for _, t := range l.Topics {
			fmt.Printf("    %v\n", t)
		}
	}
	return nil
}

func serveAction(ctx *cli.Context) error {
	cfg, level, err := setup(ctx)
	if err != nil {
		return err
	}
	if cfg.Metrics {
		metrics.InitializePrometheusMetrics()
	}

	st, err := openState(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing kernel database..."); st.Close() }()

	k := kernel.New(st, cfg.kernelOptions())
	srv, url, err := startAPIServer(ctx, cfg, k, st, level)
	if err != nil {
		return err
	}
	logger.Info("API server started", "url", url, "metrics", cfg.Metrics)

	<-handleExitSignal().Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("stopping API server...")
	return srv.Shutdown(shutdownCtx)
}
