// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"github.com/vechain/cap9/log"
	cli "gopkg.in/urfave/cli.v1"
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for the kernel database",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML config file",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	logFormatFlag = cli.StringFlag{
		Name:  "log-format",
		Value: string(log.FormatTerminal),
		Usage: "log output format (terminal, json, logfmt)",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8679",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
	apiSlowQueriesThresholdFlag = cli.Uint64Flag{
		Name:  "api-slow-queries-threshold",
		Usage: "all queries with duration (ms) above the threshold will be logged",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection served at /metrics",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables the log level admin endpoint",
	}

	kernelAddressFlag = cli.StringFlag{
		Name:  "kernel-address",
		Usage: "address the kernel is deployed at",
	}
	entryFlag = cli.StringFlag{
		Name:  "entry",
		Value: "init",
		Usage: "key of the entry procedure",
	}
	entryAddressFlag = cli.StringFlag{
		Name:  "entry-address",
		Usage: "code address of the entry procedure",
	}
	capsFlag = cli.StringFlag{
		Name:  "caps",
		Usage: "0x prefixed serialized capability list of the entry procedure",
	}
)
