// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/vechain/cap9/kernel"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration. Flags set on the command line win.
type Config struct {
	MaxCallDepth  int    `yaml:"max_call_depth"`
	MaxProcedures uint64 `yaml:"max_procedures"`
	CacheSize     int    `yaml:"cache_size"`
	APIAddr       string `yaml:"api_addr"`
	Metrics       bool   `yaml:"metrics"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if cfg.MaxCallDepth < 0 {
		return nil, errors.New("max_call_depth must not be negative")
	}
	return cfg, nil
}

// merge applies command line flags over the file values.
func (c *Config) merge(ctx *cli.Context) {
	if ctx.IsSet(apiAddrFlag.Name) || c.APIAddr == "" {
		c.APIAddr = ctx.String(apiAddrFlag.Name)
	}
	if ctx.Bool(enableMetricsFlag.Name) {
		c.Metrics = true
	}
}

func (c *Config) kernelOptions() kernel.Options {
	return kernel.Options{
		MaxCallDepth:  c.MaxCallDepth,
		MaxProcedures: c.MaxProcedures,
	}
}
