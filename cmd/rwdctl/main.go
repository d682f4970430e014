// Copyright 2026 The rwdqueryservice Authors
// This file is part of rwdqueryservice.
//
// rwdqueryservice is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// rwdqueryservice is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with rwdqueryservice. If not, see <http://www.gnu.org/licenses/>.

// Command rwdctl is a reference ingest/query driver standing in for the
// out-of-scope HTTP surface (SPEC_FULL.md SUPPLEMENTED FEATURES "CLI
// reference driver"): it builds a cohort index from CSV fixture rows,
// evaluates a JSON query request against a saved index, and exercises
// type-ahead search.
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/iliasaz/rwdqueryservice/config"
)

// CLI is the root kong command tree.
var CLI struct {
	Config    string       `help:"Optional TOML config file (config.Load); it is loaded and logged, and commands take their settings from their own flags." type:"path"`
	Build     BuildCmd     `cmd:"" help:"Ingest CSV fixture rows into a new .rwdx index."`
	Query     QueryCmd     `cmd:"" help:"Evaluate a JSON request against a saved .rwdx index."`
	TypeAhead TypeAheadCmd `cmd:"" name:"typeahead" help:"Search an attribute's value table for a keyword."`
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "rwdctl: building logger:", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	ctx := kong.Parse(&CLI,
		kong.Name("rwdctl"),
		kong.Description("Patient-cohort index build/query reference driver."),
		kong.UsageOnError(),
	)

	cfg := config.Default()
	if CLI.Config != "" {
		cfg, err = config.Load(CLI.Config)
		if err != nil {
			ctx.FatalIfErrorf(err)
		}
		log.Sugar().Infow("config loaded", "path", CLI.Config, "shardCount", cfg.ShardCount, "compress", cfg.Compress)
	}

	err = ctx.Run(&runContext{log: log.Sugar(), cfg: cfg})
	ctx.FatalIfErrorf(err)
}

// runContext is the shared state kong passes to each command's Run method.
type runContext struct {
	log *zap.SugaredLogger
	cfg config.Config
}
