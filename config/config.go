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

// Package config decodes the TOML configuration file consumed by
// cmd/rwdctl, per SPEC_FULL.md's AMBIENT STACK ("A CLI config struct
// decoded from TOML ... with human-readable size fields").
package config

import (
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk shape of an rwdctl TOML config file. rwdctl
// loads and logs it; no command reads its fields: index path, shard
// count and compression come from each command's own arguments and
// flags, and query.New uses a fixed plan cache size of 256.
type Config struct {
	// IndexPath is a .rwdx file path for query/typeahead.
	IndexPath string `toml:"indexPath"`

	// ShardCount is the number of build shards used during ingest
	// (peopleindex.BeginIngest); must be a power of two.
	ShardCount int `toml:"shardCount"`

	// Compress enables zstd section compression on save (indexstore.Options).
	Compress bool `toml:"compress"`

	// PlanCacheSize is a size for the query engine's LRU plan cache;
	// query.New does not take it.
	PlanCacheSize int `toml:"planCacheSize"`

	// MaxIndexFileSize is a soft advisory cap on .rwdx size, expressed in
	// human-readable form (e.g. "4GB") via c2h5oh/datasize, mirroring how
	// the teacher sizes its datadir-related config fields.
	MaxIndexFileSize datasize.ByteSize `toml:"maxIndexFileSize"`
}

// Default returns the baseline configuration used when no file is
// supplied.
func Default() Config {
	return Config{
		ShardCount:        16,
		Compress:          false,
		PlanCacheSize:      256,
		MaxIndexFileSize:  4 * datasize.GB,
	}
}

// Load reads and decodes the TOML config file at path, overlaying it on
// Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding %s: %w", path, err)
	}
	return cfg, nil
}
