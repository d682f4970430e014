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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/stretchr/testify/require"

	"github.com/iliasaz/rwdqueryservice/config"
)

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, 16, cfg.ShardCount)
	require.False(t, cfg.Compress)
	require.Equal(t, 4*datasize.GB, cfg.MaxIndexFileSize)
}

func TestLoadOverlaysDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rwdctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
indexPath = "/data/cohort.rwdx"
shardCount = 32
compress = true
maxIndexFileSize = "8GB"
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/data/cohort.rwdx", cfg.IndexPath)
	require.Equal(t, 32, cfg.ShardCount)
	require.True(t, cfg.Compress)
	require.Equal(t, 8*datasize.GB, cfg.MaxIndexFileSize)
	// PlanCacheSize was not set in the file; the default must survive.
	require.Equal(t, 256, cfg.PlanCacheSize)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
