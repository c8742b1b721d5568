// Copyright (C) 2026  betanet mixnode authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestFromFileEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := FromFile("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestFromFileDecodesOverTheDefault(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "mixnode-*.toml")
	require.NoError(t, err)
	_, err = f.WriteString(`
Listen = "0.0.0.0:20000"
WorkerCount = 8
BatchStrategy = "load_based"
`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := FromFile(f.Name())
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:20000", cfg.Listen)
	require.Equal(t, 8, cfg.WorkerCount)
	require.Equal(t, "load_based", cfg.BatchStrategy)
	require.Equal(t, Default().PoissonMeanMS, cfg.PoissonMeanMS)
}

func TestFromFileMissingFileErrors(t *testing.T) {
	_, err := FromFile("/nonexistent/path/mixnode.toml")
	require.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("MIXNODE_LISTEN", "10.0.0.1:9999")
	t.Setenv("MIXNODE_WORKER_COUNT", "16")
	t.Setenv("MIXNODE_JITTER_PCT", "0.25")
	t.Setenv("MIXNODE_COVER_ENABLED", "true")
	t.Setenv("MIXNODE_CONN_TIMEOUT_MS", "500")
	t.Setenv("MIXNODE_RELAY_MIN_STAKE", "1000")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())

	require.Equal(t, "10.0.0.1:9999", cfg.Listen)
	require.Equal(t, 16, cfg.WorkerCount)
	require.Equal(t, 0.25, cfg.JitterPct)
	require.True(t, cfg.CoverEnabled)
	require.Equal(t, 500*time.Millisecond, cfg.ConnTimeout)
	require.Equal(t, uint64(1000), cfg.RelayMinStake)
}

func TestApplyEnvOverridesLeavesUnsetFieldsAlone(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())
	require.Equal(t, Default(), cfg)
}

func TestApplyEnvOverridesRejectsBadValue(t *testing.T) {
	t.Setenv("MIXNODE_WORKER_COUNT", "not-a-number")
	cfg := Default()
	require.Error(t, cfg.ApplyEnvOverrides())
}

func TestValidateRejectsInvertedPoissonBounds(t *testing.T) {
	cfg := Default()
	cfg.PoissonMinMS = 500
	cfg.PoissonMeanMS = 100
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsBadBatchBounds(t *testing.T) {
	cfg := Default()
	cfg.BatchMin = 10
	cfg.BatchMax = 5
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := Default()
	cfg.WorkerCount = 0
	require.Error(t, cfg.Validate())
}
