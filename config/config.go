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

// Package config loads the mixnode's on-disk TOML configuration and
// layers the environment-variable overrides spec §6 names on top of it,
// shaped after the teacher's config.FromFile (github.com/BurntSushi/toml
// is the teacher's declared direct dependency, SPEC_FULL.md §A).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the full set of environment-level configuration named in
// spec §6: none of it is required, every field has a documented default
// applied by Default().
type Config struct {
	Listen           string
	BufferSize       int
	ConnTimeout      time.Duration
	WorkerCount      int
	BatchMin         int
	BatchMax         int
	BatchStrategy    string // "fixed" | "load_based" | "min_latency" | "max_throughput" | "balanced"
	BatchMinInterval time.Duration

	PoissonMeanMS float64
	PoissonMinMS  float64
	PoissonMaxMS  float64
	JitterPct     float64

	CoverEnabled         bool
	CoverMode            string // "constant_rate" | "adaptive" | "burst"
	CoverTargetRate      float64
	CoverPacketSize      int
	CoverSizeVariability float64
	CoverOverheadCeiling float64

	CorrelationWindow   int
	BurstThresholdPPS   float64

	ReputationMinThreshold int
	RelayMinStake          uint64
	SybilResistance        bool

	LogLevel string
	LogFile  string

	AdminAddr string
}

// Default returns a Config populated with every documented default from
// spec §4 and §6.
func Default() Config {
	return Config{
		Listen:           "127.0.0.1:19000",
		BufferSize:       65536,
		ConnTimeout:      30 * time.Second,
		WorkerCount:      4,
		BatchMin:         1,
		BatchMax:         128,
		BatchStrategy:    "balanced",
		BatchMinInterval: 10 * time.Millisecond,

		PoissonMeanMS: 100,
		PoissonMinMS:  10,
		PoissonMaxMS:  2000,
		JitterPct:     0.10,

		CoverEnabled:         false,
		CoverMode:            "constant_rate",
		CoverTargetRate:      10,
		CoverPacketSize:      512,
		CoverSizeVariability: 0.3,
		CoverOverheadCeiling: 0.05,

		CorrelationWindow: 100,
		BurstThresholdPPS: 50,

		ReputationMinThreshold: 50,
		RelayMinStake:          0,
		SybilResistance:        false,

		LogLevel: "INFO",
		LogFile:  "",

		AdminAddr: "127.0.0.1:19080",
	}
}

// FromFile loads a TOML config file on top of Default(), the same
// "start from a zero value, decode over it" shape as the teacher's
// config.FromFile.
func FromFile(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %q: %w", path, err)
	}
	return cfg, nil
}

// envOverrides names the MIXNODE_* environment variables spec §6's
// environment-level configuration list maps to.
var envOverrides = []struct {
	key   string
	apply func(*Config, string) error
}{
	{"MIXNODE_LISTEN", setString(func(c *Config) *string { return &c.Listen })},
	{"MIXNODE_BUFFER_SIZE", setInt(func(c *Config) *int { return &c.BufferSize })},
	{"MIXNODE_CONN_TIMEOUT_MS", setDurationMS(func(c *Config) *time.Duration { return &c.ConnTimeout })},
	{"MIXNODE_WORKER_COUNT", setInt(func(c *Config) *int { return &c.WorkerCount })},
	{"MIXNODE_BATCH_MIN", setInt(func(c *Config) *int { return &c.BatchMin })},
	{"MIXNODE_BATCH_MAX", setInt(func(c *Config) *int { return &c.BatchMax })},
	{"MIXNODE_BATCH_STRATEGY", setString(func(c *Config) *string { return &c.BatchStrategy })},
	{"MIXNODE_BATCH_MIN_INTERVAL_MS", setDurationMS(func(c *Config) *time.Duration { return &c.BatchMinInterval })},
	{"MIXNODE_POISSON_MEAN_MS", setFloat(func(c *Config) *float64 { return &c.PoissonMeanMS })},
	{"MIXNODE_POISSON_MIN_MS", setFloat(func(c *Config) *float64 { return &c.PoissonMinMS })},
	{"MIXNODE_POISSON_MAX_MS", setFloat(func(c *Config) *float64 { return &c.PoissonMaxMS })},
	{"MIXNODE_JITTER_PCT", setFloat(func(c *Config) *float64 { return &c.JitterPct })},
	{"MIXNODE_COVER_ENABLED", setBool(func(c *Config) *bool { return &c.CoverEnabled })},
	{"MIXNODE_COVER_MODE", setString(func(c *Config) *string { return &c.CoverMode })},
	{"MIXNODE_COVER_TARGET_RATE", setFloat(func(c *Config) *float64 { return &c.CoverTargetRate })},
	{"MIXNODE_COVER_PACKET_SIZE", setInt(func(c *Config) *int { return &c.CoverPacketSize })},
	{"MIXNODE_COVER_SIZE_VARIABILITY", setFloat(func(c *Config) *float64 { return &c.CoverSizeVariability })},
	{"MIXNODE_COVER_OVERHEAD_CEILING", setFloat(func(c *Config) *float64 { return &c.CoverOverheadCeiling })},
	{"MIXNODE_CORRELATION_WINDOW", setInt(func(c *Config) *int { return &c.CorrelationWindow })},
	{"MIXNODE_BURST_THRESHOLD_PPS", setFloat(func(c *Config) *float64 { return &c.BurstThresholdPPS })},
	{"MIXNODE_REPUTATION_MIN_THRESHOLD", setInt(func(c *Config) *int { return &c.ReputationMinThreshold })},
	{"MIXNODE_RELAY_MIN_STAKE", setUint64(func(c *Config) *uint64 { return &c.RelayMinStake })},
	{"MIXNODE_SYBIL_RESISTANCE", setBool(func(c *Config) *bool { return &c.SybilResistance })},
	{"MIXNODE_LOG_LEVEL", setString(func(c *Config) *string { return &c.LogLevel })},
	{"MIXNODE_LOG_FILE", setString(func(c *Config) *string { return &c.LogFile })},
	{"MIXNODE_ADMIN_ADDR", setString(func(c *Config) *string { return &c.AdminAddr })},
}

// ApplyEnvOverrides layers MIXNODE_* environment variables on top of cfg,
// per spec §6's "environment-level configuration" list; any variable not
// set in the environment leaves the existing value untouched.
func (c *Config) ApplyEnvOverrides() error {
	for _, o := range envOverrides {
		v, ok := os.LookupEnv(o.key)
		if !ok {
			continue
		}
		if err := o.apply(c, v); err != nil {
			return fmt.Errorf("config: env %s: %w", o.key, err)
		}
	}
	return nil
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func setInt(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setUint64(field func(*Config) *uint64) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setFloat(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func setBool(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func setDurationMS(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = time.Duration(n * float64(time.Millisecond))
		return nil
	}
}

// Validate refuses an invalid delay configuration at startup (spec §4.10:
// "min>mean or min>max" is a config error, fatal, surfaced only here) and
// any other structurally impossible setting, rather than letting a
// component discover it lazily during operation.
func (c Config) Validate() error {
	if c.PoissonMinMS > c.PoissonMeanMS {
		return fmt.Errorf("config: poisson min (%v) > mean (%v)", c.PoissonMinMS, c.PoissonMeanMS)
	}
	if c.PoissonMinMS > c.PoissonMaxMS {
		return fmt.Errorf("config: poisson min (%v) > max (%v)", c.PoissonMinMS, c.PoissonMaxMS)
	}
	if c.BatchMin < 1 || c.BatchMax > 128 || c.BatchMin > c.BatchMax {
		return fmt.Errorf("config: batch bounds [%d, %d] must satisfy 1 <= min <= max <= 128", c.BatchMin, c.BatchMax)
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("config: worker count must be >= 1, got %d", c.WorkerCount)
	}
	return nil
}
