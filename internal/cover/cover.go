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

// Package cover implements the mixnode's dummy-traffic generator
// (spec §4.5): cover packets statistically matched to the real-traffic
// size/interval distribution, emitted only while the cover-to-real byte
// ratio stays under a configured overhead ceiling. Time-dependent state
// (inter-arrival tracking) is driven by an injected
// github.com/jonboulle/clockwork clock, the same pattern
// internal/reputation and internal/timing use for deterministic tests.
package cover

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Mode selects how the mixer paces cover-packet emission (spec §4.5).
type Mode int

const (
	// ConstantRate emits at a fixed 1/TargetRate interval.
	ConstantRate Mode = iota
	// Adaptive matches the observed real-traffic inter-packet mean.
	Adaptive
	// Burst intervals are BaseIntervalMS +/- 50% uniform jitter.
	Burst
)

// Config parameterizes a Mixer.
type Config struct {
	Mode Mode

	// TargetRate is packets/second for ConstantRate, and the fallback
	// rate for Adaptive before any real traffic has been observed.
	TargetRate float64

	// BaseIntervalMS is Burst's base inter-packet interval.
	BaseIntervalMS float64

	// OverheadCeiling caps cover_bytes/real_bytes (default 0.05, spec §4.5).
	OverheadCeiling float64

	// SizeVariability scales the uniform spread around the real-traffic
	// mean size when drawing a cover-packet size (default 0.3).
	SizeVariability float64

	// MinPacketSize floors any drawn cover-packet size (spec default 64).
	MinPacketSize int
}

func (c *Config) setDefaults() {
	if c.OverheadCeiling <= 0 {
		c.OverheadCeiling = 0.05
	}
	if c.SizeVariability <= 0 {
		c.SizeVariability = 0.3
	}
	if c.MinPacketSize <= 0 {
		c.MinPacketSize = 64
	}
	if c.TargetRate <= 0 {
		c.TargetRate = 10
	}
	if c.BaseIntervalMS <= 0 {
		c.BaseIntervalMS = 100
	}
}

// Mixer tracks the real-traffic size/interval distribution and decides
// when to insert a dummy packet (spec §4.5).
type Mixer struct {
	mu    sync.Mutex
	cfg   Config
	clock clockwork.Clock
	rnd   *rand.Rand

	realSize     welford
	realInterval welford
	coverSize    welford
	coverInterval welford

	lastRealAt  time.Time
	lastCoverAt time.Time

	realBytes  uint64
	coverBytes uint64
	coverSent  uint64
}

// New builds a Mixer. clock defaults to a real clock if nil.
func New(cfg Config, clock clockwork.Clock) *Mixer {
	cfg.setDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Mixer{
		cfg:   cfg,
		clock: clock,
		rnd:   rand.New(rand.NewSource(clock.Now().UnixNano())),
	}
}

// RecordReal folds one observed real packet into the tracked
// size/interval distribution.
func (m *Mixer) RecordReal(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.realSize.add(float64(size))
	if !m.lastRealAt.IsZero() {
		m.realInterval.add(float64(now.Sub(m.lastRealAt).Milliseconds()))
	}
	m.lastRealAt = now
	m.realBytes += uint64(size)
}

// NextInterval returns how long the caller should wait before the next
// cover-emission decision, per the mixer's configured Mode (spec §4.5).
func (m *Mixer) NextInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextIntervalLocked()
}

func (m *Mixer) nextIntervalLocked() time.Duration {
	switch m.cfg.Mode {
	case Adaptive:
		mean := m.realInterval.mean
		if mean <= 0 {
			mean = 1000.0 / m.cfg.TargetRate
		}
		return time.Duration(mean * float64(time.Millisecond))
	case Burst:
		jitter := 1 + (m.rnd.Float64()*2-1)*0.5
		return time.Duration(m.cfg.BaseIntervalMS * jitter * float64(time.Millisecond))
	default: // ConstantRate
		return time.Duration(1000.0 / m.cfg.TargetRate * float64(time.Millisecond))
	}
}

// Emit decides whether to emit one cover packet right now and, if so,
// what size it should be. It refuses to emit once cover_bytes/real_bytes
// would exceed OverheadCeiling (spec P13), the only admission gate this
// mixer enforces; score-based indistinguishability is purely a
// monitoring signal (spec §4.5).
func (m *Mixer) Emit() (size int, emit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	realMean := m.realSize.mean
	if realMean <= 0 {
		realMean = float64(m.cfg.MinPacketSize)
	}
	spread := (m.rnd.Float64()*2 - 1) * realMean * m.cfg.SizeVariability
	drawn := realMean + spread
	if drawn < float64(m.cfg.MinPacketSize) {
		drawn = float64(m.cfg.MinPacketSize)
	}
	size = int(drawn)

	denom := m.realBytes
	if denom == 0 {
		denom = 1
	}
	if float64(m.coverBytes+uint64(size))/float64(denom) > m.cfg.OverheadCeiling {
		return 0, false
	}

	now := m.clock.Now()
	m.coverSize.add(float64(size))
	if !m.lastCoverAt.IsZero() {
		m.coverInterval.add(float64(now.Sub(m.lastCoverAt).Milliseconds()))
	}
	m.lastCoverAt = now

	m.coverBytes += uint64(size)
	m.coverSent++
	return size, true
}

// sim implements spec §4.5's sim(a,b) = 1 - |cv_a - cv_b| / max(cv_a+cv_b, 0.001).
func sim(cvA, cvB float64) float64 {
	denom := cvA + cvB
	if denom < 0.001 {
		denom = 0.001
	}
	return 1 - math.Abs(cvA-cvB)/denom
}

// IndistinguishabilityScore returns the weighted size/interval similarity
// of spec §4.5: 0.6*size_sim + 0.4*interval_sim. It is a monitoring
// signal, not an admission gate (spec §4.5).
func (m *Mixer) IndistinguishabilityScore() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	sizeSim := sim(m.realSize.coefficientOfVariation(), m.coverSize.coefficientOfVariation())
	intervalSim := sim(m.realInterval.coefficientOfVariation(), m.coverInterval.coefficientOfVariation())
	return 0.6*sizeSim + 0.4*intervalSim
}

// Stats is a point-in-time snapshot of the mixer's counters.
type Stats struct {
	RealBytes  uint64
	CoverBytes uint64
	CoverSent  uint64
	Overhead   float64
}

// Stats returns the current real/cover byte counters and their ratio.
func (m *Mixer) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	overhead := 0.0
	if m.realBytes > 0 {
		overhead = float64(m.coverBytes) / float64(m.realBytes)
	}
	return Stats{
		RealBytes:  m.realBytes,
		CoverBytes: m.coverBytes,
		CoverSent:  m.coverSent,
		Overhead:   overhead,
	}
}

// String renders the mode for logging.
func (mode Mode) String() string {
	switch mode {
	case ConstantRate:
		return "constant_rate"
	case Adaptive:
		return "adaptive"
	case Burst:
		return "burst"
	default:
		return fmt.Sprintf("Mode(%d)", int(mode))
	}
}
