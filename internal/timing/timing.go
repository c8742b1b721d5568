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

// Package timing implements the mixnode's anti-correlation timing
// defense (spec §4.6): a sliding window of recent packet timings plus
// the randomization, correlation, variance, entropy and burst-detection
// primitives that together make packet delay not trivially predictable
// from the packet's intended delay. Like internal/cover and
// internal/reputation, time-dependent behavior goes through an injected
// github.com/jonboulle/clockwork clock rather than time.Now.
package timing

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// WindowSize is the number of recent samples the defense retains
// (spec §4.6).
const WindowSize = 100

// Sample is one observed packet timing.
type Sample struct {
	ArrivalTime   time.Time
	Size          int
	IntendedDelay time.Duration
	ActualDelay   time.Duration
}

// Config parameterizes a Defense.
type Config struct {
	// RandomizationPct is the fraction applied in Randomize (spec §4.6).
	RandomizationPct float64
	// CorrelationThreshold is the |corr| below which the defense is
	// considered effective (default 0.3).
	CorrelationThreshold float64
	// BurstThresholdPPS is the packets/sec over the last 10 packets above
	// which a burst is flagged.
	BurstThresholdPPS float64
}

func (c *Config) setDefaults() {
	if c.RandomizationPct <= 0 {
		c.RandomizationPct = 0.2
	}
	if c.CorrelationThreshold <= 0 {
		c.CorrelationThreshold = 0.3
	}
	if c.BurstThresholdPPS <= 0 {
		c.BurstThresholdPPS = 50
	}
}

// Defense holds the sliding window of recent packet timings and computes
// the diagnostics of spec §4.6 over it.
type Defense struct {
	mu     sync.Mutex
	cfg    Config
	clock  clockwork.Clock
	rnd    *rand.Rand
	window []Sample
}

// New builds a Defense. clock defaults to a real clock if nil.
func New(cfg Config, clock clockwork.Clock) *Defense {
	cfg.setDefaults()
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Defense{
		cfg:    cfg,
		clock:  clock,
		rnd:    rand.New(rand.NewSource(clock.Now().UnixNano())),
		window: make([]Sample, 0, WindowSize),
	}
}

// Randomize applies spec §4.6's actual = intended * (1 + U(-1,1)*pct),
// clamped to a non-negative duration.
func (d *Defense) Randomize(intended time.Duration) time.Duration {
	d.mu.Lock()
	u := d.rnd.Float64()*2 - 1
	d.mu.Unlock()
	actual := float64(intended) * (1 + u*d.cfg.RandomizationPct)
	if actual < 0 {
		actual = 0
	}
	return time.Duration(actual)
}

// Record appends one observed sample, evicting the oldest once the
// window exceeds WindowSize.
func (d *Defense) Record(size int, intended, actual time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := Sample{ArrivalTime: d.clock.Now(), Size: size, IntendedDelay: intended, ActualDelay: actual}
	d.window = append(d.window, s)
	if len(d.window) > WindowSize {
		d.window = d.window[len(d.window)-WindowSize:]
	}
}

// Correlation returns the Pearson correlation between the window's
// intended and actual delay streams (spec §4.6). 0 with fewer than 2
// samples.
func (d *Defense) Correlation() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.window)
	if n < 2 {
		return 0
	}
	var sumX, sumY float64
	for _, s := range d.window {
		sumX += float64(s.IntendedDelay)
		sumY += float64(s.ActualDelay)
	}
	meanX, meanY := sumX/float64(n), sumY/float64(n)

	var cov, varX, varY float64
	for _, s := range d.window {
		dx := float64(s.IntendedDelay) - meanX
		dy := float64(s.ActualDelay) - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

// IsEffective reports whether the measured correlation stays under the
// configured threshold (spec §4.6).
func (d *Defense) IsEffective() bool {
	return math.Abs(d.Correlation()) < d.cfg.CorrelationThreshold
}

// IntervalVariance returns the variance of inter-arrival intervals across
// the window (spec §4.6).
func (d *Defense) IntervalVariance() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.window)
	if n < 3 {
		return 0
	}
	intervals := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		intervals = append(intervals, float64(d.window[i].ArrivalTime.Sub(d.window[i-1].ArrivalTime).Milliseconds()))
	}
	var sum float64
	for _, iv := range intervals {
		sum += iv
	}
	mean := sum / float64(len(intervals))
	var sq float64
	for _, iv := range intervals {
		sq += (iv - mean) * (iv - mean)
	}
	return sq / float64(len(intervals))
}

// entropyBins is the histogram bucket count for Entropy (spec §4.6).
const entropyBins = 20

// Entropy returns the Shannon entropy (base 2) over a 20-bin histogram of
// actual delays in the window (spec §4.6).
func (d *Defense) Entropy() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.window)
	if n == 0 {
		return 0
	}
	var minD, maxD time.Duration = d.window[0].ActualDelay, d.window[0].ActualDelay
	for _, s := range d.window {
		if s.ActualDelay < minD {
			minD = s.ActualDelay
		}
		if s.ActualDelay > maxD {
			maxD = s.ActualDelay
		}
	}
	span := float64(maxD - minD)
	if span <= 0 {
		return 0
	}
	var bins [entropyBins]int
	for _, s := range d.window {
		idx := int(float64(s.ActualDelay-minD) / span * entropyBins)
		if idx >= entropyBins {
			idx = entropyBins - 1
		}
		if idx < 0 {
			idx = 0
		}
		bins[idx]++
	}
	var entropy float64
	for _, count := range bins {
		if count == 0 {
			continue
		}
		p := float64(count) / float64(n)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// BurstRate returns packets/sec over the last 10 samples in the window
// (spec §4.6); 0 if fewer than 2 samples are available.
func (d *Defense) BurstRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.window)
	if n < 2 {
		return 0
	}
	k := 10
	if k > n {
		k = n
	}
	recent := d.window[n-k:]
	span := recent[len(recent)-1].ArrivalTime.Sub(recent[0].ArrivalTime).Seconds()
	if span <= 0 {
		return 0
	}
	return float64(len(recent)-1) / span
}

// IsBurst reports whether BurstRate exceeds the configured threshold.
func (d *Defense) IsBurst() bool {
	return d.BurstRate() > d.cfg.BurstThresholdPPS
}

// BurstMask returns a delay uniformly drawn from [10, 100]ms, the masking
// delay spec §4.6 prescribes once a burst is detected.
func (d *Defense) BurstMask() time.Duration {
	d.mu.Lock()
	u := d.rnd.Float64()
	d.mu.Unlock()
	ms := 10 + u*90
	return time.Duration(ms * float64(time.Millisecond))
}

// ResistanceScore combines correlation, variance and entropy into the
// single scalar of spec §4.6:
// 0.3*(1-|corr|) + 0.3*min(1, var/10000) + 0.4*min(1, entropy/4.32).
func (d *Defense) ResistanceScore() float64 {
	corrTerm := 1 - math.Abs(d.Correlation())
	varTerm := d.IntervalVariance() / 10000
	if varTerm > 1 {
		varTerm = 1
	}
	entropyTerm := d.Entropy() / 4.32
	if entropyTerm > 1 {
		entropyTerm = 1
	}
	return 0.3*corrTerm + 0.3*varTerm + 0.4*entropyTerm
}
