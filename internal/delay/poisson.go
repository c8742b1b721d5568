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

// Package delay implements the Poisson/VRF packet-delay scheduler of
// spec §4.4. The teacher's own path_selection.RouteFactory samples
// per-hop delays from an exponential distribution via
// github.com/katzenpost/core/crypto/rand's rand.Exp(lambda) (see
// path_selection/path_selection.go's getDelays); this package is the
// server-side counterpart, generalized with jitter, a circuit multiplier,
// load adaptation, and an optional VRF-seeded uniform in place of the
// local PRNG.
package delay

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/betanet/mixnode/internal/vrf"
)

// Config parameterizes a Scheduler. MeanMS, MinMS and MaxMS are all in
// milliseconds.
type Config struct {
	MeanMS float64
	MinMS  float64
	MaxMS  float64

	// JitterPct is the default jitter fraction applied per sample,
	// e.g. 0.10 for the default ±10% (spec §4.4). Clamped to ±0.50.
	JitterPct float64
}

// Validate enforces spec §4.10's "invalid delay config" refusal: a
// misconfigured scheduler must fail at construction, not at sample time.
func (c Config) Validate() error {
	if c.MinMS > c.MeanMS {
		return fmt.Errorf("delay: invalid config: min (%v) > mean (%v)", c.MinMS, c.MeanMS)
	}
	if c.MinMS > c.MaxMS {
		return fmt.Errorf("delay: invalid config: min (%v) > max (%v)", c.MinMS, c.MaxMS)
	}
	return nil
}

func clampJitter(j float64) float64 {
	if j > 0.5 {
		return 0.5
	}
	if j < -0.5 {
		return -0.5
	}
	return j
}

// Scheduler samples a delay for each packet from an exponential
// distribution with rate lambda = 1/mean, modulated by jitter, a
// per-circuit speed dial, and the current network load, then clamped to
// [min, max] (spec §4.4).
type Scheduler struct {
	cfg Config
	rnd *rand.Rand
}

// New builds a Scheduler, refusing construction on an invalid config
// (spec §4.10).
func New(cfg Config) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.JitterPct == 0 {
		cfg.JitterPct = 0.10
	}
	return &Scheduler{
		cfg: cfg,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// uniform01 returns the scheduler's local uniform sample in [0,1).
func (s *Scheduler) uniform01() float64 {
	return s.rnd.Float64()
}

// sampleExp inverts U ~ Uniform(0,1) through -ln(1-U)/lambda to draw an
// exponential sample with the given mean (spec §4.4 Sampling).
func sampleExp(u float64, meanMS float64) float64 {
	if u >= 1 {
		u = 1 - 1e-15
	}
	lambda := 1.0 / meanMS
	return -math.Log(1-u) / lambda
}

// Sample draws one delay using the scheduler's local PRNG,
// with circuitMultiplier (0.1-10x) and load (0..1) applied per spec §4.4.
func (s *Scheduler) Sample(circuitMultiplier, load float64) time.Duration {
	return s.sample(s.uniform01(), circuitMultiplier, load)
}

// SampleVRF draws one delay using a VRF output in place of the local
// PRNG, as required when the vrf_delays feature is negotiated (spec §4.4
// VRF-seeded variant). The proof in out is discarded; only the bytes are
// consumed.
func (s *Scheduler) SampleVRF(out vrf.Output, circuitMultiplier, load float64) time.Duration {
	return s.sample(vrf.Uniform(out), circuitMultiplier, load)
}

func (s *Scheduler) sample(u, circuitMultiplier, load float64) time.Duration {
	mean := s.cfg.MeanMS * (1 + 2*load*load) // load adaptation, spec §4.4
	d := sampleExp(u, mean)

	jitter := clampJitter(s.cfg.JitterPct)
	jitterFactor := 1 + (s.uniform01()*2-1)*jitter
	d *= jitterFactor

	if circuitMultiplier <= 0 {
		circuitMultiplier = 1
	}
	d *= clampCircuitMultiplier(circuitMultiplier)

	if d < s.cfg.MinMS {
		d = s.cfg.MinMS
	}
	if d > s.cfg.MaxMS {
		d = s.cfg.MaxMS
	}
	return time.Duration(d * float64(time.Millisecond))
}

func clampCircuitMultiplier(m float64) float64 {
	if m < 0.1 {
		return 0.1
	}
	if m > 10 {
		return 10
	}
	return m
}
