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

// Package lottery implements the reputation-weighted, stake-gated,
// VRF-verifiable relay selection of spec §4.7.
package lottery

import "math"

// Relay is one candidate next-hop in the lottery (spec §3).
type Relay struct {
	Addr       string
	Reputation float64 // [0, 1]
	Performance float64 // [0, 1]
	Stake      uint64

	Weight float64 // derived, see RecomputeWeight

	// Selections and LastSelectedUnix are monitoring fields carried
	// over from original_source/core/relay_lottery.rs; they play no part
	// in the weighting formula (SPEC_FULL.md §C). Every Select* call
	// increments Selections; nothing in this package writes
	// LastSelectedUnix.
	Selections       uint64
	LastSelectedUnix int64
}

// RecomputeWeight derives Weight from Reputation, Performance and Stake
// per spec §3: weight = clamp(0.5*rep + 0.3*perf + 0.2*min(1, ln(stake)/20), 0.01, 1).
func (r *Relay) RecomputeWeight() {
	r.Weight = ComputeWeight(r.Reputation, r.Performance, r.Stake)
}

// ComputeWeight is the pure function backing Relay.RecomputeWeight.
func ComputeWeight(reputation, performance float64, stake uint64) float64 {
	stakeScore := 0.0
	if stake > 0 {
		stakeScore = math.Log(float64(stake)) / 20.0
	}
	if stakeScore > 1 {
		stakeScore = 1
	}
	if stakeScore < 0 {
		stakeScore = 0
	}
	w := 0.5*reputation + 0.3*performance + 0.2*stakeScore
	if w < 0.01 {
		return 0.01
	}
	if w > 1 {
		return 1
	}
	return w
}

// NewRelay builds a Relay with its weight pre-computed.
func NewRelay(addr string, reputation, performance float64, stake uint64) *Relay {
	r := &Relay{Addr: addr, Reputation: reputation, Performance: performance, Stake: stake}
	r.RecomputeWeight()
	return r
}

// UpdateReputation applies the exponential-moving-average update of
// spec §4.7: r += alpha*(1-r) on success, r -= alpha*r on failure, with
// alpha = 0.1. Weight is recomputed afterward.
func (r *Relay) UpdateReputation(success bool) {
	const alpha = 0.1
	if success {
		r.Reputation += alpha * (1 - r.Reputation)
	} else {
		r.Reputation -= alpha * r.Reputation
	}
	if r.Reputation > 1 {
		r.Reputation = 1
	}
	if r.Reputation < 0 {
		r.Reputation = 0
	}
	r.RecomputeWeight()
}
