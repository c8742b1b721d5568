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

package cover

import "math"

// welford tracks a running mean and standard deviation with Welford's
// online algorithm (spec §4.5), avoiding the numerical instability of a
// naive sum-of-squares variance over a long-running process. No library
// in the retrieval pack offers an online variance estimator; this is a
// dozen-line closed-form algorithm, not a domain concern worth pulling a
// dependency in for (DESIGN.md).
type welford struct {
	count int64
	mean  float64
	m2    float64
}

func (w *welford) add(x float64) {
	w.count++
	delta := x - w.mean
	w.mean += delta / float64(w.count)
	delta2 := x - w.mean
	w.m2 += delta * delta2
}

func (w *welford) variance() float64 {
	if w.count < 2 {
		return 0
	}
	return w.m2 / float64(w.count-1)
}

func (w *welford) stddev() float64 {
	return math.Sqrt(w.variance())
}

// coefficientOfVariation returns stddev/mean, 0 if mean is 0.
func (w *welford) coefficientOfVariation() float64 {
	if w.mean == 0 {
		return 0
	}
	return w.stddev() / w.mean
}
