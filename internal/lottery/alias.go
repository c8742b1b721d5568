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

package lottery

import "math/rand"

// aliasTable is Vose's alias method for O(1) weighted sampling with
// replacement over a fixed discrete distribution. It is rebuilt whenever
// the relay set or any weight changes (see Lottery.ensureAlias) and
// reused across draws until the next mutation, per spec §9's cached-
// distribution invalidation policy.
type aliasTable struct {
	prob  []float64
	alias []int
}

func newAliasTable(weights []float64) *aliasTable {
	n := len(weights)
	t := &aliasTable{
		prob:  make([]float64, n),
		alias: make([]int, n),
	}
	if n == 0 {
		return t
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		// Degenerate: every weight is zero (e.g. all relays below the
		// Sybil-resistance stake floor). Fall back to uniform so
		// SelectRelay still returns something rather than dividing by
		// zero; such a draw ignores stake-gating.
		for i := range weights {
			t.prob[i] = 1
			t.alias[i] = i
		}
		return t
	}

	scaled := make([]float64, n)
	for i, w := range weights {
		scaled[i] = w * float64(n) / sum
	}

	var small, large []int
	for i, p := range scaled {
		if p < 1.0 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		s := small[len(small)-1]
		small = small[:len(small)-1]
		l := large[len(large)-1]
		large = large[:len(large)-1]

		t.prob[s] = scaled[s]
		t.alias[s] = l

		scaled[l] = scaled[l] + scaled[s] - 1.0
		if scaled[l] < 1.0 {
			small = append(small, l)
		} else {
			large = append(large, l)
		}
	}
	for _, l := range large {
		t.prob[l] = 1.0
	}
	for _, s := range small {
		t.prob[s] = 1.0
	}
	return t
}

// sample draws one index in proportion to the original weights.
func (t *aliasTable) sample(rnd *rand.Rand) int {
	n := len(t.prob)
	if n == 0 {
		return -1
	}
	if n == 1 {
		return 0
	}
	i := rnd.Intn(n)
	if rnd.Float64() < t.prob[i] {
		return i
	}
	return t.alias[i]
}
