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

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/dchest/siphash"

	"github.com/betanet/mixnode/internal/vrf"
)

// ReputationSource is queried by SyncWithReputationManager to pull the
// latest reputation/performance/stake for each registered relay. It is
// satisfied by *reputation.Manager without this package importing it
// directly, keeping the dependency edge in one direction (node.go wires
// both together).
type ReputationSource interface {
	// Lookup returns (reputation, performance, stake, ok) for addr.
	Lookup(addr string) (reputation, performance float64, stake uint64, ok bool)
}

// Lottery is a weighted, Sybil-resistant, VRF-verifiable selector of
// next-hop relays (spec §4.7). The cached discrete distribution (a Walker
// alias table) is rebuilt lazily on the first sample after a mutation,
// per the single-writer/invalidate-on-mutate policy of spec §9.
type Lottery struct {
	mu sync.RWMutex

	relays   []*Relay
	index    map[string]int
	alias    *aliasTable

	sybilResistance bool
	minStake        uint64

	vrfKey *vrf.KeyPair
}

// Option configures a new Lottery.
type Option func(*Lottery)

// WithSybilResistance enables stake-gating: relays below minStake are
// assigned zero weight once SyncWithReputationManager runs, per spec §9's
// resolution of the stub/full disagreement. SelectRelay and SelectRelays
// never draw a zero-weight relay while any relay has positive weight, and
// draw uniformly when every weight is zero. SelectUniqueRelays and
// SelectWithProof rank a zero-weight relay as if its weight were 0.01, so
// they can return it.
func WithSybilResistance(minStake uint64) Option {
	return func(l *Lottery) {
		l.sybilResistance = true
		l.minStake = minStake
	}
}

// WithVRFKeyPair attaches a VRF keypair for SelectWithProof.
func WithVRFKeyPair(k *vrf.KeyPair) Option {
	return func(l *Lottery) {
		l.vrfKey = k
	}
}

// New creates an empty Lottery.
func New(opts ...Option) *Lottery {
	l := &Lottery{index: make(map[string]int)}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddRelay appends r, invalidating the cached distribution.
func (l *Lottery) AddRelay(r *Relay) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.index[r.Addr] = len(l.relays)
	l.relays = append(l.relays, r)
	l.alias = nil
}

// RemoveRelay deletes the relay at addr, reindexing the remainder and
// invalidating the cached distribution.
func (l *Lottery) RemoveRelay(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[addr]
	if !ok {
		return
	}
	l.relays = append(l.relays[:i], l.relays[i+1:]...)
	delete(l.index, addr)
	for addr2, idx := range l.index {
		if idx > i {
			l.index[addr2] = idx - 1
		}
	}
	l.alias = nil
}

// UpdateReputation applies the success/failure reputation update to the
// relay at addr (spec §4.7) and invalidates the cached distribution.
func (l *Lottery) UpdateReputation(addr string, success bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	i, ok := l.index[addr]
	if !ok {
		return fmt.Errorf("lottery: unknown relay %q", addr)
	}
	l.relays[i].UpdateReputation(success)
	l.alias = nil
	return nil
}

// Count returns the number of registered relays.
func (l *Lottery) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.relays)
}

// Get returns the relay registered at addr, if any.
func (l *Lottery) Get(addr string) (*Relay, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.index[addr]
	if !ok {
		return nil, false
	}
	return l.relays[i], true
}

var errNoRelays = fmt.Errorf("lottery: no relays available")

// ensureAlias rebuilds the cached Walker alias table if it was
// invalidated by a mutation since the last sample (spec §9).
func (l *Lottery) ensureAlias() (*aliasTable, []*Relay, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.relays) == 0 {
		return nil, nil, errNoRelays
	}
	if l.alias == nil {
		weights := make([]float64, len(l.relays))
		for i, r := range l.relays {
			weights[i] = r.Weight
		}
		l.alias = newAliasTable(weights)
	}
	return l.alias, l.relays, nil
}

// SelectRelay draws one relay with probability proportional to weight.
func (l *Lottery) SelectRelay(rnd *rand.Rand) (*Relay, error) {
	alias, relays, err := l.ensureAlias()
	if err != nil {
		return nil, err
	}
	idx := alias.sample(rnd)
	l.mu.Lock()
	relays[idx].Selections++
	l.mu.Unlock()
	return relays[idx], nil
}

// SelectRelays draws n relays with replacement.
func (l *Lottery) SelectRelays(rnd *rand.Rand, n int) ([]string, error) {
	alias, relays, err := l.ensureAlias()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	l.mu.Lock()
	for i := 0; i < n; i++ {
		idx := alias.sample(rnd)
		relays[idx].Selections++
		out[i] = relays[idx].Addr
	}
	l.mu.Unlock()
	return out, nil
}

// SelectUniqueRelays draws n distinct relays without replacement, using
// weighted reservoir sampling (Efraimidis-Spirakis A-Res): each relay
// gets a key u^(1/w), and the n largest keys win. This needs no rebuild
// of a residual-set distribution per draw (spec §9 design note), unlike
// the naive "rebuild the discrete distribution over the remaining set at
// each step" approach spec §4.7 describes as one valid strategy.
func (l *Lottery) SelectUniqueRelays(rnd *rand.Rand, n int) ([]string, error) {
	l.mu.RLock()
	relays := l.relays
	l.mu.RUnlock()

	if len(relays) == 0 {
		return nil, errNoRelays
	}
	if n > len(relays) {
		return nil, fmt.Errorf("lottery: cannot select %d unique relays from %d available", n, len(relays))
	}

	type keyed struct {
		key float64
		idx int
	}
	keys := make([]keyed, len(relays))
	for i, r := range relays {
		u := rnd.Float64()
		if u <= 0 {
			u = 1e-12
		}
		w := r.Weight
		if w <= 0 {
			w = 0.01
		}
		keys[i] = keyed{key: math.Pow(u, 1.0/w), idx: i}
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].key > keys[b].key })

	out := make([]string, n)
	l.mu.Lock()
	for i := 0; i < n; i++ {
		r := relays[keys[i].idx]
		r.Selections++
		out[i] = r.Addr
	}
	l.mu.Unlock()
	return out, nil
}

// SelectWithProof draws n distinct relays deterministically from seed
// using the lottery's VRF keypair, returning both the selection and a
// LotteryProof a peer can check against the published public key (spec
// §4.7). Per-candidate draw keys are derived by hashing the VRF output
// together with each relay's index (deriveIndexRandomness) so the same
// seed always yields the same winners without needing n independent VRF
// evaluations.
func (l *Lottery) SelectWithProof(seed []byte, n int) (*LotteryProof, error) {
	if l.vrfKey == nil {
		return nil, fmt.Errorf("lottery: no VRF keypair configured")
	}

	l.mu.RLock()
	relays := make([]*Relay, len(l.relays))
	copy(relays, l.relays)
	l.mu.RUnlock()

	if len(relays) == 0 {
		return nil, errNoRelays
	}
	if n > len(relays) {
		return nil, fmt.Errorf("lottery: cannot select %d unique relays from %d available", n, len(relays))
	}

	out := l.vrfKey.Evaluate(seed)

	type keyed struct {
		key float64
		idx int
	}
	keys := make([]keyed, len(relays))
	for i, r := range relays {
		h := deriveIndexRandomness(out.Bytes, i)
		u := float64(h>>11) / float64(uint64(1)<<53)
		if u <= 0 {
			u = 1e-12
		}
		w := r.Weight
		if w <= 0 {
			w = 0.01
		}
		keys[i] = keyed{key: math.Pow(u, 1.0/w), idx: i}
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].key > keys[b].key })

	selected := make([]string, n)
	weights := make([]float64, n)
	l.mu.Lock()
	for i := 0; i < n; i++ {
		r := relays[keys[i].idx]
		r.Selections++
		selected[i] = r.Addr
		weights[i] = r.Weight
	}
	l.mu.Unlock()

	return &LotteryProof{
		Seed:          append([]byte(nil), seed...),
		SelectedAddrs: selected,
		WeightsAtDraw: weights,
		VRFOutput:     out,
		VRFPublicKey:  l.vrfKey.PublicKey(),
	}, nil
}

// deriveIndexRandomness hashes vrfOutput || index with SipHash, the
// multi-select derivation spec §4.7 names for select_with_proof.
func deriveIndexRandomness(vrfOutput [vrf.OutputSize]byte, index int) uint64 {
	var idxBytes [8]byte
	for i := 0; i < 8; i++ {
		idxBytes[7-i] = byte(index >> (8 * i))
	}
	var msg [vrf.OutputSize + 8]byte
	copy(msg[:], vrfOutput[:])
	copy(msg[vrf.OutputSize:], idxBytes[:])
	return siphash.Hash(0, 0, msg[:])
}

// CostOfForgery models how expensive it is for an attacker holding
// attackerStake to dominate the lottery (spec §4.7): 0 if Sybil
// resistance is disabled; otherwise p = attacker/total, returning
// 1/(1-p) (clamped) for p >= 0.33 and p linearly below that.
func (l *Lottery) CostOfForgery(attackerStake uint64) float64 {
	if !l.sybilResistance {
		return 0
	}
	l.mu.RLock()
	var total uint64
	for _, r := range l.relays {
		total += r.Stake
	}
	l.mu.RUnlock()
	if total == 0 {
		return 0
	}
	p := float64(attackerStake) / float64(total)
	if p >= 0.33 {
		denom := 1 - p
		if denom < 0.01 {
			denom = 0.01
		}
		return 1 / denom
	}
	return p
}

// SyncWithReputationManager refreshes every relay's reputation,
// performance and stake from src, recomputes weight, and zeroes the
// weight of any relay below minStake when Sybil resistance is on (spec
// §9's resolution: zero, not 0.01, for below-threshold nodes).
func (l *Lottery) SyncWithReputationManager(src ReputationSource) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.relays {
		reputation, performance, stake, ok := src.Lookup(r.Addr)
		if !ok {
			continue
		}
		if l.sybilResistance && stake < l.minStake {
			r.Reputation = reputation
			r.Performance = performance
			r.Stake = stake
			r.Weight = 0
			continue
		}
		r.Reputation = reputation
		r.Performance = performance
		r.Stake = stake
		r.RecomputeWeight()
	}
	l.alias = nil
}
