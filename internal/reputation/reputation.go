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

// Package reputation tracks per-relay trust scores and exposes them to
// internal/lottery through the ReputationSource interface. Time-dependent
// logic (decay ticks) is driven by an injected github.com/jonboulle/clockwork
// clock rather than time.Now, the pattern the teacher's clock/clock.go
// establishes for testable time in this codebase.
package reputation

import (
	"math"
	"sync"

	"github.com/jonboulle/clockwork"
)

// Points is a raw reputation score in [0, 200]; 100 is the starting score
// for a newly observed relay (spec §4.8).
type Points int32

// Action is an observed relay behavior that moves its Points.
type Action int

const (
	ActionSuccessfulForward Action = iota
	ActionUptimeMilestone
	ActionHighQualityService
	ActionTaskFailure
	ActionDroppedConnection
	ActionMaliciousBehavior
)

// pointsDelta is the fixed point delta table for each Action (spec §4.8).
func (a Action) pointsDelta() int32 {
	switch a {
	case ActionSuccessfulForward:
		return 10
	case ActionUptimeMilestone:
		return 5
	case ActionHighQualityService:
		return 20
	case ActionTaskFailure:
		return -15
	case ActionDroppedConnection:
		return -25
	case ActionMaliciousBehavior:
		return -50
	default:
		return 0
	}
}

// PerformanceMetrics accumulates forwarding behavior used to derive the
// Performance score the lottery consults alongside Reputation.
type PerformanceMetrics struct {
	PacketsProcessed uint64
	PacketsForwarded uint64
	PacketsDropped   uint64
	AvgLatencyMS     float64
}

// RecordPacket tallies one forward/drop decision.
func (m *PerformanceMetrics) RecordPacket(forwarded bool) {
	m.PacketsProcessed++
	if forwarded {
		m.PacketsForwarded++
	} else {
		m.PacketsDropped++
	}
}

// UpdateLatency folds latencyMS into the running EMA (alpha = 0.1).
func (m *PerformanceMetrics) UpdateLatency(latencyMS float64) {
	const alpha = 0.1
	if m.AvgLatencyMS == 0 {
		m.AvgLatencyMS = latencyMS
		return
	}
	m.AvgLatencyMS = alpha*latencyMS + (1-alpha)*m.AvgLatencyMS
}

// SuccessRate is forwarded/processed, defaulting to 1.0 for a relay with
// no observations yet so new relays aren't penalized before they've had
// a chance to perform.
func (m *PerformanceMetrics) SuccessRate() float64 {
	if m.PacketsProcessed == 0 {
		return 1.0
	}
	return float64(m.PacketsForwarded) / float64(m.PacketsProcessed)
}

// LatencyScore maps AvgLatencyMS onto [0, 1]: 0ms -> 1.0, 200ms+ -> 0.0.
func (m *PerformanceMetrics) LatencyScore() float64 {
	score := 1.0 - m.AvgLatencyMS/200.0
	if score < 0 {
		return 0
	}
	return score
}

// NodeReputation is the full reputation record for one relay address
// (spec §4.8). Reputation and Performance are normalized to [0, 1] for
// direct use by internal/lottery.ComputeWeight.
type NodeReputation struct {
	Addr       string
	Points     Points
	Reputation float64
	Stake      uint64
	Metrics    PerformanceMetrics

	SuccessfulForwards  uint32
	TaskFailures        uint32
	UptimeMilestones    uint32
	QualityBonuses      uint32
	DroppedConnections  uint32
	MaliciousEvents     uint32
	DecayEvents         uint32

	CreatedAtUnix   int64
	LastActiveUnix  int64
}

// New creates a NodeReputation at the default starting score (100 of 200
// points, i.e. Reputation 0.5).
func New(addr string, now clockwork.Clock) *NodeReputation {
	n := now.Now().Unix()
	return &NodeReputation{
		Addr:           addr,
		Points:         100,
		Reputation:     0.5,
		CreatedAtUnix:  n,
		LastActiveUnix: n,
	}
}

// WithStake creates a NodeReputation with an initial stake amount.
func WithStake(addr string, stake uint64, now clockwork.Clock) *NodeReputation {
	n := New(addr, now)
	n.Stake = stake
	return n
}

// ApplyAction moves Points by action's fixed delta, clamps to [0, 200],
// recomputes the normalized Reputation, and refreshes LastActiveUnix.
func (n *NodeReputation) ApplyAction(action Action, now clockwork.Clock) {
	n.Points = clampPoints(n.Points + Points(action.pointsDelta()))
	n.Reputation = float64(n.Points) / 200.0
	n.recordHistory(action)
	n.LastActiveUnix = now.Now().Unix()
}

// ApplyCustomDelta moves Points by an arbitrary caller-supplied amount
// (spec §4.8's Custom(n): n kind, which doesn't fit the fixed-delta Action
// table), clamps to [0, 200], recomputes Reputation, and refreshes
// LastActiveUnix.
func (n *NodeReputation) ApplyCustomDelta(delta int32, now clockwork.Clock) {
	n.Points = clampPoints(n.Points + Points(delta))
	n.Reputation = float64(n.Points) / 200.0
	n.LastActiveUnix = now.Now().Unix()
}

func (n *NodeReputation) recordHistory(action Action) {
	switch action {
	case ActionSuccessfulForward:
		n.SuccessfulForwards++
	case ActionUptimeMilestone:
		n.UptimeMilestones++
	case ActionHighQualityService:
		n.QualityBonuses++
	case ActionTaskFailure:
		n.TaskFailures++
	case ActionDroppedConnection:
		n.DroppedConnections++
	case ActionMaliciousBehavior:
		n.MaliciousEvents++
	}
}

// ApplyDecay shrinks Points by 0.99^daysInactive (spec §4.8) and recomputes
// Reputation. A no-op when daysInactive is 0.
func (n *NodeReputation) ApplyDecay(daysInactive uint32) {
	if daysInactive == 0 {
		return
	}
	factor := math.Pow(0.99, float64(daysInactive))
	n.Points = clampPoints(Points(float64(n.Points) * factor))
	n.Reputation = float64(n.Points) / 200.0
	n.DecayEvents++
}

// DaysSinceActive returns whole days elapsed since LastActiveUnix.
func (n *NodeReputation) DaysSinceActive(now clockwork.Clock) uint32 {
	delta := now.Now().Unix() - n.LastActiveUnix
	if delta < 0 {
		return 0
	}
	return uint32(delta / 86400)
}

// AccountAgeDays returns the days (including the fractional part) since
// CreatedAtUnix.
func (n *NodeReputation) AccountAgeDays(now clockwork.Clock) float64 {
	delta := now.Now().Unix() - n.CreatedAtUnix
	if delta < 0 {
		return 0
	}
	return float64(delta) / 86400.0
}

// CostOfForgery combines stake, reputation history, account age and
// success rate into a single scalar: the higher, the more expensive this
// relay's identity would be for an attacker to recreate from scratch
// (spec §4.8 — distinct from internal/lottery.Lottery.CostOfForgery,
// which measures attacker stake share rather than a single relay's
// standing).
func (n *NodeReputation) CostOfForgery(now clockwork.Clock) float64 {
	stakeFactor := math.Log(float64(n.Stake))
	if math.IsInf(stakeFactor, -1) || stakeFactor < 1.0 {
		stakeFactor = 1.0
	}
	reputationFactor := float64(n.Points) / 100.0
	if reputationFactor < 0.1 {
		reputationFactor = 0.1
	}
	ageDays := n.AccountAgeDays(now)
	if ageDays > 365 {
		ageDays = 365
	}
	ageFactor := ageDays / 365.0
	successFactor := n.Metrics.SuccessRate()

	return stakeFactor * reputationFactor * (1 + ageFactor) * (1 + successFactor)
}

// MeetsThreshold reports whether Points is at least minPoints.
func (n *NodeReputation) MeetsThreshold(minPoints Points) bool {
	return n.Points >= minPoints
}

func clampPoints(p Points) Points {
	if p < 0 {
		return 0
	}
	if p > 200 {
		return 200
	}
	return p
}

// Manager tracks NodeReputation for every known relay address, the
// single-writer-many-reader map spec §9 calls for: mutations take the
// write lock, Lookup (internal/lottery's hot path) takes only a read lock.
type Manager struct {
	mu    sync.RWMutex
	nodes map[string]*NodeReputation
	clock clockwork.Clock

	minThreshold Points
}

// Option configures a new Manager.
type Option func(*Manager)

// WithClock overrides the default real clockwork.Clock, for deterministic
// decay tests.
func WithClock(c clockwork.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithMinThreshold sets the minimum point count a relay must hold to be
// considered eligible (spec §4.8 default: 50).
func WithMinThreshold(min Points) Option {
	return func(m *Manager) { m.minThreshold = min }
}

// New builds an empty Manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		nodes:        make(map[string]*NodeReputation),
		clock:        clockwork.NewRealClock(),
		minThreshold: 50,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddNode registers addr with an initial stake, starting at the default
// reputation if not already tracked.
func (m *Manager) AddNode(addr string, stake uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.nodes[addr]; ok {
		return
	}
	m.nodes[addr] = WithStake(addr, stake, m.clock)
}

// Get returns a copy of addr's NodeReputation, if tracked.
func (m *Manager) Get(addr string) (NodeReputation, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[addr]
	if !ok {
		return NodeReputation{}, false
	}
	return *n, true
}

// Lookup implements internal/lottery.ReputationSource: unknown relays
// report the defaults an unobserved node would have (reputation 0.5,
// performance 1.0, stake 0) rather than being excluded outright.
func (m *Manager) Lookup(addr string) (reputation, performance float64, stake uint64, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, found := m.nodes[addr]
	if !found {
		return 0.5, 1.0, 0, true
	}
	return n.Reputation, n.Metrics.SuccessRate(), n.Stake, true
}

// UpdateReputation applies action to addr, registering addr at the
// default reputation first if unknown.
func (m *Manager) UpdateReputation(addr string, action Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[addr]
	if !ok {
		n = New(addr, m.clock)
		m.nodes[addr] = n
	}
	n.ApplyAction(action, m.clock)
}

// ApplyCustomDelta applies an arbitrary point delta to addr, registering
// addr at the default reputation first if unknown (spec §4.8's Custom(n)
// action kind).
func (m *Manager) ApplyCustomDelta(addr string, delta int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[addr]
	if !ok {
		n = New(addr, m.clock)
		m.nodes[addr] = n
	}
	n.ApplyCustomDelta(delta, m.clock)
}

// RecordPacket folds a forward/drop decision and optional latency sample
// into addr's PerformanceMetrics.
func (m *Manager) RecordPacket(addr string, forwarded bool, latencyMS float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[addr]
	if !ok {
		n = New(addr, m.clock)
		m.nodes[addr] = n
	}
	n.Metrics.RecordPacket(forwarded)
	if latencyMS > 0 {
		n.Metrics.UpdateLatency(latencyMS)
	}
}

// ApplyDecayAll applies per-node inactivity decay to every tracked relay,
// meant to run on a periodic tick (spec §4.8).
func (m *Manager) ApplyDecayAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.nodes {
		days := n.DaysSinceActive(m.clock)
		n.ApplyDecay(days)
	}
}

// CostOfForgery returns addr's NodeReputation.CostOfForgery, or 1.0 (low
// cost) for an unknown node.
func (m *Manager) CostOfForgery(addr string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[addr]
	if !ok {
		return 1.0
	}
	return n.CostOfForgery(m.clock)
}

// MeetsThreshold reports whether addr is known and above the manager's
// minimum point threshold. Unknown relays are allowed by default, the
// same "don't penalize before observation" policy Lookup applies.
func (m *Manager) MeetsThreshold(addr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[addr]
	if !ok {
		return true
	}
	return n.MeetsThreshold(m.minThreshold)
}

// NodeCount returns the number of tracked relays.
func (m *Manager) NodeCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// Statistics summarizes the manager's current state.
type Statistics struct {
	TotalNodes        int
	AvgReputation     float64
	AvgPoints         float64
	AvgCostOfForgery  float64
	NodesAboveMinimum int
}

// Statistics computes a fresh summary over all tracked nodes.
func (m *Manager) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.nodes) == 0 {
		return Statistics{AvgReputation: 0.5, AvgPoints: 100}
	}
	var stats Statistics
	stats.TotalNodes = len(m.nodes)
	var sumRep, sumPoints, sumCost float64
	for _, n := range m.nodes {
		sumRep += n.Reputation
		sumPoints += float64(n.Points)
		sumCost += n.CostOfForgery(m.clock)
		if n.MeetsThreshold(m.minThreshold) {
			stats.NodesAboveMinimum++
		}
	}
	count := float64(len(m.nodes))
	stats.AvgReputation = sumRep / count
	stats.AvgPoints = sumPoints / count
	stats.AvgCostOfForgery = sumCost / count
	return stats
}

// Snapshot returns a copy of every tracked NodeReputation, keyed by
// address, for persistence (see BoltSnapshotStore).
func (m *Manager) Snapshot() map[string]NodeReputation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]NodeReputation, len(m.nodes))
	for addr, n := range m.nodes {
		out[addr] = *n
	}
	return out
}

// Restore replaces the manager's state with snapshot, used to resume
// from a persisted store on startup.
func (m *Manager) Restore(snapshot map[string]NodeReputation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = make(map[string]*NodeReputation, len(snapshot))
	for addr, n := range snapshot {
		cp := n
		m.nodes[addr] = &cp
	}
}
