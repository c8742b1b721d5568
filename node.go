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

// Package main's Node wires every internal component into the receive ->
// decode -> batch -> delay -> forward pipeline of spec §2. Its accept
// loop is generalized from the teacher's listener.go (container/list of
// live connections, a closeAllCh fan-out on shutdown); everything
// downstream of the accept loop is new, built from the internal/
// packages.
package main

import (
	"container/list"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/op/go-logging"

	"github.com/betanet/mixnode/config"
	"github.com/betanet/mixnode/internal/cover"
	"github.com/betanet/mixnode/internal/delay"
	"github.com/betanet/mixnode/internal/errkind"
	"github.com/betanet/mixnode/internal/httpapi"
	betalog "github.com/betanet/mixnode/internal/log"
	"github.com/betanet/mixnode/internal/lottery"
	"github.com/betanet/mixnode/internal/metrics"
	"github.com/betanet/mixnode/internal/pipeline"
	"github.com/betanet/mixnode/internal/pool"
	"github.com/betanet/mixnode/internal/queue"
	"github.com/betanet/mixnode/internal/reputation"
	"github.com/betanet/mixnode/internal/sphinx"
	"github.com/betanet/mixnode/internal/timing"
	"github.com/betanet/mixnode/internal/vrf"
	"github.com/betanet/mixnode/internal/wire"
)

const keepAliveInterval = 3 * time.Minute

// Node is one running mixnode: the TCP data plane plus every supporting
// component named in spec §4 wired together.
type Node struct {
	sync.WaitGroup
	sync.Mutex

	cfg    config.Config
	nodeID string
	log    *logging.Logger
	clock  clockwork.Clock

	pool       *pool.Pool
	inputQ     *queue.Queue
	loadEst    *pipeline.LoadEstimator
	batchSched *pipeline.BatchScheduler
	workers    *pipeline.WorkerPool
	delaySched *delay.Scheduler
	coverMixer *cover.Mixer
	timingDef  *timing.Defense
	vrfKeys    *vrf.KeyPair
	lottery    *lottery.Lottery
	reputation *reputation.Manager
	snapStore  *reputation.BoltSnapshotStore
	peeler     sphinx.Peeler
	metrics    *metrics.Registry
	http       *httpapi.Server

	advertisement wire.Advertisement

	l          net.Listener
	conns      *list.List
	peerConns  map[string]*peerConn
	closeAllCh chan interface{}
	closeAllWg sync.WaitGroup

	connections      int32
	packetsProcessed uint64
	latencySumMS     uint64
	latencyCount     uint64
}

// New constructs a Node from cfg, wiring every internal component. It
// does not yet listen; call Run for that.
func New(cfg config.Config, nodeID string) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := betalog.New(cfg.LogFile, cfg.LogLevel, false)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	nodeLog := backend.GetLogger("mixnode")

	delaySched, err := delay.New(delay.Config{
		MeanMS: cfg.PoissonMeanMS, MinMS: cfg.PoissonMinMS, MaxMS: cfg.PoissonMaxMS, JitterPct: cfg.JitterPct,
	})
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	vrfKeys, err := vrf.Generate()
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	sphinxPub, sphinxPriv, err := sphinx.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}

	clock := clockwork.NewRealClock()

	repMgr := reputation.New(
		reputation.WithClock(clock),
		reputation.WithMinThreshold(reputation.Points(cfg.ReputationMinThreshold)),
	)

	lotteryOpts := []lottery.Option{lottery.WithVRFKeyPair(vrfKeys)}
	if cfg.SybilResistance {
		lotteryOpts = append(lotteryOpts, lottery.WithSybilResistance(cfg.RelayMinStake))
	}
	lot := lottery.New(lotteryOpts...)

	coverCfg := cover.Config{
		Mode:            modeFromString(cfg.CoverMode),
		TargetRate:      cfg.CoverTargetRate,
		OverheadCeiling: cfg.CoverOverheadCeiling,
		SizeVariability: cfg.CoverSizeVariability,
		MinPacketSize:   cfg.CoverPacketSize,
	}
	coverMixer := cover.New(coverCfg, clock)

	timingDef := timing.New(timing.Config{
		CorrelationThreshold: 0.3,
		BurstThresholdPPS:    cfg.BurstThresholdPPS,
	}, clock)

	ad := wire.Advertisement{
		Version:  wire.ProtocolVersion{Major: 1, Minor: 2},
		Features: 0,
		NodeID:   nodeID,
	}

	reg := metrics.New()

	n := &Node{
		cfg:           cfg,
		nodeID:        nodeID,
		log:           nodeLog,
		clock:         clock,
		pool:          pool.New(cfg.BufferSize, cfg.WorkerCount*4),
		inputQ:        queue.New(cfg.BufferSize, queue.DropOldest),
		loadEst:       pipeline.NewLoadEstimator(),
		delaySched:    delaySched,
		coverMixer:    coverMixer,
		timingDef:     timingDef,
		vrfKeys:       vrfKeys,
		lottery:       lot,
		reputation:    repMgr,
		peeler:        sphinx.NewBoxPeeler(sphinxPub, sphinxPriv),
		metrics:       reg,
		advertisement: ad,
		conns:         list.New(),
		peerConns:     make(map[string]*peerConn),
		closeAllCh:    make(chan interface{}),
	}

	n.batchSched = pipeline.NewBatchScheduler(pipeline.BatchConfig{
		MinBatch:    cfg.BatchMin,
		MaxBatch:    cfg.BatchMax,
		Strategy:    strategyFromString(cfg.BatchStrategy),
		MinInterval: cfg.BatchMinInterval,
	}, clock)

	n.workers = pipeline.NewWorkerPool(cfg.WorkerCount, cfg.WorkerCount*4, n.peeler, n.forward, n.drop)

	n.http = httpapi.New(nodeID, n, reg)

	return n, nil
}

func modeFromString(s string) cover.Mode {
	switch s {
	case "adaptive":
		return cover.Adaptive
	case "burst":
		return cover.Burst
	default:
		return cover.ConstantRate
	}
}

func strategyFromString(s string) pipeline.Strategy {
	switch s {
	case "fixed":
		return pipeline.StrategyFixed
	case "min_latency":
		return pipeline.StrategyMinLatency
	case "max_throughput":
		return pipeline.StrategyMaxThroughput
	case "load_based":
		return pipeline.StrategyLoadBased
	default:
		return pipeline.StrategyBalanced
	}
}

// AddRelay registers a candidate next hop with both the lottery and the
// reputation manager, as the two are kept in sync (spec §4.7's
// SyncWithReputationManager contract).
func (n *Node) AddRelay(addr string, stake uint64) {
	n.reputation.AddNode(addr, stake)
	n.lottery.AddRelay(lottery.NewRelay(addr, 0.5, 0.5, stake))
}

// Run starts the listener, the admin HTTP server, and the dispatch and
// cover-traffic loops, blocking until the listener is closed.
func (n *Node) Run() error {
	l, err := net.Listen("tcp", n.cfg.Listen)
	if err != nil {
		return errkind.Wrap(errkind.ErrIO, "node: listen %s: %v", n.cfg.Listen, err)
	}
	n.l = l
	n.metrics.MixnodeActive.Set(1)

	go func() {
		n.log.Noticef("admin http listening on %s", n.cfg.AdminAddr)
		_ = http.ListenAndServe(n.cfg.AdminAddr, n.http.Handler())
	}()

	n.Add(1)
	go n.dispatchLoop()

	n.Add(1)
	go n.coverLoop()

	n.log.Noticef("listening on: %v", l.Addr())
	defer n.log.Noticef("stopped listening on: %v", l.Addr())
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-n.closeAllCh:
				return nil
			default:
				return errkind.Wrap(errkind.ErrIO, "node: accept: %v", err)
			}
		}
		n.onNewConn(conn)
	}
}

// Shutdown stops accepting connections, drains the worker pool, and
// closes every live connection, mirroring the teacher's listener.halt.
func (n *Node) Shutdown() {
	if n.l != nil {
		n.l.Close()
	}
	close(n.closeAllCh)

	n.Lock()
	for e := n.conns.Front(); e != nil; e = e.Next() {
		e.Value.(*nodeConn).c.Close()
	}
	for addr, pc := range n.peerConns {
		pc.conn.Close()
		delete(n.peerConns, addr)
	}
	n.Unlock()

	n.Wait()
	n.closeAllWg.Wait()
	n.workers.Stop()
	n.metrics.MixnodeActive.Set(0)
	if n.snapStore != nil {
		_ = n.snapStore.Close()
	}
}

type nodeConn struct {
	c   net.Conn
	e   *list.Element
	log *logging.Logger
}

// peerConn is an outbound connection to a next hop, cached alongside the
// version this node and that peer negotiated on dial (spec §4.2). Every
// frame written to conn must be in the packet format that version implies,
// not this node's own native format.
type peerConn struct {
	conn    net.Conn
	version wire.ProtocolVersion
}

func (n *Node) onNewConn(c net.Conn) {
	if tc, ok := c.(*net.TCPConn); ok {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(keepAliveInterval)
	}

	nc := &nodeConn{c: c, log: n.log}
	n.Lock()
	nc.e = n.conns.PushBack(nc)
	n.Unlock()
	atomic.AddInt32(&n.connections, 1)
	n.metrics.ConnectedPeers.Inc()

	n.closeAllWg.Add(1)
	go n.handleConn(nc)
}

func (n *Node) removeConn(nc *nodeConn) {
	n.Lock()
	n.conns.Remove(nc.e)
	n.Unlock()
	atomic.AddInt32(&n.connections, -1)
	n.metrics.ConnectedPeers.Dec()
	_ = nc.c.Close()
	n.closeAllWg.Done()
}

// handleConn runs the handshake (spec §4.2), then reads length-prefixed
// frames off the connection and enqueues each as an InflightPacket (spec
// §3 lifecycle: wire -> input queue). Every packet must clear negotiation
// before the read loop starts (spec §5's strict-ordering guarantee).
func (n *Node) handleConn(nc *nodeConn) {
	defer n.removeConn(nc)

	negotiator := wire.NewVersionNegotiator(n.advertisement, n.log)
	_ = n.cfg.ConnTimeout
	result, err := negotiator.Negotiate(nc.c, nc.c)
	if err != nil {
		n.log.Warningf("handshake failed for %s: %v", nc.c.RemoteAddr(), err)
		return
	}
	format := wire.FormatForVersion(result.NegotiatedVersion)

	fr := wire.NewFramedReader(nc.c)
	for {
		select {
		case <-n.closeAllCh:
			return
		default:
		}

		framePayload, err := fr.ReadFrame()
		if err != nil {
			return
		}
		payload, _, _, _, err := wire.DecodeFrame(format, framePayload)
		if err != nil {
			n.log.Warningf("packet error from %s: %v", nc.c.RemoteAddr(), err)
			n.metrics.PacketsDropped.Inc()
			continue
		}

		buf := n.pool.Acquire()
		buf = append(buf[:0], payload...)
		pkt := &pipeline.InflightPacket{
			Payload:     buf,
			OriginPeer:  nc.c.RemoteAddr().String(),
			ArrivalTime: n.clock.Now(),
		}
		n.metrics.BytesReceived.Add(float64(len(payload)))
		if !n.inputQ.Push(pkt) {
			n.metrics.PacketsDropped.Inc()
		}
	}
}

// dispatchLoop pulls load-adaptive batches from the input queue and hands
// them to the worker pool (spec §2 pipeline: input queue -> batch
// scheduler -> workers).
func (n *Node) dispatchLoop() {
	defer n.Done()
	for {
		select {
		case <-n.closeAllCh:
			return
		default:
		}
		batch, slept := n.batchSched.NextBatch(n.inputQ, n.loadEst.Smoothed())
		if slept > 0 {
			n.timingDef.Record(0, 0, slept)
		}
		n.loadEst.Feed(n.inputQ.DepthRatio())
		if len(batch) == 0 {
			n.clock.Sleep(5 * time.Millisecond)
			continue
		}
		n.workers.SubmitBatch(batch)
	}
}

// forward is the WorkerPool.ForwardFunc: draw a Poisson/VRF delay, then
// write the packet to its next hop once that delay elapses (spec §2
// pipeline: workers -> delay scheduler -> output).
func (n *Node) forward(pkt *pipeline.InflightPacket) {
	atomic.AddUint64(&n.packetsProcessed, 1)
	n.metrics.MessagesTotal.Inc()
	n.coverMixer.RecordReal(len(pkt.Payload))

	out := n.vrfKeys.Evaluate([]byte(pkt.OriginPeer + pkt.NextHopHint))
	intended := n.delaySched.SampleVRF(out, 1.0, n.loadEst.Smoothed())
	actual := n.timingDef.Randomize(intended)
	if n.timingDef.IsBurst() {
		actual += n.timingDef.BurstMask()
	}

	deadline := n.clock.Now().Add(actual)
	pkt.Deadline = deadline

	n.Add(1)
	go func() {
		defer n.Done()
		n.clock.Sleep(actual)
		n.timingDef.Record(len(pkt.Payload), intended, actual)
		latencyMS := float64(n.clock.Now().Sub(pkt.ArrivalTime).Milliseconds())
		n.metrics.MessageLatency.Observe(n.clock.Now().Sub(pkt.ArrivalTime).Seconds())
		atomic.AddUint64(&n.latencySumMS, uint64(latencyMS))
		atomic.AddUint64(&n.latencyCount, 1)

		if err := n.writeToNextHop(pkt); err != nil {
			n.log.Warningf("network error forwarding to %s: %v", pkt.NextHopHint, err)
			n.metrics.MixnodeFailures.Inc()
			n.reputation.UpdateReputation(pkt.NextHopHint, reputation.ActionDroppedConnection)
			n.pool.Release(pkt.Payload)
			return
		}
		n.reputation.RecordPacket(pkt.NextHopHint, true, latencyMS)
		n.pool.Release(pkt.Payload)
	}()
}

// drop is the WorkerPool.DropFunc: a packet that failed Sphinx peeling is
// logged and counted, never torn the connection down for it (spec §4.10).
func (n *Node) drop(pkt *pipeline.InflightPacket, err error) {
	n.log.Warningf("dropping packet from %s: %v", pkt.OriginPeer, err)
	n.metrics.PacketsDropped.Inc()
	n.pool.Release(pkt.Payload)
}

// dialPeer opens a new outbound connection to addr and runs the handshake
// of spec §4.2 as initiator, mirroring the acceptor side handleConn already
// runs: no data frame may cross the wire before both sides agree on a
// version (spec §5's strict-ordering guarantee applies symmetrically).
func (n *Node) dialPeer(addr string) (*peerConn, error) {
	conn, err := net.DialTimeout("tcp", addr, n.cfg.ConnTimeout)
	if err != nil {
		return nil, errkind.Wrap(errkind.ErrNetwork, "dial %s: %v", addr, err)
	}
	negotiator := wire.NewVersionNegotiator(n.advertisement, n.log)
	result, err := negotiator.Negotiate(conn, conn)
	if err != nil {
		conn.Close()
		return nil, errkind.Wrap(errkind.ErrNetwork, "handshake %s: %v", addr, err)
	}
	return &peerConn{conn: conn, version: result.NegotiatedVersion}, nil
}

// writeToNextHop connects to (or reuses a connection to) the packet's next
// hop, downshifts the frame to whatever version that hop negotiated, and
// writes it. Establishing and reusing next-hop sessions is the mixnode's
// own responsibility (spec §2): relay addresses come from Sphinx peeling,
// not the lottery, which selects candidates for a sender's path, not a
// relay's.
func (n *Node) writeToNextHop(pkt *pipeline.InflightPacket) error {
	if pkt.NextHopHint == "" {
		return errkind.Wrap(errkind.ErrRouting, "empty next-hop hint")
	}

	n.Lock()
	pc, ok := n.peerConns[pkt.NextHopHint]
	n.Unlock()
	if !ok {
		var err error
		pc, err = n.dialPeer(pkt.NextHopHint)
		if err != nil {
			return err
		}
		n.Lock()
		n.peerConns[pkt.NextHopHint] = pc
		n.Unlock()
	}

	nativeFormat := wire.FormatForVersion(n.advertisement.Version)
	framePayload := wire.EncodeFrame(nativeFormat, pkt.Payload, 0, [32]byte{}, [8]byte{})

	adapter, err := wire.BuildAdapter(n.advertisement.Version, pc.version)
	if err != nil {
		n.dropPeerConn(pkt.NextHopHint, pc)
		return errkind.Wrap(errkind.ErrNetwork, "adapt for %s: %v", pkt.NextHopHint, err)
	}
	outPayload, err := adapter.Convert(framePayload)
	if err != nil {
		n.dropPeerConn(pkt.NextHopHint, pc)
		return errkind.Wrap(errkind.ErrNetwork, "downshift for %s: %v", pkt.NextHopHint, err)
	}

	fw := wire.NewFramedWriter(pc.conn)
	if err := fw.WriteFrame(outPayload); err != nil {
		n.dropPeerConn(pkt.NextHopHint, pc)
		return errkind.Wrap(errkind.ErrNetwork, "write %s: %v", pkt.NextHopHint, err)
	}
	n.metrics.BytesTransmitted.Add(float64(len(outPayload)))
	return nil
}

// dropPeerConn evicts and closes a peerConn that just failed, so the next
// writeToNextHop call for that address dials (and re-negotiates) fresh.
func (n *Node) dropPeerConn(addr string, pc *peerConn) {
	n.Lock()
	if n.peerConns[addr] == pc {
		delete(n.peerConns, addr)
	}
	n.Unlock()
	pc.conn.Close()
}

// coverLoop periodically checks whether a dummy packet should be emitted
// and, if so, sends it to a relay drawn from the lottery by weight
// (spec §4.5).
func (n *Node) coverLoop() {
	defer n.Done()
	rnd := rand.New(rand.NewSource(n.clock.Now().UnixNano()))
	for {
		select {
		case <-n.closeAllCh:
			return
		case <-n.clock.After(n.coverMixer.NextInterval()):
		}
		if !n.cfg.CoverEnabled {
			continue
		}
		size, emit := n.coverMixer.Emit()
		if !emit {
			continue
		}
		relay, err := n.lottery.SelectRelay(rnd)
		if err != nil {
			continue
		}
		pkt := &pipeline.InflightPacket{
			Payload:     make([]byte, size),
			NextHopHint: relay.Addr,
			ArrivalTime: n.clock.Now(),
		}
		if err := n.writeToNextHop(pkt); err != nil {
			n.log.Debugf("cover packet to %s failed: %v", relay.Addr, err)
		}
	}
}

// The following methods satisfy httpapi.StatsProvider.

func (n *Node) ActiveNodes() int { return n.reputation.NodeCount() }

func (n *Node) Connections() int { return int(atomic.LoadInt32(&n.connections)) }

func (n *Node) AvgLatencyMS() float64 {
	count := atomic.LoadUint64(&n.latencyCount)
	if count == 0 {
		return 0
	}
	return float64(atomic.LoadUint64(&n.latencySumMS)) / float64(count)
}

func (n *Node) PacketsProcessed() uint64 { return atomic.LoadUint64(&n.packetsProcessed) }

func (n *Node) MixnodeInfos() []httpapi.MixnodeInfo {
	snap := n.reputation.Snapshot()
	infos := make([]httpapi.MixnodeInfo, 0, len(snap))
	for addr, rep := range snap {
		relay, _ := n.lottery.Get(addr)
		conns := 0
		n.Lock()
		if _, ok := n.peerConns[addr]; ok {
			conns = 1
		}
		n.Unlock()
		stake := uint64(0)
		if relay != nil {
			stake = relay.Stake
		}
		infos = append(infos, httpapi.MixnodeInfo{
			NodeID:      addr,
			Addr:        addr,
			Reputation:  float64(rep.Points) / 200.0,
			Stake:       stake,
			Connections: conns,
		})
	}
	return infos
}
