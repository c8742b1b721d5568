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

// Package metrics implements the Prometheus scrape surface named in
// spec §6. It is explicitly a boundary, not core data-plane logic (spec
// §1), but the metric names below are part of the external contract and
// are reproduced verbatim. Grounded on github.com/prometheus/client_golang,
// the metrics dependency the retrieval pack's luxfi-consensus repo
// carries (SPEC_FULL.md §B) and the teacher repo does not — there is no
// teacher precedent for a metrics surface since the teacher is a client,
// not a relay with a scrape endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBuckets spans the 0.001s..5.0s range spec §6 names for
// betanet_message_latency_seconds.
func latencyBuckets() []float64 {
	return []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5.0}
}

// Registry owns every collector the mixnode's /metrics endpoint exposes.
type Registry struct {
	reg *prometheus.Registry

	ConnectedPeers    prometheus.Gauge
	MessagesTotal     prometheus.Counter
	BytesTransmitted  prometheus.Counter
	BytesReceived     prometheus.Counter
	PacketsDropped    prometheus.Counter
	MixnodeFailures   prometheus.Counter
	MixnodeActive     prometheus.Gauge
	RoutingFailures   prometheus.Counter
	MessageLatency    prometheus.Histogram
	RoutingLatency    prometheus.Histogram
	CircuitBuildTime  prometheus.Histogram
	VRFVerifications  prometheus.Counter
	VRFFailures       prometheus.Counter
}

// New registers every betanet_* collector named in spec §6 against a
// fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "betanet_connected_peers", Help: "Number of currently connected peer mixnodes.",
		}),
		MessagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_messages_total", Help: "Total packets processed by the data plane.",
		}),
		BytesTransmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_bytes_transmitted_total", Help: "Total bytes written to peer connections.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_bytes_received_total", Help: "Total bytes read from peer connections.",
		}),
		PacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_packets_dropped_total", Help: "Total packets dropped at any pipeline stage.",
		}),
		MixnodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_mixnode_failures_total", Help: "Total observed next-hop mixnode failures.",
		}),
		MixnodeActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "betanet_mixnode_active", Help: "1 if this mixnode is currently accepting connections.",
		}),
		RoutingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_routing_failures_total", Help: "Total relay-lottery selection failures.",
		}),
		MessageLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "betanet_message_latency_seconds", Help: "End-to-end per-packet processing latency.",
			Buckets: latencyBuckets(),
		}),
		RoutingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "betanet_routing_latency_seconds", Help: "Time spent selecting a next hop via the relay lottery.",
			Buckets: latencyBuckets(),
		}),
		CircuitBuildTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "betanet_circuit_build_seconds", Help: "Time spent establishing a multi-hop circuit.",
			Buckets: latencyBuckets(),
		}),
		VRFVerifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_vrf_verifications_total", Help: "Total VRF proof verifications attempted.",
		}),
		VRFFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "betanet_vrf_failures_total", Help: "Total VRF proof verifications that failed.",
		}),
	}

	reg.MustRegister(
		r.ConnectedPeers, r.MessagesTotal, r.BytesTransmitted, r.BytesReceived,
		r.PacketsDropped, r.MixnodeFailures, r.MixnodeActive, r.RoutingFailures,
		r.MessageLatency, r.RoutingLatency, r.CircuitBuildTime,
		r.VRFVerifications, r.VRFFailures,
	)
	return r
}

// Handler returns the http.Handler for GET /metrics (spec §6): Prometheus
// text-exposition format over this registry's collectors.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
