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

// Package httpapi implements the thin JSON-over-HTTP admin/monitoring
// surface of spec §6 (/status, /mixnodes, /deploy, /health) plus mounting
// the Prometheus /metrics handler. Spec §1 explicitly scopes this surface
// out of the core data-plane design ("treated as external collaborators
// with only their interfaces specified") — accordingly it is built on
// net/http's ServeMux rather than any domain dependency: there is no
// HTTP-routing library anywhere in the retrieval pack to ground a richer
// choice on (DESIGN.md), and the surface named in spec §6 is five routes.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/betanet/mixnode/internal/metrics"
)

// StatsProvider supplies the live counters /status and /mixnodes report.
// node.Node implements it; httpapi never imports node.go to avoid an
// import cycle (node.go wires httpapi, not the reverse).
type StatsProvider interface {
	ActiveNodes() int
	Connections() int
	AvgLatencyMS() float64
	PacketsProcessed() uint64
	MixnodeInfos() []MixnodeInfo
}

// MixnodeInfo is one entry of the GET /mixnodes response (spec §6).
type MixnodeInfo struct {
	NodeID      string  `json:"node_id"`
	Addr        string  `json:"addr"`
	Reputation  float64 `json:"reputation"`
	Stake       uint64  `json:"stake"`
	Connections int     `json:"connections"`
}

// Server is the mixnode's admin/monitoring HTTP surface.
type Server struct {
	mux       *http.ServeMux
	stats     StatsProvider
	metrics   *metrics.Registry
	nodeID    string
	startedAt time.Time
}

// New builds a Server wired to stats and reg, identifying itself as
// nodeID in /deploy responses.
func New(nodeID string, stats StatsProvider, reg *metrics.Registry) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		stats:     stats,
		metrics:   reg,
		nodeID:    nodeID,
		startedAt: time.Now(),
	}
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.HandleFunc("/mixnodes", s.handleMixnodes)
	s.mux.HandleFunc("/deploy", s.handleDeploy)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.Handle("/metrics", reg.Handler())
	return s
}

// Handler returns the Server's http.Handler, suitable for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

type statusResponse struct {
	Status           string  `json:"status"`
	ActiveNodes      int     `json:"active_nodes"`
	Connections      int     `json:"connections"`
	AvgLatencyMS     float64 `json:"avg_latency_ms"`
	PacketsProcessed uint64  `json:"packets_processed"`
	Timestamp        int64   `json:"timestamp"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Status:           "running",
		ActiveNodes:      s.stats.ActiveNodes(),
		Connections:      s.stats.Connections(),
		AvgLatencyMS:     s.stats.AvgLatencyMS(),
		PacketsProcessed: s.stats.PacketsProcessed(),
		Timestamp:        time.Now().Unix(),
	})
}

func (s *Server) handleMixnodes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.stats.MixnodeInfos())
}

type deployResponse struct {
	Success bool   `json:"success"`
	NodeID  string `json:"node_id"`
	Status  string `json:"status"`
}

// handleDeploy acknowledges a deployment request. Bootstrap/discovery and
// fleet orchestration are explicit Non-goals (spec §1); this endpoint
// only reports this node's own identity and running status.
func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, deployResponse{Success: true, NodeID: s.nodeID, Status: "running"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}
