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

package httpapi

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/betanet/mixnode/internal/metrics"
)

type fakeStats struct{}

func (fakeStats) ActiveNodes() int         { return 2 }
func (fakeStats) Connections() int         { return 5 }
func (fakeStats) AvgLatencyMS() float64    { return 12.5 }
func (fakeStats) PacketsProcessed() uint64 { return 42 }
func (fakeStats) MixnodeInfos() []MixnodeInfo {
	return []MixnodeInfo{{NodeID: "a", Addr: "127.0.0.1:9000", Reputation: 0.8, Stake: 100, Connections: 1}}
}

func TestStatusEndpoint(t *testing.T) {
	s := New("node-1", fakeStats{}, metrics.New())
	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	var resp statusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "running", resp.Status)
	require.Equal(t, 2, resp.ActiveNodes)
	require.Equal(t, uint64(42), resp.PacketsProcessed)
}

func TestMixnodesEndpoint(t *testing.T) {
	s := New("node-1", fakeStats{}, metrics.New())
	req := httptest.NewRequest("GET", "/mixnodes", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var infos []MixnodeInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	require.Equal(t, "a", infos[0].NodeID)
}

func TestDeployEndpoint(t *testing.T) {
	s := New("node-1", fakeStats{}, metrics.New())
	req := httptest.NewRequest("POST", "/deploy", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp deployResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, "node-1", resp.NodeID)
}

func TestHealthEndpoint(t *testing.T) {
	s := New("node-1", fakeStats{}, metrics.New())
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.Contains(t, w.Body.String(), "healthy")
}
