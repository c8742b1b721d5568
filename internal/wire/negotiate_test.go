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

package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

// tcpPair returns both ends of a loopback TCP connection. Negotiate writes
// its advertisement before reading the peer's, so the two ends need a
// transport that buffers writes; net.Pipe does not, and two negotiators
// on it would block in their first write.
func tcpPair(t *testing.T) (net.Conn, net.Conn) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	a, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	b, err := ln.Accept()
	require.NoError(t, err)
	return a, b
}

// TestNegotiateAsymmetricMinorVersions reproduces S2: peer A at v1.2.0
// negotiating with peer B at v1.1.0 settles on 1.1.0 (encoded 0x11) with
// only batch_processing in the intersected feature set.
func TestNegotiateAsymmetricMinorVersions(t *testing.T) {
	aConn, bConn := tcpPair(t)
	defer aConn.Close()
	defer bConn.Close()

	a := NewVersionNegotiator(Advertisement{Version: V1_2, Features: V1_2.Features(), NodeID: "a"}, nil)
	b := NewVersionNegotiator(Advertisement{Version: V1_1, Features: V1_1.Features(), NodeID: "b"}, nil)

	var aResult, bResult *Result
	var aErr, bErr error
	done := make(chan struct{})
	go func() {
		bResult, bErr = b.Negotiate(bConn, bConn)
		close(done)
	}()
	aResult, aErr = a.Negotiate(aConn, aConn)
	<-done

	require.NoError(t, aErr)
	require.NoError(t, bErr)
	require.Equal(t, V1_1, aResult.NegotiatedVersion)
	require.Equal(t, byte(0x11), Encode(aResult.NegotiatedVersion))
	require.Equal(t, V1_1, bResult.NegotiatedVersion)
	require.Equal(t, FeatureFlags(FeatureBatchProcessing), aResult.Features)
	require.Equal(t, FormatF11, FormatForVersion(aResult.NegotiatedVersion))
}

func TestNegotiateRejectsIncompatibleMajors(t *testing.T) {
	aConn, bConn := tcpPair(t)
	defer aConn.Close()
	defer bConn.Close()

	a := NewVersionNegotiator(Advertisement{Version: ProtocolVersion{Major: 2, Minor: 0}, NodeID: "a"}, nil)
	b := NewVersionNegotiator(Advertisement{Version: V1_2, NodeID: "b"}, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := b.Negotiate(bConn, bConn)
		errCh <- err
	}()

	_, aErr := a.Negotiate(aConn, aConn)
	require.Error(t, aErr)
	require.Error(t, <-errCh)
}
