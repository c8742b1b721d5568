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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAdapterDownshiftF11ToF10 reproduces S3 exactly: F1.1 frame payload
// [0,5][1,2,3,4,5,6,7,8] (batch_info=5, 8-byte payload) downshifts to the
// bare F1.0 payload [1,2,3,4,5,6,7,8] (P11).
func TestAdapterDownshiftF11ToF10(t *testing.T) {
	in := []byte{0, 5, 1, 2, 3, 4, 5, 6, 7, 8}

	adapter, err := NewAdapter(FormatF11, FormatF10)
	require.NoError(t, err)

	out, err := adapter.Convert(in)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, out)
}

func TestAdapterDownshiftF12ToF11AndF10(t *testing.T) {
	payload := []byte{9, 9, 9}
	framePayload := EncodeFrame(FormatF12, payload, 42, [32]byte{1}, [8]byte{2})

	toF11, err := NewAdapter(FormatF12, FormatF11)
	require.NoError(t, err)
	f11, err := toF11.Convert(framePayload)
	require.NoError(t, err)
	gotPayload, batchInfo, _, _, err := DecodeFrame(FormatF11, f11)
	require.NoError(t, err)
	require.Equal(t, payload, gotPayload)
	require.Equal(t, uint16(42), batchInfo)

	toF10, err := NewAdapter(FormatF12, FormatF10)
	require.NoError(t, err)
	f10, err := toF10.Convert(framePayload)
	require.NoError(t, err)
	require.Equal(t, payload, f10)
}

func TestAdapterRejectsUpshift(t *testing.T) {
	_, err := NewAdapter(FormatF10, FormatF11)
	require.Error(t, err)
}

func TestAdapterSameFormatIsIdentity(t *testing.T) {
	adapter, err := NewAdapter(FormatF11, FormatF11)
	require.NoError(t, err)
	in := []byte{0, 1, 2, 3}
	out, err := adapter.Convert(in)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestEncodeDecodeFrameRoundTrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5}
	for _, format := range []PacketFormat{FormatF10, FormatF11, FormatF12} {
		framePayload := EncodeFrame(format, payload, 7, [32]byte{0xAA}, [8]byte{0xBB})
		gotPayload, batchInfo, vrfProof, relayTag, err := DecodeFrame(format, framePayload)
		require.NoError(t, err)
		require.Equal(t, payload, gotPayload)
		if format == FormatF10 {
			continue
		}
		require.Equal(t, uint16(7), batchInfo)
		if format == FormatF12 {
			require.Equal(t, byte(0xAA), vrfProof[0])
			require.Equal(t, byte(0xBB), relayTag[0])
		}
	}
}

func TestBuildAdapterRejectsAcrossMajors(t *testing.T) {
	_, err := BuildAdapter(ProtocolVersion{Major: 2, Minor: 0}, V1_1)
	require.Error(t, err)
}

func TestBuildAdapterMatchesNewAdapter(t *testing.T) {
	adapter, err := BuildAdapter(V1_2, V1_1)
	require.NoError(t, err)
	require.Equal(t, FormatF12, adapter.Source)
	require.Equal(t, FormatF11, adapter.Target)
}
