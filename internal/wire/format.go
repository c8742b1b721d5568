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
	"encoding/binary"
	"fmt"

	"github.com/betanet/mixnode/internal/errkind"
)

// PacketFormat names a wire-level packet layout selected by the
// negotiated protocol minor version (spec §3).
type PacketFormat int

const (
	// FormatF10 is [u32 BE length][payload].
	FormatF10 PacketFormat = iota
	// FormatF11 is [u32 BE length][u16 BE batch_info][payload].
	FormatF11
	// FormatF12 is [u32 BE length][u16 BE batch_info][payload][32B VRF proof][8B relay-lottery tag].
	FormatF12
)

// vrfProofLen + relayTagLen is the trailer F1.2 carries beyond F1.1.
const (
	vrfProofLen  = 32
	relayTagLen  = 8
	f12TrailerLen = vrfProofLen + relayTagLen
	batchInfoLen = 2
)

func (f PacketFormat) String() string {
	switch f {
	case FormatF10:
		return "F1.0"
	case FormatF11:
		return "F1.1"
	case FormatF12:
		return "F1.2"
	default:
		return "F?.?"
	}
}

// FormatForVersion returns the packet format negotiated at protocol
// version v: 1.0 -> F1.0, 1.1 -> F1.1, >=1.2 -> F1.2.
func FormatForVersion(v ProtocolVersion) PacketFormat {
	switch {
	case v.Minor >= 2:
		return FormatF12
	case v.Minor == 1:
		return FormatF11
	default:
		return FormatF10
	}
}

// Adapter converts a packet's payload (as returned by FramedReader.ReadFrame,
// i.e. without the outer length prefix it was framed with) from Source to
// Target format, per spec §4.9. Adapters are only constructible for a
// same-or-downshifting pair within the same major.
type Adapter struct {
	Source, Target PacketFormat
}

// NewAdapter builds an Adapter iff source >= target (no upshifting, per
// spec §3 I6 and §4.9).
func NewAdapter(source, target PacketFormat) (*Adapter, error) {
	if target > source {
		return nil, fmt.Errorf("wire: cannot upshift %s -> %s", source, target)
	}
	return &Adapter{Source: source, Target: target}, nil
}

// Convert downshifts framePayload (the bytes immediately following the
// outer [u32 BE length] prefix) from a.Source to a.Target.
//
// framePayload already excludes the frame's own length prefix; for F1.1 and
// F1.2 that means it still contains the 2-byte batch_info field (and, for
// F1.2, the 40-byte trailer) that this function strips on downshift.
func (a *Adapter) Convert(framePayload []byte) ([]byte, error) {
	if a.Source == a.Target {
		return framePayload, nil
	}
	switch {
	case a.Source == FormatF12 && a.Target == FormatF11:
		return stripF12ToF11(framePayload)
	case a.Source == FormatF11 && a.Target == FormatF10:
		return stripF11ToF10(framePayload)
	case a.Source == FormatF12 && a.Target == FormatF10:
		mid, err := stripF12ToF11(framePayload)
		if err != nil {
			return nil, err
		}
		return stripF11ToF10(mid)
	default:
		return nil, fmt.Errorf("wire: cannot upshift %s -> %s", a.Source, a.Target)
	}
}

// stripF12ToF11 drops the trailing 40 bytes (32B VRF proof + 8B relay tag).
func stripF12ToF11(framePayload []byte) ([]byte, error) {
	if len(framePayload) < f12TrailerLen {
		return nil, fmt.Errorf("wire: packet error: F1.2 payload too short to hold trailer: %d bytes", len(framePayload))
	}
	return framePayload[:len(framePayload)-f12TrailerLen], nil
}

// stripF11ToF10 drops the 2 batch_info bytes. The F1.1 framePayload is
// [u16 BE batch_info][payload]; the output is the bare payload bytes. The
// caller (FramedWriter) is responsible for rewriting the outer [u32 BE
// length] prefix to len(payload), satisfying P11.
//
// Per spec §9 Open Questions, payload.len() < 2 — i.e. a framePayload
// shorter than the batch_info field itself — is a packet error, not a
// defined conversion.
func stripF11ToF10(framePayload []byte) ([]byte, error) {
	if len(framePayload) < batchInfoLen {
		return nil, errkind.Wrap(errkind.ErrPacket, "wire: packet error: F1.1 payload shorter than batch_info field: %d bytes", len(framePayload))
	}
	return framePayload[batchInfoLen:], nil
}

// EncodeFrame builds the full frame payload (everything after the outer
// [u32 BE length] prefix) for format, given the inner application payload
// and, for F1.1/F1.2, the batch_info value and (for F1.2) trailer bytes.
func EncodeFrame(format PacketFormat, payload []byte, batchInfo uint16, vrfProof [vrfProofLen]byte, relayTag [relayTagLen]byte) []byte {
	switch format {
	case FormatF10:
		out := make([]byte, len(payload))
		copy(out, payload)
		return out
	case FormatF11:
		out := make([]byte, batchInfoLen+len(payload))
		binary.BigEndian.PutUint16(out[:batchInfoLen], batchInfo)
		copy(out[batchInfoLen:], payload)
		return out
	case FormatF12:
		out := make([]byte, batchInfoLen+len(payload)+f12TrailerLen)
		binary.BigEndian.PutUint16(out[:batchInfoLen], batchInfo)
		n := copy(out[batchInfoLen:], payload)
		off := batchInfoLen + n
		copy(out[off:off+vrfProofLen], vrfProof[:])
		copy(out[off+vrfProofLen:], relayTag[:])
		return out
	default:
		return nil
	}
}

// DecodeFrame splits a frame payload of the given format back into its
// application payload, batch_info (if any) and trailer (if any).
func DecodeFrame(format PacketFormat, framePayload []byte) (payload []byte, batchInfo uint16, vrfProof [vrfProofLen]byte, relayTag [relayTagLen]byte, err error) {
	switch format {
	case FormatF10:
		payload = framePayload
		return
	case FormatF11:
		if len(framePayload) < batchInfoLen {
			err = fmt.Errorf("wire: packet error: F1.1 frame too short: %d bytes", len(framePayload))
			return
		}
		batchInfo = binary.BigEndian.Uint16(framePayload[:batchInfoLen])
		payload = framePayload[batchInfoLen:]
		return
	case FormatF12:
		if len(framePayload) < batchInfoLen+f12TrailerLen {
			err = fmt.Errorf("wire: packet error: F1.2 frame too short: %d bytes", len(framePayload))
			return
		}
		batchInfo = binary.BigEndian.Uint16(framePayload[:batchInfoLen])
		payload = framePayload[batchInfoLen : len(framePayload)-f12TrailerLen]
		copy(vrfProof[:], framePayload[len(framePayload)-f12TrailerLen:len(framePayload)-relayTagLen])
		copy(relayTag[:], framePayload[len(framePayload)-relayTagLen:])
		return
	default:
		err = fmt.Errorf("wire: unknown packet format %d", format)
		return
	}
}
