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
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// MaxAdvertisementBytes bounds the handshake payload to prevent
// resource-exhaustion via oversized advertisements (spec §4.2).
const MaxAdvertisementBytes = 4096

// LayerCapability names one internal layer's own version, exchanged
// alongside the top-level ProtocolVersion so peers can detect a skewed
// partial upgrade (e.g. Sphinx codec bumped independently of the wire
// protocol).
type LayerCapability struct {
	LayerID string
	Version ProtocolVersion
}

// Advertisement is exchanged by both sides at connection setup (spec §4.2,
// §3). The concrete wire encoding is CBOR via github.com/ugorji/go/codec,
// the same self-describing-serialization family the teacher uses for its
// encrypted local store (internal/store/store.go).
type Advertisement struct {
	Version      ProtocolVersion
	Features     FeatureFlags
	Capabilities []LayerCapability
	NodeID       string
}

var cborHandle = &codec.CborHandle{}

// Marshal serializes an Advertisement to CBOR bytes.
func (a *Advertisement) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf, cborHandle)
	if err := enc.Encode(a); err != nil {
		return nil, fmt.Errorf("wire: encode advertisement: %w", err)
	}
	if buf.Len() > MaxAdvertisementBytes {
		return nil, fmt.Errorf("wire: advertisement too large: %d bytes", buf.Len())
	}
	return buf.Bytes(), nil
}

// UnmarshalAdvertisement decodes CBOR bytes into an Advertisement, rejecting
// anything over MaxAdvertisementBytes before touching the decoder.
func UnmarshalAdvertisement(data []byte) (*Advertisement, error) {
	if len(data) > MaxAdvertisementBytes {
		return nil, fmt.Errorf("wire: advertisement too large: %d bytes", len(data))
	}
	a := &Advertisement{}
	dec := codec.NewDecoder(bytes.NewReader(data), cborHandle)
	if err := dec.Decode(a); err != nil {
		return nil, fmt.Errorf("wire: decode advertisement: %w", err)
	}
	return a, nil
}
