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

// Package sphinx defines the Peeler contract spec §6 treats as an
// external collaborator ("referenced as a dependency with a defined
// contract rather than re-specified") plus one concrete implementation
// of it. The layered-box construction below is grounded on the teacher's
// crypto/block/block.go end-to-end encrypted block format — a per-hop
// box built from golang.org/x/crypto/nacl/box with an ephemeral sender
// key per layer — generalized from a single e2e block to an onion of N
// layers, one per mixnode hop.
//
// The core packet-processing pipeline never constructs or composes
// layers itself; it only calls Peel once per packet, exactly as spec §6
// specifies ("at-most-one-peel-per-hop ... does not attempt multi-peel").
package sphinx

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the curve25519 key size nacl/box uses for both public and
// private keys.
const KeySize = 32

// Peeled is what Peel yields on success: the hint for the packet's next
// hop and the still-onion-encrypted bytes to forward there.
type Peeled struct {
	NextHopHint string
	Inner       []byte
}

// Peeler removes one onion layer from a Sphinx packet. Implementations
// are assumed constant-time and side-channel-safe (spec §6); the data
// plane calls Peel at most once per packet per hop.
type Peeler interface {
	Peel(packet []byte) (Peeled, error)
}

// maxHintLen bounds the next-hop hint length embedded in a peeled layer,
// generous enough for any "host:port" address.
const maxHintLen = 255

// BoxPeeler peels layers built by EncryptLayer/EncryptLayers: each layer is
// [32B ephemeral pubkey][24B nonce][box-sealed(hintLen byte || hint || inner)].
// A BoxPeeler holds one node's static keypair and can open exactly the
// layers addressed to it.
type BoxPeeler struct {
	public  *[KeySize]byte
	private *[KeySize]byte
}

// GenerateKeyPair creates a fresh curve25519 keypair for one mixnode hop.
func GenerateKeyPair() (public, private *[KeySize]byte, err error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("sphinx: generate keypair: %w", err)
	}
	return pub, priv, nil
}

// NewBoxPeeler builds a Peeler bound to one hop's static keypair.
func NewBoxPeeler(public, private *[KeySize]byte) *BoxPeeler {
	return &BoxPeeler{public: public, private: private}
}

// Peel opens the outermost layer of packet using the hop's private key,
// returning the next-hop hint and the remaining onion-encrypted bytes.
// A malformed packet or an authentication failure (wrong key, corrupted
// layer, or a packet not addressed to this hop) is a crypto error
// (spec §7): the caller drops the packet rather than tearing down the
// connection.
func (p *BoxPeeler) Peel(packet []byte) (Peeled, error) {
	const headerLen = KeySize + 24
	if len(packet) < headerLen+box.Overhead+1 {
		return Peeled{}, fmt.Errorf("sphinx: packet too short to hold a layer: %d bytes", len(packet))
	}
	var ephemeralPub [KeySize]byte
	copy(ephemeralPub[:], packet[:KeySize])
	var nonce [24]byte
	copy(nonce[:], packet[KeySize:headerLen])
	sealed := packet[headerLen:]

	plain, ok := box.Open(nil, sealed, &nonce, &ephemeralPub, p.private)
	if !ok {
		return Peeled{}, fmt.Errorf("sphinx: layer failed to open: authentication failure")
	}
	if len(plain) < 1 {
		return Peeled{}, fmt.Errorf("sphinx: empty peeled layer")
	}
	hintLen := int(plain[0])
	if len(plain) < 1+hintLen {
		return Peeled{}, fmt.Errorf("sphinx: peeled layer shorter than declared hint: %d < %d", len(plain)-1, hintLen)
	}
	hint := string(plain[1 : 1+hintLen])
	inner := plain[1+hintLen:]
	return Peeled{NextHopHint: hint, Inner: append([]byte(nil), inner...)}, nil
}

// EncryptLayer wraps inner in one onion layer addressed to recipientPub,
// embedding nextHopHint so the recipient's Peel call learns where to
// forward the result. Used by test harnesses and the three-node-circuit
// scenario (spec §8 S1) to construct packets without a full sender
// implementation, which is out of scope for the mixnode data plane.
func EncryptLayer(recipientPub *[KeySize]byte, nextHopHint string, inner []byte) ([]byte, error) {
	if len(nextHopHint) > maxHintLen {
		return nil, fmt.Errorf("sphinx: hint too long: %d bytes", len(nextHopHint))
	}
	plain := make([]byte, 1+len(nextHopHint)+len(inner))
	plain[0] = byte(len(nextHopHint))
	copy(plain[1:], nextHopHint)
	copy(plain[1+len(nextHopHint):], inner)

	ephemeralPub, ephemeralPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("sphinx: generate ephemeral key: %w", err)
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("sphinx: generate nonce: %w", err)
	}
	sealed := box.Seal(nil, plain, &nonce, recipientPub, ephemeralPriv)

	out := make([]byte, KeySize+24+len(sealed))
	copy(out, ephemeralPub[:])
	copy(out[KeySize:], nonce[:])
	copy(out[KeySize+24:], sealed)
	return out, nil
}

// EncryptLayers builds a full onion addressed through hops in order,
// innermost payload first: hops[len(hops)-1] is peeled last. Each hop's
// hint is the address of the *next* hop in the path; the final hop's
// hint is empty (nothing further to forward to).
func EncryptLayers(hops []Hop, payload []byte) ([]byte, error) {
	wire := payload
	for i := len(hops) - 1; i >= 0; i-- {
		hint := ""
		if i < len(hops)-1 {
			hint = hops[i+1].Addr
		}
		var err error
		wire, err = EncryptLayer(hops[i].PublicKey, hint, wire)
		if err != nil {
			return nil, fmt.Errorf("sphinx: encrypt layer %d: %w", i, err)
		}
	}
	return wire, nil
}

// Hop names one onion layer's recipient: its address (used as the
// preceding hop's next-hop hint) and its public key (used to seal the
// layer addressed to it).
type Hop struct {
	Addr      string
	PublicKey *[KeySize]byte
}

// RelayTag derives the 8-byte relay-lottery tag F1.2 carries in its
// trailer (spec §3) from a peeled layer's next-hop hint, so downstream
// observability can correlate a forwarded packet with the lottery draw
// that selected its next hop without re-deriving the whole header.
func RelayTag(nextHopHint string) [8]byte {
	var tag [8]byte
	h := uint64(1469598103934665603) // FNV offset basis
	for i := 0; i < len(nextHopHint); i++ {
		h ^= uint64(nextHopHint[i])
		h *= 1099511628211 // FNV prime
	}
	binary.BigEndian.PutUint64(tag[:], h)
	return tag
}
