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

// Package vrf implements the process-scoped Verifiable Random Function
// used to seed Poisson delays (spec §4.4) and relay-lottery draws
// (spec §4.7). It is built the way the teacher builds its own keyed
// primitives in crypto/block/block.go and crypto/vault/vault.go — an
// ed25519 keypair from the standard library plus a deterministic output
// derivation — rather than a full elliptic-curve VRF construction, which
// none of the retrieval pack carries a library for.
//
// The "proof" is the ed25519 signature over the seed message; the output
// is derived from it so it is unpredictable without the private key yet
// checkable against the public key, satisfying the VRF contract spec §4.4
// and §4.7 rely on (proof verifiable, output pseudorandom). Per spec §9,
// the keypair is ephemeral and process-scoped for the delay use case;
// lottery proofs are signed with the same process keypair since key
// distribution/persistence is explicitly out of scope (spec §1 Non-goals).
package vrf

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// OutputSize is the number of pseudorandom bytes VRF.Evaluate returns.
const OutputSize = sha256.Size

// KeyPair is a process-scoped VRF signing key.
type KeyPair struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// Generate creates a new ephemeral keypair.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("vrf: generate keypair: %w", err)
	}
	return &KeyPair{public: pub, private: priv}, nil
}

// PublicKey returns the keypair's public key, safe to share for proof
// verification.
func (k *KeyPair) PublicKey() ed25519.PublicKey {
	return k.public
}

// Output is one VRF evaluation: the pseudorandom output bytes and the
// proof (signature) a holder of the public key can check.
type Output struct {
	Bytes [OutputSize]byte
	Proof []byte
}

// Evaluate signs message and derives OutputSize pseudorandom bytes from
// the signature. The proof is the raw signature; Verify checks it against
// message and the public key.
func (k *KeyPair) Evaluate(message []byte) Output {
	sig := ed25519.Sign(k.private, message)
	return Output{
		Bytes: sha256.Sum256(sig),
		Proof: sig,
	}
}

// Verify checks that output.Proof is a valid signature over message under
// pub, and that output.Bytes was derived from it. A VRF verification
// failure causes the caller to reject the proof and fall back to
// non-VRF sampling (spec §4.10).
func Verify(pub ed25519.PublicKey, message []byte, output Output) bool {
	if !ed25519.Verify(pub, message, output.Proof) {
		return false
	}
	return sha256.Sum256(output.Proof) == output.Bytes
}

// Uniform maps the first 8 bytes of out to a float64 in [0, 1), the
// uniform sample the Poisson delay scheduler consumes in place of its
// local PRNG (spec §4.4 VRF-seeded variant).
func Uniform(out Output) float64 {
	var v uint64
	for _, b := range out.Bytes[:8] {
		v = v<<8 | uint64(b)
	}
	// 53 bits of mantissa is plenty of precision for a [0,1) uniform and
	// keeps the conversion exact in float64.
	return float64(v>>11) / float64(1<<53)
}

// Uint64 extracts a big-endian u64 from the first 8 bytes of out.
func Uint64(out Output) uint64 {
	var v uint64
	for _, b := range out.Bytes[:8] {
		v = v<<8 | uint64(b)
	}
	return v
}
