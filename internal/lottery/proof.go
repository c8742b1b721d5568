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

package lottery

import (
	"crypto/ed25519"
	"fmt"

	"github.com/betanet/mixnode/internal/vrf"
)

// LotteryProof binds one SelectWithProof draw to the VRF seed and output
// that produced it, so a peer holding the publisher's public key can
// confirm the selection was not hand-picked (spec §4.7).
type LotteryProof struct {
	Seed          []byte
	SelectedAddrs []string
	WeightsAtDraw []float64
	VRFOutput     vrf.Output
	VRFPublicKey  ed25519.PublicKey
}

// Verify checks that p.VRFOutput is a genuine VRF evaluation of p.Seed
// under p.VRFPublicKey. It does not re-derive the selection itself: a
// verifier who also holds the current relay table and weights can re-run
// the same deterministic derivation SelectWithProof used and compare.
func (p *LotteryProof) Verify() error {
	if !vrf.Verify(p.VRFPublicKey, p.Seed, p.VRFOutput) {
		return fmt.Errorf("lottery: proof failed VRF verification")
	}
	if len(p.SelectedAddrs) != len(p.WeightsAtDraw) {
		return fmt.Errorf("lottery: proof malformed: %d addrs but %d weights", len(p.SelectedAddrs), len(p.WeightsAtDraw))
	}
	return nil
}
