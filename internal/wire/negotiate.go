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
	"fmt"
	"io"

	"github.com/op/go-logging"
)

// NegotiationState names a state in the handshake state machine of
// spec §4.2.
type NegotiationState int

const (
	StateStart NegotiationState = iota
	StateSendAd
	StateRecvAd
	StateCheckCompat
	StateSendNegotiated
	StateRecvConfirm
	StateReady
	StateAbort
)

func (s NegotiationState) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateSendAd:
		return "SEND_AD"
	case StateRecvAd:
		return "RECV_AD"
	case StateCheckCompat:
		return "CHECK_COMPAT"
	case StateSendNegotiated:
		return "SEND_NEGOTIATED"
	case StateRecvConfirm:
		return "RECV_CONFIRM"
	case StateReady:
		return "READY"
	case StateAbort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a successful negotiation.
type Result struct {
	NegotiatedVersion ProtocolVersion
	Features          FeatureFlags
	PeerAdvertisement *Advertisement
}

// VersionNegotiator drives the per-connection handshake state machine of
// spec §4.2 over an already-connected stream. It must run to completion
// before any data packet is accepted from the peer (the strict-ordering
// guarantee of spec §5).
type VersionNegotiator struct {
	self  Advertisement
	log   *logging.Logger
	state NegotiationState
}

// NewVersionNegotiator creates a negotiator that will advertise self.
func NewVersionNegotiator(self Advertisement, log *logging.Logger) *VersionNegotiator {
	return &VersionNegotiator{self: self, log: log, state: StateStart}
}

// State returns the negotiator's current state, mostly for tests and logs.
func (n *VersionNegotiator) State() NegotiationState {
	return n.state
}

// Negotiate runs the full handshake: send our advertisement, receive the
// peer's, check major-version compatibility, exchange the negotiated byte,
// and confirm both sides computed the same value.
func (n *VersionNegotiator) Negotiate(r io.Reader, w io.Writer) (*Result, error) {
	fr := NewFramedReader(r)
	fw := NewFramedWriter(w)

	n.state = StateSendAd
	selfBytes, err := n.self.Marshal()
	if err != nil {
		n.state = StateAbort
		return nil, fmt.Errorf("wire: marshal self advertisement: %w", err)
	}
	if err := fw.WriteFrame(selfBytes); err != nil {
		n.state = StateAbort
		return nil, fmt.Errorf("wire: send advertisement: %w", err)
	}

	n.state = StateRecvAd
	peerBytes, err := fr.ReadFrame()
	if err != nil {
		n.state = StateAbort
		return nil, fmt.Errorf("wire: recv advertisement: %w", err)
	}
	peerAd, err := UnmarshalAdvertisement(peerBytes)
	if err != nil {
		n.state = StateAbort
		return nil, fmt.Errorf("wire: parse peer advertisement: %w", err)
	}

	n.state = StateCheckCompat
	if n.self.Version.Major != peerAd.Version.Major {
		n.state = StateAbort
		if n.log != nil {
			n.log.Warningf("handshake: incompatible majors self=%s peer=%s", n.self.Version, peerAd.Version)
		}
		return nil, fmt.Errorf("wire: incompatible protocol majors: self=%s peer=%s", n.self.Version, peerAd.Version)
	}
	negotiated := Min(n.self.Version, peerAd.Version)

	n.state = StateSendNegotiated
	if err := writeByte(w, Encode(negotiated)); err != nil {
		n.state = StateAbort
		return nil, fmt.Errorf("wire: send negotiated version: %w", err)
	}

	n.state = StateRecvConfirm
	confirmByte, err := readByte(r)
	if err != nil {
		n.state = StateAbort
		return nil, fmt.Errorf("wire: recv negotiated confirmation: %w", err)
	}
	confirmed := Decode(confirmByte)
	if confirmed != negotiated {
		n.state = StateAbort
		return nil, fmt.Errorf("wire: negotiated version mismatch: computed=%s peer_sent=%s", negotiated, confirmed)
	}

	n.state = StateReady
	return &Result{
		NegotiatedVersion: negotiated,
		Features:          n.self.Version.Features().Intersect(peerAd.Version.Features()),
		PeerAdvertisement: peerAd,
	}, nil
}

func writeByte(w io.Writer, b byte) error {
	_, err := w.Write([]byte{b})
	return err
}

func readByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}
