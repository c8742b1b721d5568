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

// Package errkind enumerates the mixnode's error taxonomy (spec §7).
//
// Per-packet and per-connection errors are handled at their own scope and
// counted/logged rather than propagated; these sentinels exist so callers
// can classify an error with errors.Is without a bespoke error type per
// call site, the way the teacher's code sticks to plain wrapped errors
// (see config/config.go, client.go in the teacher repo).
package errkind

import (
	"errors"
	"fmt"
)

var (
	// ErrIO marks a connection-scoped I/O failure: close the connection,
	// preserve the rest of the pipeline.
	ErrIO = errors.New("i/o error")

	// ErrCrypto marks a packet-scoped Sphinx/VRF cryptographic failure:
	// drop the packet.
	ErrCrypto = errors.New("crypto error")

	// ErrPacket marks malformed framing or an oversized packet.
	ErrPacket = errors.New("packet error")

	// ErrRouting marks an empty-lottery or no-candidate routing failure.
	ErrRouting = errors.New("routing error")

	// ErrConfig marks a startup-only configuration error. Fatal.
	ErrConfig = errors.New("config error")

	// ErrNetwork marks a next-hop connect/send failure.
	ErrNetwork = errors.New("network error")

	// ErrVRF marks a VRF proof/sign failure.
	ErrVRF = errors.New("vrf error")

	// ErrProtocol marks a version-handshake violation.
	ErrProtocol = errors.New("protocol error")
)

// Wrap builds an error whose message is format applied to args and which
// unwraps to kind, so the caller can still errors.Is(err, kind).
func Wrap(kind error, format string, args ...any) error {
	return &wrapped{kind: kind, msg: fmt.Sprintf(format, args...)}
}

type wrapped struct {
	kind error
	msg  string
}

func (w *wrapped) Error() string { return w.msg }
func (w *wrapped) Unwrap() error { return w.kind }
