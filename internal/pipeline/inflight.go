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

package pipeline

import "time"

// Priority marks an InflightPacket's scheduling class (spec §3).
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)

// InflightPacket is the internal envelope a packet is wrapped in from the
// moment it is read off the wire until it is written back out or dropped
// (spec §3). It is owned by exactly one component at a time: input queue
// -> worker -> delay wheel -> output queue -> writer (spec §3 Lifecycle).
type InflightPacket struct {
	Payload     []byte
	OriginPeer  string
	ArrivalTime time.Time
	Deadline    time.Time // set once a delay has been drawn
	Priority    Priority

	// NextHopHint is filled in, and Payload replaced by the peeled inner
	// bytes, once SphinxPeeler has run (see WorkerPool.process).
	NextHopHint string
}
