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

import "fmt"

// BuildAdapter builds a packet Adapter between the formats implied by
// source and target protocol versions, per spec §4.9: construction
// succeeds iff source >= target within the same major.
func BuildAdapter(source, target ProtocolVersion) (*Adapter, error) {
	if source.Major != target.Major {
		return nil, fmt.Errorf("wire: cannot adapt across majors: %s -> %s", source, target)
	}
	if target.Minor > source.Minor {
		return nil, fmt.Errorf("wire: cannot upshift %s -> %s", source, target)
	}
	return NewAdapter(FormatForVersion(source), FormatForVersion(target))
}

// MigrationStep is one informational operator action in a version
// migration plan. It is not part of the runtime data plane.
type MigrationStep struct {
	Description string
}

// MigrationHelper enumerates the operator steps required to move a fleet
// from one protocol version to another (spec §4.9). It never touches wire
// bytes; it only describes the rollout.
type MigrationHelper struct {
	From, To ProtocolVersion
}

// NewMigrationHelper builds a helper describing the migration from 'from' to 'to'.
func NewMigrationHelper(from, to ProtocolVersion) *MigrationHelper {
	return &MigrationHelper{From: from, To: to}
}

// Steps returns the ordered list of operator actions for this migration.
func (m *MigrationHelper) Steps() []MigrationStep {
	if m.From == m.To {
		return nil
	}
	steps := []MigrationStep{
		{Description: fmt.Sprintf("stage %s-capable binaries fleet-wide alongside the running %s fleet", m.To, m.From)},
	}
	if m.From.Major != m.To.Major {
		steps = append(steps,
			MigrationStep{Description: "run a parallel major-version mixnet; this protocol refuses cross-major handshakes, so no node can bridge both"},
			MigrationStep{Description: "migrate client/relay registrations to the new major before decommissioning the old fleet"},
		)
		return steps
	}
	if m.To.Minor > m.From.Minor {
		newFeatures := m.To.Features() &^ m.From.Features()
		steps = append(steps,
			MigrationStep{Description: fmt.Sprintf("upgrade nodes one at a time; negotiation downshifts to %s automatically against not-yet-upgraded peers", m.From)},
			MigrationStep{Description: fmt.Sprintf("monitor handshake logs for majority-upgraded negotiated version reaching %s", m.To)},
		)
		if newFeatures != 0 {
			steps = append(steps, MigrationStep{Description: "enable features newly available at the target minor only after the fleet majority negotiates it"})
		}
		steps = append(steps, MigrationStep{Description: "decommission downshift adapters once no peer advertises a version below the target minor"})
	} else {
		steps = append(steps, MigrationStep{Description: fmt.Sprintf("downgrade is a rollback; confirm no %s-only features are in use before downgrading", m.From)})
	}
	return steps
}
