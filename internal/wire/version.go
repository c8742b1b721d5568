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

// Package wire implements the mixnode's connection-setup protocol: semver
// version negotiation, feature-flag intersection, length-prefixed framing,
// packet-format downshifting, and the compatibility layer that adapts a
// newer packet format to an older negotiated peer.
//
// It plays the role of the teacher's github.com/katzenpost/core/wire
// session package (see util/pool.go and auth/provider_auth.go in the
// teacher tree for the usage shape), reworked for the mixnode's own
// Advertisement/negotiation contract instead of Noise-based link auth.
package wire

import "fmt"

// Feature is one bit of the FeatureFlags bitset (spec §3).
type Feature uint8

const (
	FeatureBatchProcessing Feature = 1 << iota
	FeatureEnhancedSphinx
	FeatureRelayLottery
	FeatureVRFDelays
	FeatureCoverTraffic
)

// FeatureFlags is a bitset over the Feature constants.
type FeatureFlags uint8

// Has reports whether f includes feature.
func (f FeatureFlags) Has(feature Feature) bool {
	return f&FeatureFlags(feature) != 0
}

// Intersect returns the features present in both f and other.
func (f FeatureFlags) Intersect(other FeatureFlags) FeatureFlags {
	return f & other
}

// featuresForMinor returns the feature set available at protocol minor
// version m, per spec §3: 1.0 -> none, 1.1 -> batch_processing,
// 1.2 -> all five.
func featuresForMinor(minor uint8) FeatureFlags {
	switch {
	case minor >= 2:
		return FeatureFlags(FeatureBatchProcessing | FeatureEnhancedSphinx |
			FeatureRelayLottery | FeatureVRFDelays | FeatureCoverTraffic)
	case minor == 1:
		return FeatureFlags(FeatureBatchProcessing)
	default:
		return 0
	}
}

// ProtocolVersion is a semver triple. The mixnode only ever negotiates
// patch == 0 versions (the wire encoding has no room for patch), but the
// field is kept for API symmetry with spec §3.
type ProtocolVersion struct {
	Major uint8
	Minor uint8
	Patch uint8
}

// Unknown is the sentinel decoded from the 0xFF wire byte.
var Unknown = ProtocolVersion{Major: 0xFF}

// V1_0, V1_1 and V1_2 are the three versions this mixnode understands.
var (
	V1_0 = ProtocolVersion{Major: 1, Minor: 0}
	V1_1 = ProtocolVersion{Major: 1, Minor: 1}
	V1_2 = ProtocolVersion{Major: 1, Minor: 2}
)

// String renders "major.minor.patch".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsUnknown reports whether v decodes from the 0xFF sentinel byte.
func (v ProtocolVersion) IsUnknown() bool {
	return v.Major == 0xFF
}

// Features returns the feature set available at v.
func (v ProtocolVersion) Features() FeatureFlags {
	return featuresForMinor(v.Minor)
}

// Less reports whether v is semver-ordered strictly before other, assuming
// both share the same major (callers must check that separately).
func (v ProtocolVersion) Less(other ProtocolVersion) bool {
	return v.Minor < other.Minor
}

// Min returns the semver-minimum of a and b. Callers must have already
// established a.Major == b.Major.
func Min(a, b ProtocolVersion) ProtocolVersion {
	if b.Less(a) {
		return b
	}
	return a
}

// IsCompatibleWith implements the asymmetric compatibility rule of spec §3:
// A is compatible with B iff A.Major == B.Major && A.Minor >= B.Minor. A
// newer node can talk to an older one; the reverse does not hold.
func (v ProtocolVersion) IsCompatibleWith(other ProtocolVersion) bool {
	return v.Major == other.Major && v.Minor >= other.Minor
}

// Encode renders v as the single wire byte 0x1M for (1, M, 0), or 0xFF for
// an unrepresentable/unknown version (P10, byte-version round-trip).
func Encode(v ProtocolVersion) byte {
	if v.Major != 1 || v.Patch != 0 || v.Minor > 0x0F {
		return 0xFF
	}
	return 0x10 | v.Minor
}

// Decode is the inverse of Encode.
func Decode(b byte) ProtocolVersion {
	if b == 0xFF || b&0xF0 != 0x10 {
		return Unknown
	}
	return ProtocolVersion{Major: 1, Minor: b & 0x0F, Patch: 0}
}
