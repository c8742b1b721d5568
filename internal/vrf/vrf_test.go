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

package vrf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluateIsDeterministicPerKey(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)

	msg := []byte("hello mixnode")
	a := k.Evaluate(msg)
	b := k.Evaluate(msg)
	require.Equal(t, a.Bytes, b.Bytes)
}

func TestVerifyRoundTrip(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)

	msg := []byte("delay seed")
	out := k.Evaluate(msg)
	require.True(t, Verify(k.PublicKey(), msg, out))
}

func TestVerifyRejectsTamperedProof(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)

	msg := []byte("delay seed")
	out := k.Evaluate(msg)
	out.Proof[0] ^= 0xFF
	require.False(t, Verify(k.PublicKey(), msg, out))
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	k1, err := Generate()
	require.NoError(t, err)
	k2, err := Generate()
	require.NoError(t, err)

	msg := []byte("delay seed")
	out := k1.Evaluate(msg)
	require.False(t, Verify(k2.PublicKey(), msg, out))
}

func TestUniformIsWithinBounds(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		out := k.Evaluate([]byte{byte(i)})
		u := Uniform(out)
		require.GreaterOrEqual(t, u, 0.0)
		require.Less(t, u, 1.0)
	}
}

func TestDifferentMessagesDifferentOutputs(t *testing.T) {
	k, err := Generate()
	require.NoError(t, err)
	a := k.Evaluate([]byte("a"))
	b := k.Evaluate([]byte("b"))
	require.NotEqual(t, a.Bytes, b.Bytes)
}
