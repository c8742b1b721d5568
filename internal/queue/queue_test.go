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

package queue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDropOldestAlwaysAccepts(t *testing.T) {
	q := New(2, DropOldest)
	require.True(t, q.Push(1))
	require.True(t, q.Push(2))
	require.True(t, q.Push(3)) // evicts 1
	require.Equal(t, uint64(1), q.Dropped())
	require.Equal(t, 2, q.Depth())

	v, ok := q.Pop()
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestRejectNewestFailsFastOnFull(t *testing.T) {
	q := New(1, RejectNewest)
	require.True(t, q.Push(1))
	require.False(t, q.Push(2))
	require.Equal(t, uint64(1), q.Dropped())
	require.Equal(t, 1, q.Depth())
}

func TestPopNReturnsAvailableOnly(t *testing.T) {
	q := New(10, DropOldest)
	for i := 0; i < 3; i++ {
		q.Push(i)
	}
	got := q.PopN(128)
	require.Equal(t, []interface{}{0, 1, 2}, got)
	require.Equal(t, 0, q.Depth())
}

func TestDepthRatio(t *testing.T) {
	q := New(4, DropOldest)
	q.Push(1)
	q.Push(2)
	require.InDelta(t, 0.5, q.DepthRatio(), 0.0001)
}

func TestNeverExceedsCapacity(t *testing.T) {
	q := New(5, DropOldest)
	for i := 0; i < 100; i++ {
		q.Push(i)
		require.LessOrEqual(t, q.Depth(), q.Capacity())
	}
}
