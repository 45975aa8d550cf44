/*
This file is part of btrfsclone.

Btrfsclone is free software: you can redistribute it and/or modify it under the terms of the
GNU Lesser General Public License as published by the Free Software Foundation, either
version 3 of the License, or (at your option) any later version.

Btrfsclone is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
See the GNU Lesser General Public License for more details.

You should have received a copy of the GNU Lesser General Public License along with btrfsclone.
If not, see <https://www.gnu.org/licenses/>.
*/

package graph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
)

func named(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

func chain(t *testing.T) (a, b, c *btrfs.Subvolume, idx *Index) {
	t.Helper()
	a = &btrfs.Subvolume{ID: 1, UUID: named("a")}
	b = &btrfs.Subvolume{ID: 2, UUID: named("b"), ParentUUID: named("a")}
	c = &btrfs.Subvolume{ID: 3, UUID: named("c"), ParentUUID: named("b")}
	idx = New([]*btrfs.Subvolume{a, b, c})
	return
}

func TestIsRoot(t *testing.T) {
	a, b, _, idx := chain(t)
	require.True(t, idx.IsRoot(a))
	require.False(t, idx.IsRoot(b))
}

func TestIsRootWhenOriginLeftTheWorkingSet(t *testing.T) {
	orphan := &btrfs.Subvolume{ID: 9, UUID: named("orphan"), ParentUUID: named("missing-mom")}
	idx := New([]*btrfs.Subvolume{orphan})
	require.True(t, idx.IsRoot(orphan))
}

func TestAncestorChainIsNearestFirst(t *testing.T) {
	a, b, c, idx := chain(t)
	got := idx.AncestorChain(c)
	require.Equal(t, []*btrfs.Subvolume{b, a}, got)
}

func TestAncestorIterIsFiniteAndNonRestartable(t *testing.T) {
	_, _, c, idx := chain(t)
	it := idx.Ancestors(c)

	first, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, uint64(2), first.ID)

	second, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, uint64(1), second.ID)

	_, ok = it.Next()
	require.False(t, ok)
	// Exhausted iterators keep returning false rather than restarting.
	_, ok = it.Next()
	require.False(t, ok)
}

func TestChildrenReturnsOnlyDirectSnapshotChildren(t *testing.T) {
	a, b, c, idx := chain(t)
	all := []*btrfs.Subvolume{a, b, c}
	require.Equal(t, []*btrfs.Subvolume{b}, idx.Children(all, a))
	require.Equal(t, []*btrfs.Subvolume{c}, idx.Children(all, b))
	require.Empty(t, idx.Children(all, c))
}

func TestLookupIgnoresZeroUUID(t *testing.T) {
	withNil := &btrfs.Subvolume{ID: 5, UUID: uuid.Nil}
	idx := New([]*btrfs.Subvolume{withNil})
	require.Nil(t, idx.Lookup(uuid.Nil))
}
