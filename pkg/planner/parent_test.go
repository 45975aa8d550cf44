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

package planner

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/graph"
)

func named(name string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

func sv(id uint64, name, parentName string, ogen, gen uint64) *btrfs.Subvolume {
	s := &btrfs.Subvolume{
		MountRoot: "/mnt/old",
		Path:      name,
		ID:        id,
		ParentID:  id,
		UUID:      named(name),
		Ogen:      ogen,
		Gen:       gen,
	}
	if parentName != "" {
		s.ParentUUID = named(parentName)
	}
	return s
}

func ids(subvols []*btrfs.Subvolume) []uint64 {
	out := make([]uint64, len(subvols))
	for i, s := range subvols {
		out[i] = s.ID
	}
	return out
}

func cloneIDs(instr Instruction) []uint64 {
	var out []uint64
	for _, c := range instr.CloneSources {
		out = append(out, c.ID)
	}
	return out
}

// S1 (parent strategy, linear chain).
func TestParentLinearChain(t *testing.T) {
	a := sv(101, "a", "", 10, 10)
	b := sv(102, "b", "a", 20, 20)
	c := sv(103, "c", "b", 30, 30)
	subvols := []*btrfs.Subvolume{a, b, c}
	idx := graph.New(subvols)

	plan := Parent(idx, subvols)
	require.Len(t, plan, 3)
	require.Equal(t, []uint64{101, 102, 103}, ids([]*btrfs.Subvolume{plan[0].Subvolume, plan[1].Subvolume, plan[2].Subvolume}))

	require.Nil(t, plan[0].Parent)
	require.Empty(t, plan[0].CloneSources)

	require.Equal(t, uint64(101), plan[1].Parent.ID)
	require.Equal(t, []uint64{101}, cloneIDs(plan[1]))

	require.Equal(t, uint64(102), plan[2].Parent.ID)
	require.ElementsMatch(t, []uint64{102, 101}, cloneIDs(plan[2]))
}
