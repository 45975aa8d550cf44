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

	"github.com/stretchr/testify/require"

	"github.com/btrfsclone/btrfsclone/pkg/graph"
)

// S3 (chronological strategy, same input as S2).
func TestChronologicalStar(t *testing.T) {
	root, x, y, z, subvols := star()
	idx := graph.New(subvols)

	plan := Chronological(idx, subvols)
	require.Len(t, plan, 4)

	got := make([]uint64, len(plan))
	for i, instr := range plan {
		got[i] = instr.Subvolume.ID
	}
	require.Equal(t, []uint64{x.ID, y.ID, z.ID, root.ID}, got)

	require.Nil(t, plan[0].Parent)
	require.Empty(t, plan[0].CloneSources)

	require.Equal(t, x.ID, plan[1].Parent.ID)
	require.Equal(t, []uint64{x.ID}, cloneIDs(plan[1]))

	require.Equal(t, y.ID, plan[2].Parent.ID)
	require.Equal(t, []uint64{y.ID}, cloneIDs(plan[2]))

	require.Equal(t, z.ID, plan[3].Parent.ID)
	require.Equal(t, []uint64{z.ID}, cloneIDs(plan[3]))
}
