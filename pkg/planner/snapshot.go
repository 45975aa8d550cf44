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
	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/graph"
)

// Snapshot walks the snapshot-lineage forest depth-first, root first:
// every node is sent before its children, and children are visited in
// descending (ogen, id) order. Multiple roots are themselves visited in
// ascending (ogen, id) order for determinism.
func Snapshot(idx *graph.Index, subvols []*btrfs.Subvolume) Plan {
	var plan Plan
	for _, root := range roots(idx, subvols) {
		visitSnapshot(idx, subvols, root, nil, &plan)
	}
	return plan
}

func visitSnapshot(idx *graph.Index, all []*btrfs.Subvolume, node, prev *btrfs.Subvolume, plan *Plan) {
	instr := Instruction{Subvolume: node, Parent: prev}
	if prev != nil {
		instr.CloneSources = []*btrfs.Subvolume{prev}
	}
	*plan = append(*plan, instr)

	children := byOgenIDDesc(idx.Children(all, node))
	branchPrev := node
	for _, child := range children {
		visitSnapshot(idx, all, child, branchPrev, plan)
		branchPrev = child
	}
}
