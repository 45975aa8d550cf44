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

// Chronological walks the same forest as Snapshot but children first:
// every node's children (ascending (ogen, id)) are sent before the node
// itself. A node adopts the previous sibling passed down from its parent's
// loop as its parent, falling back to its own last-sent child when no
// sibling was supplied. Roots, like Snapshot, are visited in ascending
// (ogen, id) order.
func Chronological(idx *graph.Index, subvols []*btrfs.Subvolume) Plan {
	var plan Plan
	for _, root := range roots(idx, subvols) {
		visitChronological(idx, subvols, root, nil, &plan)
	}
	return plan
}

// visitChronological sends node's subtree. parentOverride, when non-nil,
// is the previous sibling of node as seen by node's parent's children
// loop; it takes priority over whatever node's own last child turns out
// to be.
func visitChronological(idx *graph.Index, all []*btrfs.Subvolume, node, parentOverride *btrfs.Subvolume, plan *Plan) {
	children := byOgenID(idx.Children(all, node))
	var lastChild *btrfs.Subvolume
	for _, child := range children {
		visitChronological(idx, all, child, lastChild, plan)
		lastChild = child
	}

	instr := Instruction{Subvolume: node}
	switch {
	case parentOverride != nil:
		instr.Parent = parentOverride
		instr.CloneSources = append(instr.CloneSources, parentOverride)
		if lastChild != nil && lastChild != parentOverride {
			instr.CloneSources = append(instr.CloneSources, lastChild)
		}
	case lastChild != nil:
		instr.Parent = lastChild
		instr.CloneSources = append(instr.CloneSources, lastChild)
	}
	*plan = append(*plan, instr)
}
