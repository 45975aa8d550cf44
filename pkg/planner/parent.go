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

// Parent walks each subvolume's ancestor chain and sends straight into its
// final destination path: the nearest ancestor (if any) is the parent, and
// the whole chain is offered as clone sources. Unlike the other three
// strategies this bypasses the Staging Area entirely.
func Parent(idx *graph.Index, subvols []*btrfs.Subvolume) Plan {
	var plan Plan
	for _, sv := range byOgenID(subvols) {
		chain := idx.AncestorChain(sv)
		instr := Instruction{Subvolume: sv}
		if len(chain) > 0 {
			instr.Parent = chain[0]
			instr.CloneSources = chain
		}
		plan = append(plan, instr)
	}
	return plan
}
