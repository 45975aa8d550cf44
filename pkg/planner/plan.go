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

// Package planner implements the four subvolume replication strategies:
// parent, snapshot, chronological, and generation. Each strategy consumes
// the enumerated working set and a graph.Index over it, and produces a
// Plan: a deterministic send order together with, per subvolume, the
// parent reference and clone-source set to hand the Staging Area.
package planner

import (
	"sort"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/graph"
)

// Instruction is one subvolume's place in a Plan: where it sits in send
// order (implicit via Plan's slice order), what it should be sent against
// (Parent, possibly nil), and what additional clone sources the transport
// should be given.
type Instruction struct {
	Subvolume    *btrfs.Subvolume
	Parent       *btrfs.Subvolume
	CloneSources []*btrfs.Subvolume
	// Reason documents why Parent was chosen. Only the generation
	// strategy populates it; it exists for diagnostics and tests, never
	// for control flow.
	Reason string
}

// Plan is the fully materialized, ordered sequence of Instructions a
// strategy produced for one working set.
type Plan []Instruction

// Strategy is the common shape of all four planning strategies.
type Strategy func(idx *graph.Index, subvols []*btrfs.Subvolume) Plan

// byOgenID sorts ascending by (Ogen, ID).
func byOgenID(subvols []*btrfs.Subvolume) []*btrfs.Subvolume {
	out := append([]*btrfs.Subvolume(nil), subvols...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ogen != out[j].Ogen {
			return out[i].Ogen < out[j].Ogen
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// byOgenIDDesc sorts descending by (Ogen, ID).
func byOgenIDDesc(subvols []*btrfs.Subvolume) []*btrfs.Subvolume {
	out := append([]*btrfs.Subvolume(nil), subvols...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ogen != out[j].Ogen {
			return out[i].Ogen > out[j].Ogen
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// Restrict narrows every instruction's clone-source set down to just its
// chosen Parent, dropping the rest of the scored candidates. Instructions
// with no Parent (orphans) are left with no clone sources at all.
func (p Plan) Restrict() Plan {
	out := make(Plan, len(p))
	for i, instr := range p {
		out[i] = instr
		if instr.Parent == nil {
			out[i].CloneSources = nil
			continue
		}
		out[i].CloneSources = []*btrfs.Subvolume{instr.Parent}
	}
	return out
}

func roots(idx *graph.Index, subvols []*btrfs.Subvolume) []*btrfs.Subvolume {
	var out []*btrfs.Subvolume
	for _, sv := range subvols {
		if idx.IsRoot(sv) {
			out = append(out, sv)
		}
	}
	return byOgenID(out)
}
