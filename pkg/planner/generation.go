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
	"sort"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/graph"
)

// Generation is the hardest of the four strategies: it visits subvolumes
// in ascending (gen, id) order and, for each, scores the already-sent
// ("done") relatives of sv to pick the best parent and a broad
// clone-source set. See the selection cascade in chooseParent.
func Generation(idx *graph.Index, subvols []*btrfs.Subvolume) Plan {
	var plan Plan
	var done []*btrfs.Subvolume
	doneSet := map[uint64]bool{}

	for _, sv := range byGenIDAsc(subvols) {
		best, reason, clones := chooseParent(idx, sv, done, doneSet)
		plan = append(plan, Instruction{
			Subvolume:    sv,
			Parent:       best,
			CloneSources: clones,
			Reason:       reason,
		})
		done = append(done, sv)
		doneSet[sv.ID] = true
	}
	return plan
}

func byGenIDAsc(subvols []*btrfs.Subvolume) []*btrfs.Subvolume {
	out := append([]*btrfs.Subvolume(nil), subvols...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Gen != out[j].Gen {
			return out[i].Gen < out[j].Gen
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func addClone(set map[uint64]*btrfs.Subvolume, cand *btrfs.Subvolume) {
	if cand != nil {
		set[cand.ID] = cand
	}
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// chooseParent implements the selection cascade of section 4.7.4: children
// with a static member win outright; failing that, the nearest ancestor
// ("mom") wins when she is also the nearest already-sent ancestor; failing that,
// siblings and the nearest visible ancestor are scored and the best of
// them chosen by a fixed priority order, falling through to the single
// nicest-ogen-distance relative, and finally to no parent at all.
func chooseParent(idx *graph.Index, sv *btrfs.Subvolume, done []*btrfs.Subvolume, doneSet map[uint64]bool) (*btrfs.Subvolume, string, []*btrfs.Subvolume) {
	cloneSet := map[uint64]*btrfs.Subvolume{}
	var best *btrfs.Subvolume
	var reason string

	var children []*btrfs.Subvolume
	for _, d := range done {
		if d.ParentUUID == sv.UUID {
			children = append(children, d)
		}
	}
	if len(children) > 0 {
		var bestStaticChild *btrfs.Subvolume
		for _, c := range children {
			if !c.IsStatic() {
				continue
			}
			if bestStaticChild == nil || c.Ogen < bestStaticChild.Ogen ||
				(c.Ogen == bestStaticChild.Ogen && c.ID < bestStaticChild.ID) {
				bestStaticChild = c
			}
		}
		if bestStaticChild != nil {
			best, reason = bestStaticChild, "static child"
		}
		for _, c := range children {
			addClone(cloneSet, c)
		}
	}

	ancestors := idx.AncestorChain(sv)
	var mom, grandma *btrfs.Subvolume
	if len(ancestors) > 0 {
		mom = ancestors[0]
		for _, a := range ancestors {
			if doneSet[a.ID] {
				grandma = a
				break
			}
		}
	}

	if best == nil && mom != nil && grandma != nil && grandma.ID == mom.ID {
		best, reason = mom, "mom"
	}

	var siblings []*btrfs.Subvolume
	if mom != nil {
		for _, d := range done {
			if d.ParentUUID == sv.ParentUUID {
				siblings = append(siblings, d)
			}
		}
	}
	var brothers, sisters []*btrfs.Subvolume
	for _, s := range siblings {
		if s.Ogen < sv.Ogen {
			brothers = append(brothers, s)
		} else {
			sisters = append(sisters, s)
		}
	}

	var youngestStaticBrother, youngestBrotherByGen, youngestBrotherByOgen *btrfs.Subvolume
	var oldestStaticSister, oldestSisterByOgen, oldestSisterByGen *btrfs.Subvolume

	for _, b := range brothers {
		if b.IsStatic() && (youngestStaticBrother == nil || b.Ogen > youngestStaticBrother.Ogen ||
			(b.Ogen == youngestStaticBrother.Ogen && b.ID > youngestStaticBrother.ID)) {
			youngestStaticBrother = b
		}
		if b.Gen < sv.Ogen && (youngestBrotherByGen == nil || b.Ogen > youngestBrotherByGen.Ogen ||
			(b.Ogen == youngestBrotherByGen.Ogen && b.ID > youngestBrotherByGen.ID)) {
			youngestBrotherByGen = b
		}
		if youngestBrotherByOgen == nil || b.Ogen > youngestBrotherByOgen.Ogen ||
			(b.Ogen == youngestBrotherByOgen.Ogen && b.ID > youngestBrotherByOgen.ID) {
			youngestBrotherByOgen = b
		}
	}
	for _, s := range sisters {
		if s.IsStatic() && (oldestStaticSister == nil || s.Ogen < oldestStaticSister.Ogen ||
			(s.Ogen == oldestStaticSister.Ogen && s.ID < oldestStaticSister.ID)) {
			oldestStaticSister = s
		}
		if oldestSisterByOgen == nil || s.Ogen < oldestSisterByOgen.Ogen ||
			(s.Ogen == oldestSisterByOgen.Ogen && s.ID < oldestSisterByOgen.ID) {
			oldestSisterByOgen = s
		}
		if oldestSisterByGen == nil || s.Gen < oldestSisterByGen.Gen ||
			(s.Gen == oldestSisterByGen.Gen && s.ID < oldestSisterByGen.ID) {
			oldestSisterByGen = s
		}
	}

	for _, s := range siblings {
		addClone(cloneSet, s)
	}
	addClone(cloneSet, grandma)
	addClone(cloneSet, mom)

	if best == nil {
		switch {
		case youngestStaticBrother != nil:
			best, reason = youngestStaticBrother, "static brother"
		case oldestStaticSister != nil:
			best, reason = oldestStaticSister, "static sister"
		case youngestBrotherByGen != nil:
			best, reason = youngestBrotherByGen, "youngest brother"
		case grandma != nil && grandma.IsStatic():
			best, reason = grandma, "static ancestor"
		default:
			candidates := []*btrfs.Subvolume{grandma, youngestBrotherByOgen, oldestSisterByOgen, oldestSisterByGen}
			var nicest *btrfs.Subvolume
			var nicestDiff uint64
			for _, c := range candidates {
				if c == nil {
					continue
				}
				diff := absDiff(c.Ogen, sv.Ogen)
				if nicest == nil || diff < nicestDiff || (diff == nicestDiff && c.ID < nicest.ID) {
					nicest, nicestDiff = c, diff
				}
			}
			if nicest != nil {
				best = nicest
				if len(siblings) == 0 {
					reason = "ancestor"
				} else {
					reason = "nicest relative"
				}
			} else if len(siblings) > 0 {
				reason = "no nice relatives"
			} else {
				reason = "orphan"
			}
		}
	}

	addClone(cloneSet, best)
	var clones []*btrfs.Subvolume
	for _, v := range cloneSet {
		clones = append(clones, v)
	}
	sort.Slice(clones, func(i, j int) bool { return clones[i].ID < clones[j].ID })

	return best, reason, clones
}
