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

// Package graph builds a UUID lookup over a set of subvolumes and walks
// the snapshot-lineage forest defined by their parent_uuid links.
package graph

import (
	"github.com/google/uuid"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
)

// Index is a UUID -> Subvolume lookup over one enumerated working set.
type Index struct {
	byUUID map[uuid.UUID]*btrfs.Subvolume
}

// New builds an Index over subvols. Subvolumes with a zero UUID are
// ignored (they cannot be referenced as a snapshot origin).
func New(subvols []*btrfs.Subvolume) *Index {
	idx := &Index{byUUID: make(map[uuid.UUID]*btrfs.Subvolume, len(subvols))}
	for _, sv := range subvols {
		if sv.UUID == uuid.Nil {
			continue
		}
		idx.byUUID[sv.UUID] = sv
	}
	return idx
}

// Lookup returns the subvolume with the given UUID, or nil if it is not
// in the working set.
func (idx *Index) Lookup(id uuid.UUID) *btrfs.Subvolume {
	if id == uuid.Nil {
		return nil
	}
	return idx.byUUID[id]
}

// Origin returns sv's snapshot origin ("mom") if it is present in the
// working set, or nil otherwise.
func (idx *Index) Origin(sv *btrfs.Subvolume) *btrfs.Subvolume {
	return idx.Lookup(sv.ParentUUID)
}

// IsRoot reports whether sv has no snapshot origin in the working set:
// either it has no parent_uuid at all, or its origin has left the set.
func (idx *Index) IsRoot(sv *btrfs.Subvolume) bool {
	return idx.Origin(sv) == nil
}

// Children returns the subvolumes in the working set whose snapshot
// origin is sv.
func (idx *Index) Children(all []*btrfs.Subvolume, sv *btrfs.Subvolume) []*btrfs.Subvolume {
	var children []*btrfs.Subvolume
	for _, candidate := range all {
		if candidate.ParentUUID == sv.UUID {
			children = append(children, candidate)
		}
	}
	return children
}

// AncestorIter is a lazy, finite, non-restartable iterator over sv's
// snapshot lineage: origin(sv), origin(origin(sv)), ... until a
// parent_uuid is absent or leaves the working set. It must not outlive
// mutation of the Index it was built from.
type AncestorIter struct {
	idx  *Index
	next *btrfs.Subvolume
	done bool
}

// Ancestors returns an iterator over sv's ancestor chain, nearest first.
func (idx *Index) Ancestors(sv *btrfs.Subvolume) *AncestorIter {
	return &AncestorIter{idx: idx, next: idx.Origin(sv)}
}

// Next returns the next ancestor and true, or (nil, false) once the
// chain is exhausted. It never revisits a node.
func (it *AncestorIter) Next() (*btrfs.Subvolume, bool) {
	if it.done || it.next == nil {
		it.done = true
		return nil, false
	}
	cur := it.next
	it.next = it.idx.Origin(cur)
	return cur, true
}

// Collect materializes the remainder of the iterator into a slice,
// nearest ancestor first.
func (it *AncestorIter) Collect() []*btrfs.Subvolume {
	var out []*btrfs.Subvolume
	for {
		sv, ok := it.Next()
		if !ok {
			return out
		}
		out = append(out, sv)
	}
}

// AncestorChain is a convenience wrapper returning the fully materialized
// ancestor chain of sv, nearest first.
func (idx *Index) AncestorChain(sv *btrfs.Subvolume) []*btrfs.Subvolume {
	return idx.Ancestors(sv).Collect()
}
