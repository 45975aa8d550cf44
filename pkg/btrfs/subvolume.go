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

// Package btrfs provides a strongly-typed wrapper around the btrfs CLI and
// the Subvolume model built from it.
package btrfs

import (
	"path/filepath"

	"github.com/google/uuid"
)

// MaxStaticGenerationSkew is the maximum difference between a subvolume's
// generation and its origin generation for it to be considered "static"
// (i.e. an unmodified read-only snapshot).
const MaxStaticGenerationSkew = 1

// Subvolume is the in-memory entity describing one btrfs subvolume, as
// parsed from "btrfs subvolume show". It is immutable after construction;
// nothing in this package mutates a Subvolume's fields once New returns.
type Subvolume struct {
	// MountRoot is the absolute path where the containing filesystem's
	// top-level subvolume is mounted.
	MountRoot string
	// Path is this subvolume's path relative to MountRoot.
	Path string
	// ID is the 64-bit subvolume id. The top-level subvolume has ID 5.
	ID uint64
	// ParentID is the id of the tree-containment parent, not the
	// snapshot origin.
	ParentID uint64
	// UUID is this subvolume's unique identifier.
	UUID uuid.UUID
	// ParentUUID is the snapshot origin's UUID. It is uuid.Nil for roots
	// and for subvolumes whose origin is gone.
	ParentUUID uuid.UUID
	// Gen is the generation counter at enumeration time.
	Gen uint64
	// Ogen is the generation at creation time ("origin generation").
	Ogen uint64
	// ROInitial records whether the subvolume was read-only when it was
	// enumerated.
	ROInitial bool
}

// New constructs a Subvolume by introspecting path (relative to mount) via
// the given Transport.
func New(t Transport, mount, path string) (*Subvolume, error) {
	show, err := t.Introspect(mount, path)
	if err != nil {
		return nil, err
	}
	return &Subvolume{
		MountRoot:  mount,
		Path:       path,
		ID:         show.ID,
		ParentID:   show.ParentID,
		UUID:       show.UUID,
		ParentUUID: show.ParentUUID,
		Gen:        show.Gen,
		Ogen:       show.Ogen,
		ROInitial:  show.ReadOnly,
	}, nil
}

// String implements fmt.Stringer for log messages.
func (s *Subvolume) String() string {
	return s.Path
}

// FullPath returns the absolute path of this subvolume, optionally rooted
// at a different mount than the one it was enumerated from (used when
// projecting a source subvolume onto the destination tree).
func (s *Subvolume) FullPath(mountOverride ...string) string {
	mount := s.MountRoot
	if len(mountOverride) > 0 && mountOverride[0] != "" {
		mount = mountOverride[0]
	}
	return filepath.Join(mount, s.Path)
}

// IsStatic reports whether the subvolume looks like an unmodified
// read-only snapshot: its generation has not advanced meaningfully past
// its origin generation. This is a proxy for the (mutable, and thus
// untrustworthy on its own) read-only flag.
func (s *Subvolume) IsStatic() bool {
	return s.Gen-s.Ogen <= MaxStaticGenerationSkew
}

// SetReadOnly sets the read-only property of this subvolume through t. It
// is a no-op when the subvolume was read-only at enumeration time: a
// natively read-only snapshot is never made writable again.
func (s *Subvolume) SetReadOnly(t Transport, readonly bool, mountOverride ...string) error {
	if s.ROInitial {
		return nil
	}
	return t.SetReadOnly(s.FullPath(mountOverride...), readonly)
}
