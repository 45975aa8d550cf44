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

// Package staging implements the scoped staging directory that subvolumes
// are received into before being moved to their final position in the
// destination tree.
package staging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/blang/vfs"
	"github.com/google/uuid"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
)

// Area is the scoped staging base directory on the destination mount.
type Area struct {
	fs        vfs.Filesystem
	transport btrfs.Transport
	logger    *log.Logger
	verbosity int

	destMount string
	base      string
	subvols   []*btrfs.Subvolume
}

// Option configures an Area.
type Option func(*Area)

// WithFilesystem overrides the vfs.Filesystem used for directory and
// rename operations. Defaults to vfs.OS(). Tests inject an in-memory
// filesystem here.
func WithFilesystem(fs vfs.Filesystem) Option {
	return func(a *Area) { a.fs = fs }
}

// WithLogger sets the logger and verbosity used for diagnostics.
func WithLogger(logger *log.Logger, verbosity int) Option {
	return func(a *Area) { a.logger, a.verbosity = logger, verbosity }
}

// New creates (if needed) a staging base directory under destMount,
// named either baseName (when non-empty) or a random 12-character token.
func New(transport btrfs.Transport, destMount, baseName string, subvols []*btrfs.Subvolume, opts ...Option) (*Area, error) {
	if baseName == "" {
		baseName = randomToken()
	}
	a := &Area{
		transport: transport,
		fs:        vfs.OS(),
		destMount: destMount,
		base:      filepath.Join(destMount, baseName),
		subvols:   subvols,
	}
	for _, opt := range opts {
		opt(a)
	}
	if _, err := a.fs.Stat(a.base); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat staging base %s: %w", a.base, err)
		}
		if err := vfs.MkdirAll(a.fs, a.base, 0755); err != nil {
			return nil, fmt.Errorf("creating staging base %s: %w", a.base, err)
		}
	}
	return a, nil
}

func (a *Area) logf(level int, format string, args ...interface{}) {
	if a.logger != nil && a.verbosity >= level {
		a.logger.Printf(format, args...)
	}
}

// SubDir returns the per-subvolume staging directory.
func (a *Area) SubDir(sv *btrfs.Subvolume) string {
	return filepath.Join(a.base, strconv.FormatUint(sv.ID, 10))
}

// Receive streams sv in from sourcePath into its staging sub-directory,
// using parent and cloneSources as the incremental base and clone-source
// set. If a directory with the expected received name already exists, the
// receive is skipped (idempotent replay).
func (a *Area) Receive(sv *btrfs.Subvolume, sourcePath, parent string, cloneSources []string) error {
	dir := a.SubDir(sv)
	if _, err := a.fs.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", dir, err)
		}
		if err := a.fs.Mkdir(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	newPath := filepath.Join(dir, filepath.Base(sourcePath))
	if _, err := a.fs.Stat(newPath); err == nil {
		a.logf(1, "%s already exists, not sending", newPath)
		return nil
	}
	if err := a.transport.SendReceive(btrfs.SendReceiveOptions{
		SourcePath:   sourcePath,
		DestDir:      dir,
		Parent:       parent,
		CloneSources: cloneSources,
		LogName:      fmt.Sprintf("%d", sv.ID),
	}); err != nil {
		return err
	}
	if !sv.ROInitial {
		if err := a.transport.SetReadOnly(newPath, false); err != nil {
			return fmt.Errorf("clearing read-only on %s: %w", newPath, err)
		}
	}
	return nil
}

// Close moves every received subvolume to its final tree position and
// removes the staging base. It must run on every exit path (success,
// error, or panic recovery) in the caller.
func (a *Area) Close() error {
	ordered := append([]*btrfs.Subvolume(nil), a.subvols...)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].ParentID != ordered[j].ParentID {
			return ordered[i].ParentID < ordered[j].ParentID
		}
		return ordered[i].ID < ordered[j].ID
	})

	done := map[uint64]bool{}
	for _, sv := range ordered {
		if err := a.moveToTreePosition(sv, done); err != nil {
			a.logf(0, "Error moving %s into place: %v", sv.Path, err)
		}
	}

	if err := a.fs.Remove(a.base); err != nil {
		a.logf(0, "Failed to remove staging base %s (non-fatal): %v", a.base, err)
	}
	return nil
}

func (a *Area) moveToTreePosition(sv *btrfs.Subvolume, done map[uint64]bool) error {
	goal := sv.FullPath(a.destMount)
	cur := filepath.Join(a.SubDir(sv), filepath.Base(goal))

	if _, err := a.fs.Stat(cur); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("stat %s: %w", cur, err)
		}
		if _, err := a.fs.Stat(goal); err == nil {
			a.logf(1, "%s already moved to %s", sv.Path, goal)
			done[sv.ID] = true
			return nil
		}
		return fmt.Errorf("%s was not created", cur)
	}

	if sv.ParentID != 5 && !done[sv.ParentID] {
		return fmt.Errorf("parent %d of %d not found in destination tree yet", sv.ParentID, sv.ID)
	}

	if sv.ROInitial {
		if err := a.transport.SetReadOnly(cur, false); err != nil {
			return fmt.Errorf("clearing read-only on %s: %w", cur, err)
		}
	}
	moveErr := a.fs.Rename(cur, goal)
	if sv.ROInitial {
		if _, err := a.fs.Stat(goal); err == nil {
			if err := a.transport.SetReadOnly(goal, true); err != nil {
				a.logf(0, "Error restoring read-only on %s (non-fatal): %v", goal, err)
			}
		} else if _, err := a.fs.Stat(cur); err == nil {
			if err := a.transport.SetReadOnly(cur, true); err != nil {
				a.logf(0, "Error restoring read-only on %s (non-fatal): %v", cur, err)
			}
		}
	}
	if moveErr != nil {
		return fmt.Errorf("moving %s to %s: %w", cur, goal, moveErr)
	}

	done[sv.ID] = true
	if err := a.fs.Remove(a.SubDir(sv)); err != nil {
		a.logf(0, "Failed to remove %s (non-fatal): %v", a.SubDir(sv), err)
	}
	return nil
}

func randomToken() string {
	s := uuid.New().String()
	return s[len(s)-12:]
}
