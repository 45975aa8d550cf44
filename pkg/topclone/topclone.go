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

// Package topclone sends the top-level subvolume of the source tree across
// to the destination, optionally promoting its contents into the
// destination's own top-level subvolume.
package topclone

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
)

// Options configures a top-level send.
type Options struct {
	// Promote, when true, moves every entry of the received snapshot that
	// shares the received snapshot's own device id up into the destination
	// mount itself, then deletes the snapshot. When false the
	// received snapshot is left in place and its path is returned.
	Promote bool
}

// Send creates a temporary read-only snapshot of the source mount's
// top-level subvolume, sends it across with no parent or clone sources,
// and returns the path under destMount that holds the received tree
// (either destMount itself, when Promote is set, or the snapshot's path).
func Send(transport btrfs.Transport, sourceMount, destMount string, opts Options, logger *log.Logger, verbosity int) (string, error) {
	logf := func(level int, format string, args ...interface{}) {
		if logger != nil && verbosity >= level {
			logger.Printf(format, args...)
		}
	}

	name := uuid.New().String()[:12]
	snapPath := filepath.Join(sourceMount, name)
	if err := transport.SnapshotReadOnly(sourceMount, snapPath); err != nil {
		return "", fmt.Errorf("snapshotting %s: %w", sourceMount, err)
	}
	defer func() {
		if err := transport.Delete(snapPath); err != nil {
			logf(0, "Error removing temporary snapshot %s (non-fatal): %v", snapPath, err)
		}
	}()

	if err := transport.SendReceive(btrfs.SendReceiveOptions{
		SourcePath: snapPath,
		DestDir:    destMount,
		LogName:    "toplevel",
	}); err != nil {
		return "", err
	}

	received := filepath.Join(destMount, name)
	if err := transport.SetReadOnly(received, false); err != nil {
		return "", fmt.Errorf("clearing read-only on %s: %w", received, err)
	}

	if !opts.Promote {
		return received, nil
	}

	if err := promote(received, destMount, logf); err != nil {
		return "", err
	}
	if err := transport.Delete(received); err != nil {
		logf(0, "Error removing promoted snapshot directory %s (non-fatal): %v", received, err)
	}
	return destMount, nil
}

// promote moves every entry of received that lives on the same device as
// received itself up into destMount, leaving behind anything that crossed a
// filesystem boundary (a nested mount or subvolume btrfs itself manages).
func promote(received, destMount string, logf func(level int, format string, args ...interface{})) error {
	destDev, err := deviceOf(received)
	if err != nil {
		return fmt.Errorf("stat %s: %w", received, err)
	}

	entries, err := os.ReadDir(received)
	if err != nil {
		return fmt.Errorf("reading %s: %w", received, err)
	}
	for _, entry := range entries {
		src := filepath.Join(received, entry.Name())
		dev, err := deviceOf(src)
		if err != nil {
			return fmt.Errorf("stat %s: %w", src, err)
		}
		if dev != destDev {
			logf(1, "%s is on a different device, leaving in place", src)
			continue
		}
		dst := filepath.Join(destMount, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("moving %s to %s: %w", src, dst, err)
		}
	}
	return nil
}

func deviceOf(path string) (uint64, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return 0, err
	}
	stat, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, fmt.Errorf("cannot determine device id of %s", path)
	}
	return uint64(stat.Dev), nil
}
