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

// Package rodiscipline implements the scoped read-only bracket required
// before a subvolume can be sent: every subvolume in the working set is
// flipped to read-only on entry, and subvolumes that were not natively
// read-only are restored to writable on every exit path.
package rodiscipline

import (
	"log"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
)

// Discipline holds the state needed to restore read-only flags on
// teardown. It is engaged once per clone and disengaged exactly once,
// typically via a deferred call.
type Discipline struct {
	transport btrfs.Transport
	logger    *log.Logger
	verbosity int
	subvols   []*btrfs.Subvolume
	engaged   bool
}

// New returns a Discipline bound to the given transport and logger.
func New(transport btrfs.Transport, logger *log.Logger, verbosity int) *Discipline {
	return &Discipline{transport: transport, logger: logger, verbosity: verbosity}
}

func (d *Discipline) logf(level int, format string, args ...interface{}) {
	if d.logger != nil && d.verbosity >= level {
		d.logger.Printf(format, args...)
	}
}

// Engage sets every subvolume whose ROInitial is false to read-only, in
// enumeration order. If any SetReadOnly(true) call fails, engagement
// aborts and the error is returned; the clone cannot proceed.
func (d *Discipline) Engage(subvols []*btrfs.Subvolume) error {
	d.subvols = subvols
	for _, sv := range subvols {
		if sv.ROInitial {
			continue
		}
		d.logf(1, "Setting %s read-only", sv.Path)
		if err := d.transport.SetReadOnly(sv.FullPath(), true); err != nil {
			return err
		}
	}
	d.engaged = true
	return nil
}

// Disengage restores writability to every subvolume whose ROInitial was
// false, iterating in reverse enumeration order. Individual failures are
// logged and skipped: this path is best-effort and never returns an
// error, since it typically runs during teardown after some other error
// has already occurred.
func (d *Discipline) Disengage() {
	if !d.engaged {
		return
	}
	for i := len(d.subvols) - 1; i >= 0; i-- {
		sv := d.subvols[i]
		if sv.ROInitial {
			continue
		}
		if err := d.transport.SetReadOnly(sv.FullPath(), false); err != nil {
			d.logf(0, "Error restoring writability for %s: %v (non-fatal)", sv.Path, err)
		}
	}
	d.engaged = false
}
