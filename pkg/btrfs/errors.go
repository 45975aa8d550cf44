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

package btrfs

import "errors"

var (
	// ErrMissingAttribute is returned when a "subvolume show" response is
	// missing one of the attributes required to construct a Subvolume.
	ErrMissingAttribute = errors.New("missing attribute in subvolume show output")

	// ErrNotFound describes a subvolume listing with no row for a
	// requested path. No function in this package returns it.
	ErrNotFound = errors.New("subvolume not found")

	// ErrSendReceive is returned when either side of a send/receive pipe
	// exits non-zero.
	ErrSendReceive = errors.New("send/recv error")

	// ErrNotInstalled is returned when the configured btrfs binary cannot
	// be found on PATH.
	ErrNotInstalled = errors.New("btrfs tool is not available")
)
