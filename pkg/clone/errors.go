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

package clone

import "errors"

var (
	// ErrSameFilesystem is returned when the source and destination
	// mounts report the same filesystem UUID.
	ErrSameFilesystem = errors.New("source and destination are the same filesystem")

	// ErrDestinationNotEmpty is returned when the destination mount
	// already contains entries.
	ErrDestinationNotEmpty = errors.New("destination is not empty")
)
