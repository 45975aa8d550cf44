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

package cmd

import (
	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/clone"
)

// runClone assumes old and new are already-mounted top-level subvolumes;
// mounting them (and, when requested, re-executing under an unshared
// mount namespace first) is handled upstream of this tool.
func runClone(old, new string) error {
	transport := btrfs.NewCLI(conf.BtrfsBinary, logger, conf.Verbosity)
	transport.DryRun = conf.DryRun
	if conf.NoUnshare {
		logLevel(2, "Mount namespace unsharing is disabled; assuming %s and %s are already reachable", old, new)
	}
	return clone.Run(transport, old, new, conf, logger)
}
