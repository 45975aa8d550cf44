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

package main

import "github.com/btrfsclone/btrfsclone/cmd/btrfsclone/cmd"

var version = "dev"

func main() {
	cmd.Execute(version)
}
