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

import "fmt"

// Name identifies one of the four planning strategies.
type Name string

const (
	NameParent        Name = "parent"
	NameSnapshot       Name = "snapshot"
	NameChronological  Name = "chronological"
	NameGeneration     Name = "generation"
)

var strategies = map[Name]Strategy{
	NameParent:       Parent,
	NameSnapshot:     Snapshot,
	NameChronological: Chronological,
	NameGeneration:   Generation,
}

// BypassesStaging reports whether the named strategy bypasses the Staging Area
// and writes straight to the final destination path. Only "parent" does.
func (n Name) BypassesStaging() bool {
	return n == NameParent
}

// Lookup resolves a strategy name to its implementation.
func Lookup(name Name) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown replication strategy %q", name)
	}
	return s, nil
}
