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
	"fmt"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/graph"
	"github.com/btrfsclone/btrfsclone/pkg/planner"
)

// NewPlanCommand prints the send order a strategy would produce, with each
// subvolume's parent and number of clone sources, without sending
// anything. Useful for auditing a strategy's choices before committing
// to a real clone.
func NewPlanCommand() *cobra.Command {
	var strategy string
	cmd := &cobra.Command{
		Use:   "plan [flags] <mount>",
		Short: "Print the replication plan for a mounted file system without sending anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(args[0], planner.Name(strategy))
		},
	}
	cmd.Flags().StringVarP(&strategy, "strategy", "s", string(conf.Strategy), "replication strategy: parent, snapshot, chronological, or generation")
	return cmd
}

func runPlan(mount string, name planner.Name) error {
	strategy, err := planner.Lookup(name)
	if err != nil {
		return err
	}

	transport := btrfs.NewCLI(conf.BtrfsBinary, logger, conf.Verbosity)
	paths, err := transport.ListSubvolumes(mount)
	if err != nil {
		return err
	}
	subvols := make([]*btrfs.Subvolume, 0, len(paths))
	for _, path := range paths {
		sv, err := btrfs.New(transport, mount, path)
		if err != nil {
			return err
		}
		subvols = append(subvols, sv)
	}

	idx := graph.New(subvols)
	plan := strategy(idx, subvols)

	treeprint.IndentSize = 4
	tree := treeprint.NewWithRoot(mount)
	for i, instr := range plan {
		label := fmt.Sprintf("%d: %s (parent=%s, clones=%d)", i+1, instr.Subvolume.Path, parentLabel(instr), len(instr.CloneSources))
		if instr.Reason != "" {
			label += " [" + instr.Reason + "]"
		}
		tree.AddNode(label)
	}
	fmt.Println(tree.String())
	return nil
}

func parentLabel(instr planner.Instruction) string {
	if instr.Parent == nil {
		return "none"
	}
	return instr.Parent.Path
}
