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

// Package clone wires the Transport Adapter, Subvolume Model, Graph
// Indexer, RO Discipline, Top-level Cloner, Replication Planner, and
// Staging Area together into one end-to-end clone of a btrfs file system
// onto another, already-mounted, destination.
package clone

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/btrfsclone/btrfsclone/pkg/btrfs"
	"github.com/btrfsclone/btrfsclone/pkg/cloneconfig"
	"github.com/btrfsclone/btrfsclone/pkg/graph"
	"github.com/btrfsclone/btrfsclone/pkg/planner"
	"github.com/btrfsclone/btrfsclone/pkg/rodiscipline"
	"github.com/btrfsclone/btrfsclone/pkg/staging"
	"github.com/btrfsclone/btrfsclone/pkg/topclone"
)

// Run performs one complete clone from oldMount to newMount according to
// cfg. Both mounts are assumed to already be the top-level subvolume of
// their respective file systems; mounting and unmounting them is the
// caller's responsibility.
func Run(transport btrfs.Transport, oldMount, newMount string, cfg *cloneconfig.Config, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	logf := func(level int, format string, args ...interface{}) {
		if cfg.Verbosity >= level {
			logger.Printf(format, args...)
		}
	}

	if err := checkPreconditions(transport, oldMount, newMount, cfg, logf); err != nil {
		return err
	}

	paths, err := transport.ListSubvolumes(oldMount)
	if err != nil {
		return fmt.Errorf("listing subvolumes under %s: %w", oldMount, err)
	}
	subvols := make([]*btrfs.Subvolume, 0, len(paths))
	for _, path := range paths {
		sv, err := btrfs.New(transport, oldMount, path)
		if err != nil {
			return fmt.Errorf("introspecting %s: %w", path, err)
		}
		subvols = append(subvols, sv)
	}
	logf(1, "Enumerated %d subvolumes under %s", len(subvols), oldMount)

	discipline := rodiscipline.New(transport, logger, cfg.Verbosity)
	if err := discipline.Engage(subvols); err != nil {
		return fmt.Errorf("engaging read-only discipline: %w", err)
	}
	defer discipline.Disengage()

	destRoot, err := topclone.Send(transport, oldMount, newMount, topclone.Options{Promote: cfg.Toplevel}, logger, cfg.Verbosity)
	if err != nil {
		return fmt.Errorf("cloning top-level subvolume: %w", err)
	}
	logf(1, "Top-level subvolume cloned to %s", destRoot)

	idx := graph.New(subvols)
	strategy, err := planner.Lookup(cfg.Strategy)
	if err != nil {
		return err
	}
	plan := strategy(idx, subvols)
	if cfg.Strategy == planner.NameGeneration && cfg.RestrictToGoodCandidates {
		plan = plan.Restrict()
	}

	if cfg.Strategy.BypassesStaging() {
		return runDirect(transport, oldMount, destRoot, plan, logf)
	}
	return runStaged(transport, oldMount, destRoot, subvols, plan, cfg, logger, logf)
}

func checkPreconditions(transport btrfs.Transport, oldMount, newMount string, cfg *cloneconfig.Config, logf func(int, string, ...interface{})) error {
	oldUUID, err := transport.FilesystemUUID(oldMount)
	if err != nil {
		return fmt.Errorf("reading filesystem uuid of %s: %w", oldMount, err)
	}
	newUUID, err := transport.FilesystemUUID(newMount)
	if err != nil {
		return fmt.Errorf("reading filesystem uuid of %s: %w", newMount, err)
	}
	if oldUUID == newUUID {
		if !cfg.Force {
			return ErrSameFilesystem
		}
		logf(0, "WARNING: %v; proceeding in %s because --force was given", ErrSameFilesystem, time.Duration(cfg.PreconditionDelay))
		time.Sleep(time.Duration(cfg.PreconditionDelay))
	}

	entries, err := os.ReadDir(newMount)
	if err != nil {
		return fmt.Errorf("reading %s: %w", newMount, err)
	}
	if len(entries) > 0 {
		if !cfg.Force {
			return ErrDestinationNotEmpty
		}
		logf(0, "WARNING: %v; proceeding in %s because --force was given", ErrDestinationNotEmpty, time.Duration(cfg.PreconditionDelay))
		time.Sleep(time.Duration(cfg.PreconditionDelay))
	}
	return nil
}

// runDirect implements the parent strategy's bypass of the Staging Area:
// every subvolume is sent straight into its final destination directory.
func runDirect(transport btrfs.Transport, oldMount, destRoot string, plan planner.Plan, logf func(int, string, ...interface{})) error {
	for _, instr := range plan {
		sv := instr.Subvolume
		dest := filepath.Dir(sv.FullPath(destRoot))
		if err := os.MkdirAll(dest, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dest, err)
		}
		opts := btrfs.SendReceiveOptions{
			SourcePath: sv.FullPath(oldMount),
			DestDir:    dest,
			LogName:    fmt.Sprintf("%d", sv.ID),
		}
		if instr.Parent != nil {
			opts.Parent = instr.Parent.FullPath(oldMount)
		}
		for _, cs := range instr.CloneSources {
			opts.CloneSources = append(opts.CloneSources, cs.FullPath(oldMount))
		}
		logf(1, "Sending %s (parent=%v, clones=%d)", sv.Path, instr.Parent, len(instr.CloneSources))
		if err := transport.SendReceive(opts); err != nil {
			return err
		}
		if err := sv.SetReadOnly(transport, false, destRoot); err != nil {
			return fmt.Errorf("clearing read-only on %s: %w", sv.FullPath(destRoot), err)
		}
	}
	return nil
}

func runStaged(transport btrfs.Transport, oldMount, destRoot string, subvols []*btrfs.Subvolume, plan planner.Plan, cfg *cloneconfig.Config, logger *log.Logger, logf func(int, string, ...interface{})) error {
	area, err := staging.New(transport, destRoot, cfg.StagingBase, subvols,
		staging.WithLogger(logger, cfg.Verbosity))
	if err != nil {
		return fmt.Errorf("creating staging area: %w", err)
	}
	defer area.Close()

	for _, instr := range plan {
		sv := instr.Subvolume
		var parentPath string
		if instr.Parent != nil {
			parentPath = instr.Parent.FullPath(oldMount)
		}
		var cloneSources []string
		for _, cs := range instr.CloneSources {
			cloneSources = append(cloneSources, cs.FullPath(oldMount))
		}
		logf(1, "Sending %s (parent=%v, clones=%d, reason=%s)", sv.Path, instr.Parent, len(instr.CloneSources), instr.Reason)
		if err := area.Receive(sv, sv.FullPath(oldMount), parentPath, cloneSources); err != nil {
			return err
		}
	}
	return nil
}
