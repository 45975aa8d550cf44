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

// Package cloneconfig holds the immutable configuration for one clone run.
// Unlike the process-global config pattern used elsewhere in this code
// base, Config is built once by the CLI layer and threaded explicitly
// through every constructor: nothing in pkg/clone, pkg/planner,
// pkg/staging, or pkg/topclone reaches for a package-level variable.
package cloneconfig

import (
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/btrfsclone/btrfsclone/pkg/planner"
)

// Duration is a time.Duration that can be decoded from a string via
// mapstructure, following the pattern used for TOML-sourced durations
// elsewhere in this tree.
type Duration time.Duration

func (d *Duration) Type() string { return "duration" }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) Set(s string) error {
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// DurationHookFunc decodes a string into a Duration when mapstructure
// populates a Config from a config file or environment.
func DurationHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		if t != reflect.TypeOf(Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// Config is the fully-resolved set of options for one clone invocation.
type Config struct {
	// Strategy selects one of the four replication strategies.
	Strategy planner.Name `mapstructure:"strategy" toml:"strategy,omitempty"`
	// BtrfsBinary is the name or path of the btrfs executable.
	BtrfsBinary string `mapstructure:"btrfs_binary" toml:"btrfs_binary,omitempty"`
	// Verbosity controls both diagnostic logging and how many "-v" flags
	// are passed to send/receive.
	Verbosity int `mapstructure:"verbosity" toml:"verbosity,omitempty"`
	// Force skips the precondition checks (after a warning delay) instead
	// of aborting when they fail.
	Force bool `mapstructure:"force" toml:"force,omitempty"`
	// DryRun logs the commands that would run without executing any
	// mutating ones.
	DryRun bool `mapstructure:"dry_run" toml:"dry_run,omitempty"`
	// StagingBase overrides the random staging directory name with a
	// fixed one.
	StagingBase string `mapstructure:"staging_base" toml:"staging_base,omitempty"`
	// Toplevel, when true, promotes the received top-level snapshot's
	// contents into the destination mount itself instead of leaving them
	// nested under the snapshot.
	Toplevel bool `mapstructure:"toplevel" toml:"toplevel,omitempty"`
	// NoUnshare records that the source and destination top-level
	// subvolumes are reachable without a private mount namespace. This
	// module never re-executes itself or unshares a namespace; the setting
	// only changes a log line.
	NoUnshare bool `mapstructure:"no_unshare" toml:"no_unshare,omitempty"`
	// RestrictToGoodCandidates narrows the generation strategy's
	// clone-source set to only the chosen parent instead of every
	// scored candidate. Defaults to false (the fully-populated set).
	RestrictToGoodCandidates bool `mapstructure:"good_candidates_only" toml:"good_candidates_only,omitempty"`
	// PreconditionDelay is how long to wait, after warning, before
	// proceeding past a failed precondition check under Force.
	PreconditionDelay Duration `mapstructure:"precondition_delay" toml:"precondition_delay,omitempty"`
}

// Default returns a Config with every option at its documented default.
func Default() *Config {
	return &Config{
		Strategy:          planner.NameSnapshot,
		BtrfsBinary:       "btrfs",
		Toplevel:          true,
		PreconditionDelay: Duration(10 * time.Second),
	}
}

// Validate checks that the resolved configuration is internally
// consistent, returning the first problem found.
func (c *Config) Validate() error {
	if _, err := planner.Lookup(c.Strategy); err != nil {
		return err
	}
	if c.BtrfsBinary == "" {
		return fmt.Errorf("btrfs binary must not be empty")
	}
	if c.PreconditionDelay < 0 {
		return fmt.Errorf("precondition delay must not be negative")
	}
	return nil
}
