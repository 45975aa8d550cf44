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

// Package cmd implements the btrfsclone command-line front end: flag and
// config-file binding, and dispatch into pkg/clone.
package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/btrfsclone/btrfsclone/pkg/cloneconfig"
	"github.com/btrfsclone/btrfsclone/pkg/planner"
)

var (
	v         = viper.New()
	envPrefix = "BTRFSCLONE"
	cfgFile   string
	conf      = cloneconfig.Default()
	logger    = log.New(os.Stderr, "", log.LstdFlags)
)

func logLevel(level int, format string, args ...interface{}) {
	if conf.Verbosity >= level {
		logger.Printf(format, args...)
	}
}

// Execute runs the root command, printing a single diagnostic line and
// exiting non-zero on any unrecovered error.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func NewRootCommand(version string) *cobra.Command {
	var strategy string

	rootCommand := &cobra.Command{
		Use:               "btrfsclone [flags] <old> <new>",
		Short:             "Replicate a btrfs file system's subvolumes onto another, already-mounted, file system",
		Args:              cobra.ExactArgs(2),
		SilenceErrors:     true,
		SilenceUsage:      true,
		Version:           version,
		PersistentPreRunE: initConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf.Strategy = planner.Name(strategy)
			if err := conf.Validate(); err != nil {
				return err
			}
			return runClone(args[0], args[1])
		},
	}

	rootCommand.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file")
	rootCommand.PersistentFlags().CountVarP(&conf.Verbosity, "verbose", "v", "verbosity level (can be used multiple times)")
	rootCommand.PersistentFlags().StringVarP(&conf.BtrfsBinary, "btrfs", "B", conf.BtrfsBinary, "path to the btrfs binary")
	rootCommand.PersistentFlags().BoolVarP(&conf.Force, "force", "f", conf.Force, "proceed past failed precondition checks after a warning delay")
	rootCommand.PersistentFlags().BoolVarP(&conf.DryRun, "dry-run", "n", conf.DryRun, "log the commands that would run without executing mutating ones")
	rootCommand.PersistentFlags().StringVarP(&strategy, "strategy", "s", string(conf.Strategy), "replication strategy: parent, snapshot, chronological, or generation")
	rootCommand.PersistentFlags().StringVar(&conf.StagingBase, "staging-base", conf.StagingBase, "fixed name for the staging directory instead of a random one")
	rootCommand.PersistentFlags().BoolVarP(&conf.Toplevel, "toplevel", "t", conf.Toplevel, "promote the received top-level snapshot's contents into the destination mount")
	rootCommand.PersistentFlags().BoolVar(&conf.NoUnshare, "no-unshare", conf.NoUnshare, "do not re-exec in a private mount namespace before mounting")
	rootCommand.PersistentFlags().BoolVar(&conf.RestrictToGoodCandidates, "good-candidates-only", conf.RestrictToGoodCandidates, "restrict the generation strategy's clone sources to its chosen parent")

	rootCommand.AddCommand(NewPlanCommand())

	return rootCommand
}

func initConfig(cmd *cobra.Command, args []string) error {
	v.BindPFlag("verbosity", cmd.PersistentFlags().Lookup("verbose"))
	v.BindPFlag("btrfs_binary", cmd.PersistentFlags().Lookup("btrfs"))

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		cfgdir, err := os.UserConfigDir()
		cobra.CheckErr(err)
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(cfgdir, "btrfsclone"))
		v.AddConfigPath("/etc/btrfsclone")
		v.SetConfigType("toml")
		v.SetConfigName("btrfsclone.toml")
	}

	if err := v.ReadInConfig(); err == nil {
		if err := v.Unmarshal(conf, viper.DecodeHook(cloneconfig.DurationHookFunc())); err != nil {
			return err
		}
		logLevel(1, "Using config file: %s", v.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed && v.IsSet(f.Name) {
			cmd.PersistentFlags().Set(f.Name, v.GetString(f.Name))
		}
	})

	logLevel(3, "Rendered config: %+v", conf)
	return nil
}
