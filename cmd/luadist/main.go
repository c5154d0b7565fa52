/*
   Copyright 2025 The DIRPX Authors

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Command luadist is the package-manager front-end: a thin layer that
// parses arguments, builds an operation context, and maps operation
// errors to their stable exit codes.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"dirpx.dev/luadist/distcore/config"
	"dirpx.dev/luadist/distcore/dist"
	"dirpx.dev/luadist/distcore/errors"
	"dirpx.dev/luadist/distcore/rockspec"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(errors.ExitCode(err))
	}
}

type cliFlags struct {
	root    string
	debug   bool
	report  bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:           "luadist",
		Short:         "Package manager for binary and source rocks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.root, "root", "r", "", "deploy root directory (default \"_install\")")
	pf.BoolVar(&flags.debug, "debug", false, "retain staging directories and enable debug output")
	pf.BoolVar(&flags.report, "report", false, "write a markdown activity report per operation")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose logging")

	root.AddCommand(
		newInstallCmd(flags),
		newMakeCmd(flags),
		newRemoveCmd(flags),
		newListCmd(flags),
		newFetchCmd(flags),
		newPackCmd(flags),
		newStaticCmd(flags),
		newRockspecCmd(flags),
	)
	return root
}

// newContext builds the operation context from configuration and flag
// overrides.
func newContext(flags *cliFlags) (*dist.Context, error) {
	cfg, err := config.Load(flags.root)
	if err != nil {
		return nil, err
	}
	if flags.debug {
		cfg.Debug = true
	}
	if flags.report {
		cfg.Report = true
	}

	logger := log.New(os.Stderr)
	if flags.verbose || cfg.Debug {
		logger.SetLevel(log.DebugLevel)
	}
	return dist.New(cfg, logger), nil
}

func newInstallCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "install <package>...",
		Short: "Resolve and install packages with their dependencies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			return c.Install(cmd.Context(), args)
		},
	}
}

func newMakeCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "make [dir]",
		Short: "Build and install the rockspec in the working directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			return c.Make(cmd.Context(), dir)
		},
	}
}

func newRemoveCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <package>...",
		Short: "Uninstall packages and delete their files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			return c.Remove(cmd.Context(), args)
		},
	}
}

func newListCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed packages in install order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			pkgs, err := c.List()
			if err != nil {
				return err
			}
			for _, p := range pkgs {
				fmt.Fprintln(cmd.OutOrStdout(), p.ID())
			}
			return nil
		},
	}
}

func newFetchCmd(flags *cliFlags) *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "fetch <package>...",
		Short: "Download package sources without installing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			target := dest
			if target == "" {
				target = c.Config().TempDir
			}
			return c.Fetch(cmd.Context(), args, target)
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", "", "destination directory (default: temp dir)")
	return cmd
}

func newPackCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pack <package>... <dest>",
		Short: "Export installed packages as redistributable binary rocks",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			refs, dest := args[:len(args)-1], args[len(args)-1]
			return c.Pack(refs, dest)
		},
	}
}

func newStaticCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "static <package>... <dest>",
		Short: "Assemble a statically linked bundle of packages",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			refs, dest := args[:len(args)-1], args[len(args)-1]
			return c.Static(cmd.Context(), refs, dest)
		},
	}
}

func newRockspecCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rockspec <package>",
		Short: "Print the rockspec of the best manifest match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newContext(flags)
			if err != nil {
				return err
			}
			spec, err := c.GetRockspec(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			data, err := rockspec.Encode(spec)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
