// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gradyzhuo/plank/internal/app"
	"github.com/gradyzhuo/plank/internal/config"
	"github.com/gradyzhuo/plank/internal/plugin"
)

// NewPluginsCmd creates the plugins subcommand.
func NewPluginsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect plugins",
	}
	cmd.AddCommand(newPluginsListCmd())
	return cmd
}

func newPluginsListCmd() *cobra.Command {
	var (
		program  string
		prefixes []string
		dirs     []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discoverable plugins without loading them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt := app.NewRuntime()
			c, err := loadProgram(rt, program)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if len(prefixes) == 0 {
				prefixes = c.Plugin().Prefixes()
			}

			m := rt.NewPluginManager(c, plugin.WithSearchPaths(dirs...))
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tVERSION\tPACKAGE\tDIR") //nolint:errcheck // flushed below
			for _, prefix := range prefixes {
				plugins, err := m.Discover(cmd.Context(), prefix)
				if err != nil {
					return fmt.Errorf("failed to discover plugins: %w", err)
				}
				for _, p := range plugins {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name(), p.Version(), p.Package(), p.Dir()) //nolint:errcheck // flushed below
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&program, "program", config.BaseProgram, "program to read")
	cmd.Flags().StringSliceVar(&prefixes, "prefix", nil, "discovery prefixes (default: plugin.prefix)")
	cmd.Flags().StringSliceVar(&dirs, "plugins-dir", nil, "extra plugin discovery roots")
	return cmd
}
