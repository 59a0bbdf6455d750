// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gradyzhuo/plank/internal/app"
	"github.com/gradyzhuo/plank/internal/config"
)

// NewProgramsCmd creates the programs subcommand.
func NewProgramsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "programs",
		Short: "List the programs of the configuration document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := app.NewRuntime().LoadPool(configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			for _, name := range pool.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name) //nolint:errcheck // best-effort CLI output
			}
			return nil
		},
	}
}

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect resolved configuration",
	}
	cmd.AddCommand(newConfigGetCmd())
	return cmd
}

func newConfigGetCmd() *cobra.Command {
	var program string

	cmd := &cobra.Command{
		Use:   "get <keyspace>",
		Short: "Print the resolved value of a keyspace",
		Long: `Print the value stored under a dotted keyspace such as app.name or
path.workspace, with templates resolved. Tables are printed as YAML.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadProgram(app.NewRuntime(), program)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			v, err := c.Get(args[0], nil)
			if err != nil {
				return err
			}
			out, err := formatValue(v)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out) //nolint:errcheck // best-effort CLI output
			return nil
		},
	}

	cmd.Flags().StringVar(&program, "program", config.BaseProgram, "program to read")
	return cmd
}

// formatValue renders scalars as text and structured values as YAML.
func formatValue(v any) (string, error) {
	switch v.(type) {
	case map[string]any, []any, []string:
		b, err := yaml.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to format value: %w", err)
		}
		return strings.TrimRight(string(b), "\n"), nil
	case nil:
		return "", nil
	default:
		return fmt.Sprint(v), nil
	}
}
