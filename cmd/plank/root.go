// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Plank Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/gradyzhuo/plank/internal/app"
	"github.com/gradyzhuo/plank/internal/config"
	"github.com/gradyzhuo/plank/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the plank CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plank",
		Short: "Plank - compose applications from plugins and services",
		Long: `Plank loads a layered configuration document, discovers plugins
and wires the services they contribute into a running application.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", xdg.ConfigFile(), "configuration document (toml, yaml or json)")

	cmd.AddCommand(NewLaunchCmd())
	cmd.AddCommand(NewProgramsCmd())
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewPluginsCmd())

	return cmd
}

// loadProgram loads the configuration document into rt and selects program.
func loadProgram(rt *app.Runtime, program string) (*config.Configuration, error) {
	pool, err := rt.LoadPool(configFile)
	if err != nil {
		return nil, err
	}
	return rt.Config.FromProgram(pool, program)
}
