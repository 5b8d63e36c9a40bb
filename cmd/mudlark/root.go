// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var profilesFile string

// NewRootCmd creates the root command for the mudlark CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mudlark",
		Short: "Mudlark - a scriptable MUD client",
		Long: `Mudlark is a MUD client whose behavior is extended per profile by
script modules loaded into isolated partitions, reloadable without
restarting the client.`,
	}

	cmd.PersistentFlags().StringVar(&profilesFile, "profiles", "profiles.yaml", "profiles config file path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewValidateCmd())

	return cmd
}
