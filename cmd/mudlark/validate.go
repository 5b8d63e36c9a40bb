// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mudlark-mud/mudlark/internal/profile"
	"github.com/mudlark-mud/mudlark/internal/script"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate profile configuration and module manifests",
		Long: `Validate the profiles file and, for each scripted profile, the module
manifest in its script directory (when present) against the manifest
JSON Schema.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := profile.Load(profilesFile, nil)
			if err != nil {
				return fmt.Errorf("profiles file invalid: %w", err)
			}

			failures := 0
			for i := range profiles.Profiles {
				p := &profiles.Profiles[i]
				if !p.Scripted() {
					continue
				}
				if err := validateManifest(p.ScriptDir); err != nil {
					failures++
					cmd.PrintErrf("profile %s: %s\n", p.Name, script.FormatSchemaError(err))
					continue
				}
				cmd.Printf("profile %s: ok\n", p.Name)
			}

			if failures > 0 {
				return fmt.Errorf("%d profile(s) failed validation", failures)
			}
			return nil
		},
	}
}

// validateManifest checks a script directory's optional module.yaml
// against both the JSON Schema and the manifest constraints.
func validateManifest(dir string) error {
	data, err := os.ReadFile(filepath.Clean(filepath.Join(dir, script.ManifestFile)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := script.ValidateSchema(data); err != nil {
		return err
	}
	m, err := script.ParseManifest(data)
	if err != nil {
		return err
	}
	return m.CheckHostAPI(script.HostAPIVersion)
}
