// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mudlark Contributors

// Package profile loads per-profile configuration.
//
// Each profile is an independently configured connection context with
// its own script module configuration: which entry module to load, the
// script directory to load it from, and which name prefixes are jailed
// into the profile's partition.
package profile

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Profile is one connection context's configuration.
type Profile struct {
	// Name identifies the profile. Required, unique.
	Name string `koanf:"name"`

	// ScriptDir is the module script directory. Required when Entry is
	// set.
	ScriptDir string `koanf:"script-dir"`

	// Entry is the jailed name of the entry module, e.g. "ext.greeter".
	// Empty disables scripting for the profile.
	Entry string `koanf:"entry"`

	// JailedPrefixes is a comma-separated list of name prefixes jailed
	// into the profile's partition.
	JailedPrefixes string `koanf:"jailed-prefixes"`

	// LeakPolicy is "warn" or "deny". Empty means "warn".
	LeakPolicy string `koanf:"leak-policy"`
}

// JailList splits the comma-separated jailed-prefix string, trimming
// whitespace and dropping empty entries.
func (p *Profile) JailList() []string {
	parts := strings.Split(p.JailedPrefixes, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Scripted reports whether the profile has a module configured.
func (p *Profile) Scripted() bool {
	return p.Entry != ""
}

// Validate checks profile constraints.
func (p *Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Entry != "" && p.ScriptDir == "" {
		return fmt.Errorf("profile %q: script-dir is required when entry is set", p.Name)
	}
	switch p.LeakPolicy {
	case "", "warn", "deny":
	default:
		return fmt.Errorf("profile %q: leak-policy must be 'warn' or 'deny', got %q", p.Name, p.LeakPolicy)
	}
	return nil
}

// Config is the top-level profiles file.
type Config struct {
	Profiles []Profile `koanf:"profiles"`
}

// ByName returns the named profile, or nil.
func (c *Config) ByName(name string) *Profile {
	for i := range c.Profiles {
		if c.Profiles[i].Name == name {
			return &c.Profiles[i]
		}
	}
	return nil
}

// Validate checks all profiles and name uniqueness.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Profiles))
	for i := range c.Profiles {
		p := &c.Profiles[i]
		if err := p.Validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate profile name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Load reads profile configuration from a YAML file, with optional
// command-line flag overrides applied on top.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, oops.In("profile").
			With("path", path).
			Hint("failed to read profiles file").
			Wrap(err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.In("profile").
				Hint("failed to apply flag overrides").
				Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.In("profile").
			With("path", path).
			Hint("failed to decode profiles").
			Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, oops.In("profile").With("path", path).Wrap(err)
	}
	return &cfg, nil
}
