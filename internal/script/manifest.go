package script

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// HostAPIVersion is the version of the host capability surface offered
// to modules. Manifests may constrain it with host-api.
const HostAPIVersion = "1.0.0"

// ManifestFile is the optional manifest filename in a script directory.
const ManifestFile = "module.yaml"

// Manifest represents a module.yaml file.
type Manifest struct {
	Name        string `yaml:"name" json:"name"`
	Version     string `yaml:"version" json:"version"`
	Entry       string `yaml:"entry,omitempty" json:"entry,omitempty"`
	HostAPI     string `yaml:"host-api,omitempty" json:"host-api,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// maxNameLength is the maximum allowed length for module names.
const maxNameLength = 64

// namePattern validates module names: must start with a lowercase
// letter, followed by lowercase letters, digits, or hyphens. Cannot end
// with a hyphen.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a module.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// LoadManifest reads the manifest from a script directory. Returns
// (nil, nil) when the directory has no manifest.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Clean(filepath.Join(dir, ManifestFile)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return ParseManifest(data)
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not valid semver: %w", m.Version, err)
	}

	if m.HostAPI != "" {
		if _, err := semver.NewConstraint(m.HostAPI); err != nil {
			return fmt.Errorf("host-api %q is not a valid constraint: %w", m.HostAPI, err)
		}
	}

	return nil
}

// CheckHostAPI verifies the manifest's host-api constraint against the
// host's API version. A manifest without a constraint accepts any host.
func (m *Manifest) CheckHostAPI(hostVersion string) error {
	if m.HostAPI == "" {
		return nil
	}

	c, err := semver.NewConstraint(m.HostAPI)
	if err != nil {
		return fmt.Errorf("host-api %q is not a valid constraint: %w", m.HostAPI, err)
	}
	v, err := semver.NewVersion(hostVersion)
	if err != nil {
		return fmt.Errorf("host version %q is not valid semver: %w", hostVersion, err)
	}

	if !c.Check(v) {
		return fmt.Errorf("module %q requires host-api %q, host provides %s", m.Name, m.HostAPI, hostVersion)
	}
	return nil
}
