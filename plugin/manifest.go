package plugin

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// SupportedProtocol is the manifest protocol version this engine
	// understands.
	SupportedProtocol = 1

	manifestFilename = "manifest.yaml"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Manifest describes one discoverable plugin: its identity and the
// loadable reference a Resolver turns into a Provider.
type Manifest struct {
	Name        string   `yaml:"name"`
	Ref         string   `yaml:"ref"`
	Protocol    int      `yaml:"protocol"`
	Version     string   `yaml:"version,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Hooks       []string `yaml:"hooks,omitempty"`
}

// ParseManifest decodes and validates manifest YAML.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// Validate checks required manifest fields.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(m.Name) {
		return fmt.Errorf("invalid plugin name %q (lowercase letters, digits, '-' and '_' only)", m.Name)
	}
	if strings.TrimSpace(m.Ref) == "" {
		return fmt.Errorf("ref is required")
	}
	if m.Protocol != SupportedProtocol {
		return fmt.Errorf("unsupported protocol version %d (supported: %d)", m.Protocol, SupportedProtocol)
	}
	for _, h := range m.Hooks {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("hooks list contains an empty name")
		}
	}
	return nil
}
