package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mattjoyce/armature/plugin"
)

// DoctorResult holds the outcome of a validation run.
type DoctorResult struct {
	Valid    bool          `json:"valid"`
	Errors   []DoctorIssue `json:"errors,omitempty"`
	Warnings []DoctorIssue `json:"warnings,omitempty"`
}

// DoctorIssue describes a single validation error or warning.
type DoctorIssue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates plugin roots and discovered manifests.
type Doctor struct {
	cfg *Config
}

// NewDoctor creates a Doctor from a loaded config.
func NewDoctor(cfg *Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *DoctorResult {
	r := &DoctorResult{Valid: true}

	d.validateRoots(r)
	d.validateManifests(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *DoctorResult, category, field, msg string) {
	r.Errors = append(r.Errors, DoctorIssue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *DoctorResult, category, field, msg string) {
	r.Warnings = append(r.Warnings, DoctorIssue{Category: category, Field: field, Message: msg})
}

// validateRoots checks that plugin roots are configured.
func (d *Doctor) validateRoots(r *DoctorResult) {
	if len(d.cfg.PluginRoots) == 0 {
		d.addError(r, "config", "plugin_roots", "at least one plugin root is required")
	}
	if d.cfg.OrderDB == "" {
		d.addWarning(r, "config", "order_db", "order_db not set, call-order persistence disabled")
	}
}

// validateManifests walks the plugin roots and parses every manifest,
// reporting parse failures that discovery would skip over.
func (d *Doctor) validateManifests(r *DoctorResult) {
	seen := make(map[string]string) // plugin name -> manifest path
	count := 0
	for _, root := range d.cfg.PluginRoots {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			d.addWarning(r, "config", "plugin_roots",
				fmt.Sprintf("plugin root %s does not exist", root))
			continue
		}
		err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if entry.IsDir() || entry.Name() != "manifest.yaml" {
				return nil
			}
			count++
			data, err := os.ReadFile(path)
			if err != nil {
				d.addError(r, "manifest", path, err.Error())
				return nil
			}
			m, err := plugin.ParseManifest(data)
			if err != nil {
				d.addError(r, "manifest", path, err.Error())
				return nil
			}
			if kept, dup := seen[m.Name]; dup {
				d.addWarning(r, "manifest", path,
					fmt.Sprintf("duplicate plugin %q, first discovered at %s wins", m.Name, kept))
				return nil
			}
			seen[m.Name] = path
			if m.Description == "" {
				d.addWarning(r, "manifest", fmt.Sprintf("%s.description", m.Name),
					fmt.Sprintf("plugin %q has no description", m.Name))
			}
			return nil
		})
		if err != nil {
			d.addError(r, "manifest", root, err.Error())
		}
	}
	if count == 0 {
		d.addWarning(r, "manifest", "", "no plugin manifests found under configured roots")
	}
}
