package plugin

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattjoyce/armature/internal/log"
)

// Available is one discovered (plugin name, loadable reference) pair.
type Available struct {
	Name     string
	Ref      string
	Path     string
	Manifest *Manifest
}

// IterAvailable scans plugin roots for manifest.yaml files and returns
// the valid plugins found, in walk order. Roots are processed in input
// order; duplicate plugin names keep the first discovered manifest.
// Invalid manifests are logged and skipped.
func IterAvailable(roots []string) ([]Available, error) {
	logger := log.WithComponent("discovery")

	absRoots, err := normalizeRoots(roots)
	if err != nil {
		return nil, err
	}

	var found []Available
	seen := make(map[string]string) // plugin name -> manifest path
	for _, root := range absRoots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() || d.Name() != manifestFilename {
				return nil
			}

			data, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("failed to read manifest", "path", path, "error", err)
				return nil
			}
			m, err := ParseManifest(data)
			if err != nil {
				logger.Warn("skipping plugin", "path", path, "error", err)
				return nil
			}
			if keptPath, dup := seen[m.Name]; dup {
				logger.Warn("duplicate plugin ignored (keeping first discovered)",
					"plugin", m.Name, "ignored_path", path, "kept_path", keptPath)
				return nil
			}
			seen[m.Name] = path
			found = append(found, Available{
				Name:     m.Name,
				Ref:      m.Ref,
				Path:     filepath.Dir(path),
				Manifest: m,
			})
			logger.Info("discovered plugin", "plugin", m.Name, "ref", m.Ref, "path", filepath.Dir(path))
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan plugin root %s: %w", root, err)
		}
	}
	return found, nil
}

// Discover enumerates the plugin roots, resolves each discovered
// reference through resolver, and registers every resulting provider
// with reg. One failing plugin never aborts the scan: resolution and
// registration errors are collected and returned alongside the count of
// successfully registered plugins.
func Discover(roots []string, resolver Resolver, reg *Registry) (int, []error) {
	logger := log.WithComponent("discovery")

	available, err := IterAvailable(roots)
	if err != nil {
		return 0, []error{err}
	}

	var errs []error
	count := 0
	for _, av := range available {
		if reg.IsRegistered(av.Name) || reg.IsBlocked(av.Name) {
			continue
		}

		provider, err := resolver.Resolve(av.Ref)
		if err != nil {
			errs = append(errs, &ImportError{Plugin: av.Name, Ref: av.Ref, Err: err})
			logger.Warn("failed to resolve plugin", "plugin", av.Name, "ref", av.Ref, "error", err)
			continue
		}

		name, err := reg.Register(provider, av.Name)
		if err != nil {
			errs = append(errs, err)
			logger.Warn("failed to register plugin", "plugin", av.Name, "error", err)
			continue
		}
		if name != "" {
			count++
		}
	}
	return count, errs
}

// normalizeRoots resolves, stats, and dedupes plugin roots.
func normalizeRoots(roots []string) ([]string, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one plugin root is required")
	}

	absRoots := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve plugin root %q: %w", root, err)
		}
		info, err := os.Stat(absRoot)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("plugin root does not exist: %s", absRoot)
			}
			return nil, fmt.Errorf("failed to stat plugin root %s: %w", absRoot, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("plugin root is not a directory: %s", absRoot)
		}
		if _, ok := seen[absRoot]; ok {
			continue
		}
		seen[absRoot] = struct{}{}
		absRoots = append(absRoots, absRoot)
	}
	if len(absRoots) == 0 {
		return nil, fmt.Errorf("at least one plugin root is required")
	}
	return absRoots, nil
}
