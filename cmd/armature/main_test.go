package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "armature.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: DEBUG
plugin_roots:
  - /opt/plugins
  - ./local
order_db: /var/lib/armature/orders.db
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, []string{"/opt/plugins", "./local"}, cfg.PluginRoots)
	assert.Equal(t, "/var/lib/armature/orders.db", cfg.OrderDB)
}

func TestLoadConfigRejectsBadYAML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "armature.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plugin_roots: [unclosed"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestDoctorValidManifests(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pluginDir := filepath.Join(root, "alpha")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "manifest.yaml"), []byte(`
name: alpha
ref: builtin/alpha
protocol: 1
description: A test plugin
`), 0o644))

	cfg := &Config{PluginRoots: []string{root}, OrderDB: "orders.db"}
	result := NewDoctor(cfg).Validate()
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestDoctorReportsInvalidManifest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pluginDir := filepath.Join(root, "bad")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "manifest.yaml"),
		[]byte("name: BAD NAME\nref: x\nprotocol: 1\n"), 0o644))

	cfg := &Config{PluginRoots: []string{root}, OrderDB: "orders.db"}
	result := NewDoctor(cfg).Validate()
	assert.False(t, result.Valid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "manifest", result.Errors[0].Category)
}

func TestDoctorWarnings(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	pluginDir := filepath.Join(root, "quiet")
	require.NoError(t, os.MkdirAll(pluginDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "manifest.yaml"),
		[]byte("name: quiet\nref: builtin/quiet\nprotocol: 1\n"), 0o644))

	cfg := &Config{PluginRoots: []string{root}}
	result := NewDoctor(cfg).Validate()
	assert.True(t, result.Valid, "warnings alone do not fail validation")

	var fields []string
	for _, w := range result.Warnings {
		fields = append(fields, w.Field)
	}
	assert.Contains(t, fields, "order_db")
	assert.Contains(t, fields, "quiet.description")
}

func TestDoctorMissingRootIsWarning(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		PluginRoots: []string{filepath.Join(t.TempDir(), "nope")},
		OrderDB:     "orders.db",
	}
	result := NewDoctor(cfg).Validate()
	assert.True(t, result.Valid)
	assert.NotEmpty(t, result.Warnings)
}

func TestDoctorDuplicatePluginIsWarning(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, dir := range []string{"one", "two"} {
		pluginDir := filepath.Join(root, dir)
		require.NoError(t, os.MkdirAll(pluginDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "manifest.yaml"),
			[]byte("name: twin\nref: builtin/twin\nprotocol: 1\ndescription: d\n"), 0o644))
	}

	cfg := &Config{PluginRoots: []string{root}, OrderDB: "orders.db"}
	result := NewDoctor(cfg).Validate()
	assert.True(t, result.Valid)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "duplicate")
}

func TestSplitOrderArgs(t *testing.T) {
	t.Parallel()

	positional, flags := splitOrderArgs([]string{"my_hook", "a,b", "--config", "x.yaml"})
	assert.Equal(t, []string{"my_hook", "a,b"}, positional)
	assert.Equal(t, []string{"--config", "x.yaml"}, flags)

	positional, flags = splitOrderArgs([]string{"--config=x.yaml", "my_hook"})
	assert.Equal(t, []string{"my_hook"}, positional)
	assert.Equal(t, []string{"--config=x.yaml"}, flags)
}
