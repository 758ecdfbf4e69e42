package inspect

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/armature/hook"
	"github.com/mattjoyce/armature/plugin"
)

type reportProvider struct {
	impls []*hook.Implementation
}

func (p *reportProvider) HookImplementations() []*hook.Implementation { return p.impls }

func buildTestRegistry(t *testing.T) *plugin.Registry {
	t.Helper()

	reg := plugin.NewRegistry("studio")
	spec, err := hook.NewSpec("on_save", hook.SpecOptions{ArgNames: []string{"path"}})
	require.NoError(t, err)
	require.NoError(t, reg.AddSpecs([]*hook.Spec{spec}))

	for _, name := range []string{"alpha", "beta"} {
		plugName := name
		im := hook.NewImplementation(func(args []any) (any, error) {
			return plugName, nil
		}, hook.ImplementationOptions{SpecName: "on_save"})
		_, err := reg.Register(&reportProvider{impls: []*hook.Implementation{im}}, plugName)
		require.NoError(t, err)
	}

	// An implementation for a hook nobody specified.
	stray := hook.NewImplementation(func(args []any) (any, error) { return nil, nil },
		hook.ImplementationOptions{SpecName: "mystery_hook", Optional: true})
	_, err = reg.Register(&reportProvider{impls: []*hook.Implementation{stray}}, "strayling")
	require.NoError(t, err)

	return reg
}

func TestBuildReport(t *testing.T) {
	t.Parallel()

	reg := buildTestRegistry(t)
	report := BuildReport(reg)

	assert.Equal(t, "studio", report.Project)
	assert.Equal(t, []string{"alpha", "beta", "strayling"}, report.Plugins)
	assert.Equal(t, []string{"mystery_hook"}, report.Pending)
	require.Len(t, report.Hooks, 2)

	var onSave *HookInfo
	for i := range report.Hooks {
		if report.Hooks[i].Name == "on_save" {
			onSave = &report.Hooks[i]
		}
	}
	require.NotNil(t, onSave)
	assert.True(t, onSave.HasSpec)
	assert.Equal(t, []string{"path"}, onSave.ArgNames)

	// Dispatch order, not registration order.
	require.Len(t, onSave.CallOrder, 2)
	assert.Equal(t, "beta", onSave.CallOrder[0].Plugin)
	assert.Equal(t, "alpha", onSave.CallOrder[1].Plugin)
	for _, im := range onSave.CallOrder {
		assert.True(t, im.Enabled)
	}
}

func TestBuildReportShowsOverrideAndDisabled(t *testing.T) {
	t.Parallel()

	reg := buildTestRegistry(t)
	require.NoError(t, reg.Hook("on_save").SetCallOrder([]string{"alpha", "beta"}))
	require.NoError(t, reg.DisablePlugin("beta"))

	report := BuildReport(reg)
	var onSave *HookInfo
	for i := range report.Hooks {
		if report.Hooks[i].Name == "on_save" {
			onSave = &report.Hooks[i]
		}
	}
	require.NotNil(t, onSave)
	assert.Equal(t, []string{"alpha", "beta"}, onSave.Override)
	assert.Equal(t, "alpha", onSave.CallOrder[0].Plugin)
	assert.False(t, onSave.CallOrder[1].Enabled)
}

func TestReportJSON(t *testing.T) {
	t.Parallel()

	report := BuildReport(buildTestRegistry(t))
	out, err := report.JSON()
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, report.Project, decoded.Project)
	assert.Equal(t, report.Plugins, decoded.Plugins)
}

func TestReportRender(t *testing.T) {
	t.Parallel()

	reg := buildTestRegistry(t)
	require.NoError(t, reg.DisablePlugin("alpha"))

	out := BuildReport(reg).Render()
	assert.Contains(t, out, "Project     : studio")
	assert.Contains(t, out, "hook on_save")
	assert.Contains(t, out, "spec       : <pending>")
	assert.Contains(t, out, "[disabled]")
	assert.Contains(t, out, "pending hooks")
}
