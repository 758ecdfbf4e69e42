// Package inspect renders the state of a plugin registry: which plugins
// are registered, which hooks exist, and the effective dispatch order of
// every implementation chain.
package inspect

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mattjoyce/armature/plugin"
)

// ImplInfo is one implementation's position in a hook's call order.
type ImplInfo struct {
	Plugin   string `json:"plugin"`
	Wrapper  bool   `json:"wrapper,omitempty"`
	TryFirst bool   `json:"tryfirst,omitempty"`
	TryLast  bool   `json:"trylast,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// HookInfo describes one hook caller.
type HookInfo struct {
	Name        string     `json:"name"`
	HasSpec     bool       `json:"has_spec"`
	ArgNames    []string   `json:"arg_names,omitempty"`
	FirstResult bool       `json:"firstresult,omitempty"`
	Historic    bool       `json:"historic,omitempty"`
	CallOrder   []ImplInfo `json:"call_order"`
	Override    []string   `json:"order_override,omitempty"`
}

// Report is the structured JSON representation of registry state.
type Report struct {
	Project     string     `json:"project"`
	GeneratedAt time.Time  `json:"generated_at"`
	Plugins     []string   `json:"plugins"`
	Hooks       []HookInfo `json:"hooks"`
	Pending     []string   `json:"pending,omitempty"`
}

// BuildReport gathers registry state into a Report. Hook call orders are
// listed in dispatch order (the reverse of stored order).
func BuildReport(reg *plugin.Registry) *Report {
	report := &Report{
		Project:     reg.Project(),
		GeneratedAt: time.Now().UTC(),
		Plugins:     reg.PluginNames(),
	}

	for _, name := range reg.HookNames() {
		hc := reg.Hook(name)
		info := HookInfo{
			Name:     name,
			HasSpec:  hc.HasSpec(),
			Override: hc.CallOrder(),
		}
		if spec := hc.Spec(); spec != nil {
			info.ArgNames = spec.ArgNames()
			info.FirstResult = spec.FirstResult()
			info.Historic = spec.Historic()
		} else {
			report.Pending = append(report.Pending, name)
		}

		impls := hc.Implementations()
		for i := len(impls) - 1; i >= 0; i-- {
			im := impls[i]
			info.CallOrder = append(info.CallOrder, ImplInfo{
				Plugin:   im.Plugin(),
				Wrapper:  im.IsWrapper(),
				TryFirst: im.TryFirst(),
				TryLast:  im.TryLast(),
				Optional: im.Optional(),
				Enabled:  im.Enabled(),
			})
		}
		report.Hooks = append(report.Hooks, info)
	}
	return report
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

// Render returns a terminal-friendly report.
func (r *Report) Render() string {
	var out strings.Builder
	fmt.Fprintf(&out, "Registry Report\n")
	fmt.Fprintf(&out, "Project     : %s\n", r.Project)
	fmt.Fprintf(&out, "Generated   : %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&out, "Plugins     : %d\n", len(r.Plugins))
	fmt.Fprintf(&out, "Hooks       : %d\n", len(r.Hooks))
	fmt.Fprintf(&out, "\n")

	for _, p := range r.Plugins {
		fmt.Fprintf(&out, "plugin %s\n", p)
	}
	if len(r.Plugins) > 0 {
		fmt.Fprintf(&out, "\n")
	}

	for _, h := range r.Hooks {
		fmt.Fprintf(&out, "hook %s\n", h.Name)
		if h.HasSpec {
			var modes []string
			if h.FirstResult {
				modes = append(modes, "firstresult")
			}
			if h.Historic {
				modes = append(modes, "historic")
			}
			mode := ""
			if len(modes) > 0 {
				mode = " (" + strings.Join(modes, ", ") + ")"
			}
			fmt.Fprintf(&out, "    spec       : args=%v%s\n", h.ArgNames, mode)
		} else {
			fmt.Fprintf(&out, "    spec       : <pending>\n")
		}
		if len(h.Override) > 0 {
			fmt.Fprintf(&out, "    override   : %s\n", strings.Join(h.Override, ", "))
		}
		if len(h.CallOrder) == 0 {
			fmt.Fprintf(&out, "    call order : <no implementations>\n")
			continue
		}
		fmt.Fprintf(&out, "    call order :\n")
		for i, im := range h.CallOrder {
			var flags []string
			if im.Wrapper {
				flags = append(flags, "wrapper")
			}
			if im.TryFirst {
				flags = append(flags, "tryfirst")
			}
			if im.TryLast {
				flags = append(flags, "trylast")
			}
			if im.Optional {
				flags = append(flags, "optional")
			}
			if !im.Enabled {
				flags = append(flags, "disabled")
			}
			suffix := ""
			if len(flags) > 0 {
				suffix = " [" + strings.Join(flags, ", ") + "]"
			}
			fmt.Fprintf(&out, "      %2d. %s%s\n", i+1, im.Plugin, suffix)
		}
	}

	if len(r.Pending) > 0 {
		fmt.Fprintf(&out, "\n")
		fmt.Fprintf(&out, "pending hooks (implementations without a specification):\n")
		for _, name := range r.Pending {
			fmt.Fprintf(&out, "  - %s\n", name)
		}
	}
	return out.String()
}
