package plugin

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/armature/events"
	"github.com/mattjoyce/armature/hook"
	"github.com/mattjoyce/armature/internal/log"
)

// BeforeMonitor observes a dispatch before the multicall loop runs.
type BeforeMonitor func(hookName string, impls []*hook.Implementation, kwargs hook.Args)

// AfterMonitor observes a dispatch outcome. err carries immediate-fatal
// failures (firstresult plugin errors, wrapper teardown errors); deferred
// state lives on res.
type AfterMonitor func(res *hook.Result, err error, hookName string, impls []*hook.Implementation, kwargs hook.Args)

// Option configures a Registry.
type Option func(*Registry)

// WithHub routes lifecycle and dispatch events to hub.
func WithHub(hub *events.Hub) Option {
	return func(r *Registry) { r.hub = hub }
}

// WithRegistryLogger overrides the registry's logger.
func WithRegistryLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// Registry is the hook manager: it owns every hook.Caller, tracks which
// plugin contributed which implementations, and routes all dispatch
// through its monitoring layer.
//
// A Registry is not internally synchronized; hosts embedding it in a
// concurrent program must serialize mutation and dispatch per hook.
type Registry struct {
	project string

	hooks         map[string]*hook.Caller
	providers     map[string]Provider
	pluginCallers map[string][]*hook.Caller
	blocked       map[string]struct{}

	// inner is the monitored dispatch chain. AddMonitor wraps it;
	// execHook adds the always-on event/log layer outside it.
	inner hook.ExecFunc

	hub    *events.Hub
	logger *slog.Logger
}

// NewRegistry creates a registry for the named host project.
func NewRegistry(project string, opts ...Option) *Registry {
	r := &Registry{
		project:       project,
		hooks:         make(map[string]*hook.Caller),
		providers:     make(map[string]Provider),
		pluginCallers: make(map[string][]*hook.Caller),
		blocked:       make(map[string]struct{}),
		inner:         hook.DefaultExec,
		logger:        log.WithComponent("registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Project returns the host project name.
func (r *Registry) Project() string { return r.project }

// Hook returns the caller for name, or nil if no plugin or specification
// has touched it.
func (r *Registry) Hook(name string) *hook.Caller { return r.hooks[name] }

// HookNames returns all known hook names, sorted.
func (r *Registry) HookNames() []string {
	names := make([]string, 0, len(r.hooks))
	for name := range r.hooks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PluginNames returns all registered plugin names, sorted.
func (r *Registry) PluginNames() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Provider returns the registered provider for name, or nil.
func (r *Registry) Provider(name string) Provider { return r.providers[name] }

// Callers returns every hook caller that holds an implementation from
// pluginName.
func (r *Registry) Callers(pluginName string) []*hook.Caller {
	return append([]*hook.Caller(nil), r.pluginCallers[pluginName]...)
}

// IsRegistered reports whether a plugin is registered under name.
func (r *Registry) IsRegistered(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// IsBlocked reports whether name is banned from registering.
func (r *Registry) IsBlocked(name string) bool {
	_, ok := r.blocked[name]
	return ok
}

// Block bans name from registering, unregistering it first if present.
func (r *Registry) Block(name string) {
	r.blocked[name] = struct{}{}
	if r.IsRegistered(name) {
		_ = r.Unregister(name)
	}
	r.publish(events.Event{Type: events.TypePluginBlocked, Plugin: name})
}

// Unblock lifts a ban.
func (r *Registry) Unblock(name string) {
	delete(r.blocked, name)
}

// Register attaches every implementation contributed by p under the
// plugin identity name (derived from p's type when empty). Registration
// is atomic per plugin: if any implementation fails validation, the ones
// already attached are removed again.
//
// A blocked name registers nothing and returns ("", nil).
func (r *Registry) Register(p Provider, name string) (string, error) {
	if name == "" {
		name = CanonicalName(p)
	}
	if r.IsBlocked(name) {
		r.logger.Info("skipping blocked plugin", "plugin", name)
		return "", nil
	}
	if r.IsRegistered(name) {
		return "", &RegistrationError{Plugin: name, Err: fmt.Errorf("plugin name already registered")}
	}

	var callers []*hook.Caller
	for _, im := range p.HookImplementations() {
		im.SetPlugin(name)
		hc := r.caller(im.SpecName())
		if err := hc.AddImplementation(im); err != nil {
			r.removeEverywhere(name)
			return "", &RegistrationError{Plugin: name, Err: err}
		}
		callers = append(callers, hc)
	}

	r.providers[name] = p
	r.pluginCallers[name] = callers
	r.logger.Info("plugin registered", "plugin", name, "hooks", len(callers))
	r.publish(events.Event{Type: events.TypePluginRegistered, Plugin: name})
	return name, nil
}

// Unregister removes the named plugin from every hook chain it joined.
func (r *Registry) Unregister(name string) error {
	if !r.IsRegistered(name) {
		r.logger.Warn("unregister of unknown plugin", "plugin", name)
		return fmt.Errorf("no plugin registered under name %q", name)
	}
	for _, hc := range r.pluginCallers[name] {
		if err := hc.RemovePlugin(name); err != nil {
			return err
		}
	}
	delete(r.providers, name)
	delete(r.pluginCallers, name)
	r.logger.Info("plugin unregistered", "plugin", name)
	r.publish(events.Event{Type: events.TypePluginUnregistered, Plugin: name})
	return nil
}

// AddSpecs attaches hook specifications. A caller that accumulated
// implementations while unverified validates them retroactively; the
// first failure aborts with that error.
func (r *Registry) AddSpecs(specs []*hook.Spec) error {
	for _, spec := range specs {
		hc := r.caller(spec.Name())
		if err := hc.SetSpec(spec); err != nil {
			return err
		}
		r.publish(events.Event{Type: events.TypeSpecAdded, Hook: spec.Name()})
	}
	return nil
}

// CheckPending verifies that every hook that accumulated implementations
// also received a specification, unless every such implementation was
// marked optional. Catches hook-name typos at startup.
func (r *Registry) CheckPending() error {
	for _, name := range r.HookNames() {
		hc := r.hooks[name]
		if hc.HasSpec() {
			continue
		}
		for _, im := range hc.Implementations() {
			if !im.Optional() {
				return &hook.ValidationError{
					Plugin: im.Plugin(),
					Hook:   name,
					Reason: "implementation registered for unknown hook (not marked optional)",
				}
			}
		}
	}
	return nil
}

// EnablePlugin re-enables pluginName's implementations on every hook it
// joined.
func (r *Registry) EnablePlugin(pluginName string) error {
	return r.setPluginEnabled(pluginName, true)
}

// DisablePlugin removes pluginName's implementations from dispatch on
// every hook it joined, without unregistering them.
func (r *Registry) DisablePlugin(pluginName string) error {
	return r.setPluginEnabled(pluginName, false)
}

func (r *Registry) setPluginEnabled(pluginName string, enabled bool) error {
	if !r.IsRegistered(pluginName) {
		return fmt.Errorf("no plugin registered under name %q", pluginName)
	}
	for _, hc := range r.pluginCallers[pluginName] {
		im, err := hc.Implementation(pluginName)
		if err != nil {
			return err
		}
		im.SetEnabled(enabled)
	}
	return nil
}

// AddMonitor wraps every dispatch with before/after observers and
// returns an undo function that removes them. Monitors stack; undo
// restores the chain as it was when the monitor was added.
func (r *Registry) AddMonitor(before BeforeMonitor, after AfterMonitor) func() {
	old := r.inner
	r.inner = func(hc *hook.Caller, impls []*hook.Implementation, kwargs hook.Args) (*hook.Result, error) {
		if before != nil {
			before(hc.Name(), impls, kwargs)
		}
		res, err := old(hc, impls, kwargs)
		if after != nil {
			after(res, err, hc.Name(), impls, kwargs)
		}
		return res, err
	}
	return func() { r.inner = old }
}

// caller returns the hook.Caller for name, creating it on first touch
// with the registry's dispatch chain wired in.
func (r *Registry) caller(name string) *hook.Caller {
	if hc, ok := r.hooks[name]; ok {
		return hc
	}
	hc := hook.NewCaller(name,
		hook.WithExec(r.execHook),
		hook.WithLogger(log.WithHook(name)),
	)
	r.hooks[name] = hc
	return hc
}

// execHook is the always-on outermost dispatch layer: it runs the
// monitored chain, logs the outcome, and publishes a dispatch event.
func (r *Registry) execHook(hc *hook.Caller, impls []*hook.Implementation, kwargs hook.Args) (*hook.Result, error) {
	callID := uuid.NewString()
	start := time.Now()

	res, err := r.inner(hc, impls, kwargs)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		r.logger.Error("hook call failed", "hook", hc.Name(), "call_id", callID, "error", err)
		r.publish(events.Event{
			Type: events.TypeHookCallError, Hook: hc.Name(),
			CallID: callID, Duration: elapsed, Error: err.Error(),
		})
	default:
		r.logger.Debug("hook called", "hook", hc.Name(), "call_id", callID,
			"impls", len(impls), "duration", elapsed)
		r.publish(events.Event{
			Type: events.TypeHookCalled, Hook: hc.Name(),
			CallID: callID, Duration: elapsed,
		})
	}
	return res, err
}

// removeEverywhere strips name's implementations from all hooks. Used to
// unwind a partially failed registration.
func (r *Registry) removeEverywhere(name string) {
	for _, hc := range r.hooks {
		_ = hc.RemovePlugin(name)
	}
}

func (r *Registry) publish(ev events.Event) {
	if r.hub != nil {
		r.hub.Publish(ev)
	}
}
