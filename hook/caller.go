package hook

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"

	"github.com/mattjoyce/armature/internal/log"
)

// ResultCallback receives one non-nil result from a historic dispatch,
// along with the implementation that produced it.
type ResultCallback func(value any, impl *Implementation)

// historicCall is one logged entry of a historic hook's call history.
type historicCall struct {
	id       string
	kwargs   Args
	callback ResultCallback
}

// CallerOption configures a Caller at construction.
type CallerOption func(*Caller)

// WithExec overrides the dispatch function. The registry uses this to
// route every dispatch through its monitoring/event layer.
func WithExec(exec ExecFunc) CallerOption {
	return func(hc *Caller) { hc.exec = exec }
}

// WithLogger overrides the caller's logger.
func WithLogger(logger *slog.Logger) CallerOption {
	return func(hc *Caller) { hc.logger = logger }
}

// Caller owns one named hook: its specification (possibly attached after
// implementations have accumulated), its ordered implementation lists,
// its historic call log, and the call surface.
type Caller struct {
	name        string
	spec        *Spec
	nonwrappers []*Implementation
	wrappers    []*Implementation

	history []historicCall
	order   []string // explicit call-order override, nil when unset

	exec   ExecFunc
	logger *slog.Logger
}

// NewCaller builds a caller for the named hook. Without options it
// dispatches with DefaultExec.
func NewCaller(name string, opts ...CallerOption) *Caller {
	hc := &Caller{
		name:   name,
		exec:   DefaultExec,
		logger: log.WithComponent("hook"),
	}
	for _, opt := range opts {
		opt(hc)
	}
	return hc
}

// Name returns the hook name.
func (hc *Caller) Name() string { return hc.name }

// Spec returns the attached specification, or nil while unverified.
func (hc *Caller) Spec() *Spec { return hc.spec }

// HasSpec reports whether a specification has been attached.
func (hc *Caller) HasSpec() bool { return hc.spec != nil }

// IsFirstResult reports the spec's firstresult mode (false while
// unverified).
func (hc *Caller) IsFirstResult() bool { return hc.spec != nil && hc.spec.FirstResult() }

// IsHistoric reports the spec's historic mode (false while unverified).
func (hc *Caller) IsHistoric() bool { return hc.spec != nil && hc.spec.Historic() }

// SetSpec attaches the hook specification. Implementations registered
// while the caller was unverified are retroactively validated; the first
// validation failure is returned and the specification is not attached.
func (hc *Caller) SetSpec(spec *Spec) error {
	if hc.spec != nil {
		return &ValidationError{Hook: hc.name, Reason: "hook specification already set"}
	}
	if spec.Name() != hc.name {
		return &ValidationError{
			Hook:   hc.name,
			Reason: fmt.Sprintf("specification name %q does not match caller", spec.Name()),
		}
	}
	for _, im := range hc.Implementations() {
		if err := hc.verifyAgainst(spec, im); err != nil {
			return err
		}
	}
	hc.spec = spec
	return nil
}

// Implementations returns all registered implementations in stored order:
// non-wrappers first, then wrappers. Dispatch traverses this in reverse.
func (hc *Caller) Implementations() []*Implementation {
	out := make([]*Implementation, 0, len(hc.nonwrappers)+len(hc.wrappers))
	out = append(out, hc.nonwrappers...)
	out = append(out, hc.wrappers...)
	return out
}

// Implementation returns the implementation registered by pluginName.
func (hc *Caller) Implementation(pluginName string) (*Implementation, error) {
	for _, im := range hc.Implementations() {
		if im.Plugin() == pluginName {
			return im, nil
		}
	}
	return nil, fmt.Errorf("no implementation of hook %q found for plugin %q", hc.name, pluginName)
}

// AddImplementation validates im against the specification (when one is
// attached), inserts it into the callback chain, and replays the call
// history against it if the hook is historic.
func (hc *Caller) AddImplementation(im *Implementation) error {
	if hc.spec != nil {
		if err := hc.verifyAgainst(hc.spec, im); err != nil {
			return err
		}
		if notice := hc.spec.WarnOnImpl(); notice != "" {
			hc.logger.Warn("deprecated hook implementation registered",
				"hook", hc.name, "plugin", im.Plugin(), "notice", notice)
		}
	}
	hc.insert(im)
	if !im.IsWrapper() && hc.order != nil {
		hc.applyCallOrder()
	}
	if hc.IsHistoric() {
		if err := hc.applyHistory(im); err != nil {
			return err
		}
	}
	return nil
}

// verifyAgainst checks one implementation against a specification.
func (hc *Caller) verifyAgainst(spec *Spec, im *Implementation) error {
	// Historic callers never return results to a wrapper's teardown, so
	// wrapping a historic hook is meaningless.
	if spec.Historic() && im.IsWrapper() {
		return &ValidationError{
			Plugin: im.Plugin(),
			Hook:   hc.name,
			Reason: "historic hooks are incompatible with wrapper implementations",
		}
	}
	var unknown []string
	for _, name := range im.argNames {
		if !slices.Contains(spec.argNames, name) {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return &ValidationError{
			Plugin: im.Plugin(),
			Hook:   hc.name,
			Reason: fmt.Sprintf("argument(s) %v are declared in the implementation but not in the hook specification %v", unknown, spec.argNames),
		}
	}
	return nil
}

// insert places im into the stored list so that the reverse traversal at
// dispatch time yields: tryfirst implementations first (in registration
// order among themselves), plain implementations next (most recent
// first), and trylast implementations last.
func (hc *Caller) insert(im *Implementation) {
	list := &hc.nonwrappers
	if im.IsWrapper() {
		list = &hc.wrappers
	}
	switch {
	case im.TryLast():
		*list = append([]*Implementation{im}, *list...)
	case im.TryFirst():
		*list = append(*list, im)
	default:
		// Place immediately after the run of trailing tryfirst entries.
		i := len(*list) - 1
		for i >= 0 && (*list)[i].TryFirst() {
			i--
		}
		*list = slices.Insert(*list, i+1, im)
	}
}

// RemovePlugin removes pluginName's implementation from the chain.
func (hc *Caller) RemovePlugin(pluginName string) error {
	for i, im := range hc.wrappers {
		if im.Plugin() == pluginName {
			hc.wrappers = slices.Delete(hc.wrappers, i, i+1)
			return nil
		}
	}
	for i, im := range hc.nonwrappers {
		if im.Plugin() == pluginName {
			hc.nonwrappers = slices.Delete(hc.nonwrappers, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("plugin %q not found in hook %q", pluginName, hc.name)
}

// index resolves a plugin name or *Implementation handle to its position
// in the non-wrapper list.
func (hc *Caller) index(item any) (int, error) {
	switch v := item.(type) {
	case *Implementation:
		for i, im := range hc.nonwrappers {
			if im == v {
				return i, nil
			}
		}
		return 0, fmt.Errorf("implementation %v is not a registered non-wrapper of hook %q", v, hc.name)
	case string:
		for i, im := range hc.nonwrappers {
			if im.Plugin() == v {
				return i, nil
			}
		}
		return 0, fmt.Errorf("plugin %q is not a registered non-wrapper of hook %q", v, hc.name)
	default:
		return 0, fmt.Errorf("order items must be plugin names or *Implementation handles, got %T", item)
	}
}

// BringToFront rewrites the effective call order so that dispatch visits
// exactly order (plugin names or *Implementation handles), in that
// sequence, followed by every other non-wrapper implementation in its
// prior relative order. Wrapper implementations are never reorderable.
func (hc *Caller) BringToFront(order []any) error {
	indices := make([]int, 0, len(order))
	seen := make(map[int]struct{}, len(order))
	for _, item := range order {
		idx, err := hc.index(item)
		if err != nil {
			return err
		}
		if _, dup := seen[idx]; dup {
			return fmt.Errorf("repeated item in order for hook %q", hc.name)
		}
		seen[idx] = struct{}{}
		indices = append(indices, idx)
	}

	old := slices.Clone(hc.nonwrappers)
	// Stored order is the reverse of call order, so the requested front
	// of the call sequence becomes the back of the stored list.
	reordered := make([]*Implementation, 0, len(indices))
	for _, idx := range indices {
		reordered = append([]*Implementation{old[idx]}, reordered...)
	}

	desc := slices.Clone(indices)
	slices.Sort(desc)
	slices.Reverse(desc)
	for _, idx := range desc {
		old = slices.Delete(old, idx, idx+1)
	}

	hc.nonwrappers = append(old, reordered...)
	return nil
}

// SetCallOrder installs the persistable call-order override: the named
// plugins are pinned to the front of the call sequence in the given
// relative order, while unnamed plugins keep their structural position.
// Unlike BringToFront, names without a registered implementation are
// tolerated and simply skipped; the override is re-applied as later
// registrations arrive.
func (hc *Caller) SetCallOrder(names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("call order for hook %q contains an empty plugin name", hc.name)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("call order for hook %q repeats plugin %q", hc.name, name)
		}
		seen[name] = struct{}{}
	}
	hc.order = slices.Clone(names)
	hc.applyCallOrder()
	return nil
}

// CallOrder returns the installed override, or nil when unset.
func (hc *Caller) CallOrder() []string { return slices.Clone(hc.order) }

// ClearCallOrder removes the override. Already-applied ordering is kept;
// future registrations fall back to insertion-time placement only.
func (hc *Caller) ClearCallOrder() { hc.order = nil }

func (hc *Caller) applyCallOrder() {
	present := make([]any, 0, len(hc.order))
	for _, name := range hc.order {
		if _, err := hc.index(name); err == nil {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return
	}
	// Names were validated above, BringToFront cannot fail here.
	_ = hc.BringToFront(present)
}

// EnablePlugin re-enables pluginName's implementation at its original
// position.
func (hc *Caller) EnablePlugin(pluginName string) error {
	return hc.setPluginEnabled(pluginName, true)
}

// DisablePlugin removes pluginName's implementation from dispatch without
// unregistering it.
func (hc *Caller) DisablePlugin(pluginName string) error {
	return hc.setPluginEnabled(pluginName, false)
}

func (hc *Caller) setPluginEnabled(pluginName string, enabled bool) error {
	im, err := hc.Implementation(pluginName)
	if err != nil {
		return err
	}
	im.SetEnabled(enabled)
	return nil
}

// callOptions collects per-call modifiers.
type callOptions struct {
	skip []*Implementation
}

// CallOption modifies one dispatch without affecting stored order.
type CallOption func(*callOptions)

// SkipImplementations excludes the given implementations for this
// dispatch only.
func SkipImplementations(impls ...*Implementation) CallOption {
	return func(o *callOptions) { o.skip = append(o.skip, impls...) }
}

// Call dispatches the hook against kwargs and returns the Result. The
// returned error is immediate-fatal state: a firstresult plugin failure,
// a wrapper teardown failure, or misuse of a historic hook. Deferred
// errors (missing arguments, wrapper setup failures) surface on
// Result.Unwrap.
func (hc *Caller) Call(kwargs Args, opts ...CallOption) (*Result, error) {
	if hc.IsHistoric() {
		return nil, fmt.Errorf("historic hook %q must be called with CallHistoric", hc.name)
	}
	hc.checkCallKwargs(kwargs)

	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return hc.exec(hc, hc.implsForCall(o.skip), kwargs)
}

// CallPlugin invokes only pluginName's implementation, bypassing the
// multicall loop. Wrapper implementations cannot be called directly.
func (hc *Caller) CallPlugin(pluginName string, kwargs Args) (any, error) {
	if hc.IsHistoric() {
		return nil, fmt.Errorf("historic hook %q must be called with CallHistoric", hc.name)
	}
	hc.checkCallKwargs(kwargs)

	im, err := hc.Implementation(pluginName)
	if err != nil {
		return nil, err
	}
	if im.IsWrapper() {
		return nil, fmt.Errorf("hook wrappers can not be called directly")
	}
	args, err := im.bindArgs(hc.name, kwargs)
	if err != nil {
		return nil, err
	}
	value, err := im.call(args)
	if err != nil {
		return nil, &PluginCallError{Plugin: im.Plugin(), Hook: hc.name, Err: err}
	}
	return value, nil
}

// CallExtra dispatches with extra implementations spliced into the chain
// for this one call only. The stored lists are restored afterward, even
// if a plugin panics.
func (hc *Caller) CallExtra(extra []*Implementation, kwargs Args) (*Result, error) {
	oldNonwrappers := slices.Clone(hc.nonwrappers)
	oldWrappers := slices.Clone(hc.wrappers)
	defer func() {
		hc.nonwrappers = oldNonwrappers
		hc.wrappers = oldWrappers
	}()

	for _, im := range extra {
		hc.insert(im)
	}
	return hc.Call(kwargs)
}

// CallHistoric logs the call and dispatches it to all currently
// registered implementations. Implementations registered afterwards are
// replayed against the log, so the hook behaves as if every
// implementation had always been present. Historic hooks never return a
// live result; callback, if non-nil, receives each non-nil value.
func (hc *Caller) CallHistoric(kwargs Args, callback ResultCallback) error {
	if !hc.IsHistoric() {
		return fmt.Errorf("hook %q is not historic", hc.name)
	}

	entry := historicCall{
		id:       uuid.NewString(),
		kwargs:   cloneArgs(kwargs),
		callback: callback,
	}
	hc.history = append(hc.history, entry)

	res, err := hc.exec(hc, hc.implsForCall(nil), entry.kwargs)
	if err != nil {
		return err
	}
	if res.Err() != nil {
		return res.Err()
	}
	if callback != nil {
		impls := res.Implementations()
		for i, v := range res.Values() {
			callback(v, impls[i])
		}
	}
	return nil
}

// HistoryLen returns the number of logged historic calls.
func (hc *Caller) HistoryLen() int { return len(hc.history) }

// applyHistory replays every logged call against one newly registered
// implementation.
func (hc *Caller) applyHistory(im *Implementation) error {
	for _, entry := range hc.history {
		res, err := hc.exec(hc, []*Implementation{im}, entry.kwargs)
		if err != nil {
			return err
		}
		if res.Err() != nil {
			return res.Err()
		}
		if entry.callback != nil {
			values := res.Values()
			if len(values) > 0 {
				entry.callback(values[0], res.Implementations()[0])
			}
		}
	}
	return nil
}

// implsForCall assembles the dispatch list: non-wrappers then wrappers,
// minus any explicitly skipped implementations.
func (hc *Caller) implsForCall(skip []*Implementation) []*Implementation {
	all := hc.Implementations()
	if len(skip) == 0 {
		return all
	}
	out := make([]*Implementation, 0, len(all))
	for _, im := range all {
		if !slices.Contains(skip, im) {
			out = append(out, im)
		}
	}
	return out
}

// checkCallKwargs notes spec-declared arguments absent from this call.
// Specs grow arguments over time; an old call site is worth flagging but
// is not an error.
func (hc *Caller) checkCallKwargs(kwargs Args) {
	if hc.spec == nil {
		return
	}
	var missing []string
	for _, name := range hc.spec.argNames {
		if _, ok := kwargs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		hc.logger.Warn("hook call omits argument(s) declared in the specification",
			"hook", hc.name, "missing", missing)
	}
}

func cloneArgs(kwargs Args) Args {
	out := make(Args, len(kwargs))
	for k, v := range kwargs {
		out[k] = v
	}
	return out
}

func (hc *Caller) String() string {
	return fmt.Sprintf("<Caller %q>", hc.name)
}
