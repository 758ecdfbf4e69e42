package hook

// resultPair is one collected (value, implementation) outcome.
type resultPair struct {
	value any
	impl  *Implementation
}

// Result is the outcome of one hook dispatch: the collected values in
// call order, the implementations responsible for them, per-plugin call
// errors gathered during the loop, and any deferred error. The deferred
// error is surfaced only when Unwrap is read; callers that never read it
// never observe it.
type Result struct {
	values []any
	impls  []*Implementation

	firstResult  bool
	err          error
	pluginErrors []*PluginCallError

	forced      bool
	forcedValue any
	modifiedBy  string

	// forcing names the wrapper whose teardown is currently running, so
	// ForceResult can attribute the override.
	forcing string
}

func newResult(pairs []resultPair, err error, firstResult bool, pluginErrors []*PluginCallError) *Result {
	r := &Result{
		firstResult:  firstResult,
		err:          err,
		pluginErrors: pluginErrors,
	}
	for _, p := range pairs {
		r.values = append(r.values, p.value)
		r.impls = append(r.impls, p.impl)
	}
	return r
}

// Unwrap returns the plugin-visible result: for firstresult hooks the
// single collapsed value (nil if no implementation returned one), and
// otherwise the []any of collected values. Any deferred error is
// returned here.
func (r *Result) Unwrap() (any, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.forced {
		return r.forcedValue, nil
	}
	if r.firstResult {
		if len(r.values) > 0 {
			return r.values[0], nil
		}
		return nil, nil
	}
	return r.values, nil
}

// Values returns the collected values in call order, before any
// firstresult collapse or forced override.
func (r *Result) Values() []any { return append([]any(nil), r.values...) }

// Implementations returns the implementation responsible for each value,
// index-aligned with Values.
func (r *Result) Implementations() []*Implementation {
	return append([]*Implementation(nil), r.impls...)
}

// IsFirstResult reports whether this result came from a firstresult
// dispatch.
func (r *Result) IsFirstResult() bool { return r.firstResult }

// Err returns the deferred error without consuming it, or nil.
func (r *Result) Err() error { return r.err }

// PluginErrors returns the per-plugin call errors collected during the
// loop. They are never raised automatically for non-firstresult hooks.
func (r *Result) PluginErrors() []*PluginCallError {
	return append([]*PluginCallError(nil), r.pluginErrors...)
}

// ForceResult overrides the final outcome. Wrapper teardown code uses
// this to rewrite what the call site will see. For firstresult hooks the
// value should be a single result, otherwise a []any. Any deferred error
// is cleared.
func (r *Result) ForceResult(value any) {
	r.forced = true
	r.forcedValue = value
	r.err = nil
	r.modifiedBy = r.forcing
}

// ModifiedBy returns the plugin name of the wrapper that last forced the
// result, or "" if the result is unmodified (or was forced outside a
// wrapper teardown).
func (r *Result) ModifiedBy() string { return r.modifiedBy }
