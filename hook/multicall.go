package hook

// ExecFunc dispatches a list of implementations against a keyword bundle
// and produces the call outcome. The registry injects a wrapped ExecFunc
// into every Caller it creates so that monitoring and event publication
// can observe all dispatches; a bare Caller falls back to DefaultExec.
type ExecFunc func(caller *Caller, impls []*Implementation, kwargs Args) (*Result, error)

// DefaultExec runs the plain multicall loop with the caller's
// firstresult mode.
func DefaultExec(caller *Caller, impls []*Implementation, kwargs Args) (*Result, error) {
	return multicall(caller.Name(), impls, kwargs, caller.IsFirstResult())
}

type wrapperEntry struct {
	impl  *Implementation
	state any
}

// multicall is the primary implementation call loop.
//
// Implementations are visited in reverse stored order (non-wrappers were
// placed ahead of wrappers by the caller, so wrapper setup runs first).
// Disabled implementations are skipped. A missing call argument aborts
// the whole loop and becomes the Result's deferred error. Plain
// implementation errors are collected and isolated unless firstResult is
// set, in which case the most recent one is returned immediately after
// the loop. Wrapper teardowns run in reverse entry order, each receiving
// the constructed Result.
func multicall(hookName string, impls []*Implementation, kwargs Args, firstResult bool) (*Result, error) {
	var (
		pairs        []resultPair
		pluginErrors []*PluginCallError
		deferred     error
		teardowns    []wrapperEntry
	)

	for i := len(impls) - 1; i >= 0; i-- {
		im := impls[i]
		if !im.Enabled() {
			continue
		}

		args, err := im.bindArgs(hookName, kwargs)
		if err != nil {
			deferred = err
			break
		}

		if im.IsWrapper() {
			state, err := im.wrapper.Before(args)
			if err != nil {
				deferred = err
				break
			}
			teardowns = append(teardowns, wrapperEntry{impl: im, state: state})
			continue
		}

		value, err := im.call(args)
		if err != nil {
			pluginErrors = append(pluginErrors, &PluginCallError{
				Plugin: im.Plugin(),
				Hook:   hookName,
				Err:    err,
			})
			if firstResult {
				break
			}
			continue
		}
		if value != nil {
			pairs = append(pairs, resultPair{value: value, impl: im})
			if firstResult {
				break
			}
		}
	}

	// firstresult callers never silently swallow a plugin failure: the
	// most recent error is surfaced immediately, before any teardown.
	if firstResult && len(pluginErrors) > 0 {
		return nil, pluginErrors[len(pluginErrors)-1]
	}

	outcome := newResult(pairs, deferred, firstResult, pluginErrors)

	// Nesting semantics: the last wrapper entered tears down first.
	for i := len(teardowns) - 1; i >= 0; i-- {
		td := teardowns[i]
		outcome.forcing = td.impl.Plugin()
		err := td.impl.wrapper.After(td.state, outcome)
		outcome.forcing = ""
		if err != nil {
			return nil, &WrapperError{Plugin: td.impl.Plugin(), Hook: hookName, Err: err}
		}
	}

	return outcome, nil
}
