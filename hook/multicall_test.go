package hook

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceImpl builds a plain implementation that records its plugin name
// when called and returns value.
func traceImpl(plugin string, value any, record *[]string, opts ImplementationOptions) *Implementation {
	opts.Plugin = plugin
	if opts.SpecName == "" {
		opts.SpecName = "test_hook"
	}
	return NewImplementation(func(args []any) (any, error) {
		if record != nil {
			*record = append(*record, plugin)
		}
		return value, nil
	}, opts)
}

// traceWrapper records its Before/After phases and can inject failures
// or force the outcome.
type traceWrapper struct {
	name      string
	record    *[]string
	beforeErr error
	afterErr  error
	force     any
	doForce   bool
}

func (w *traceWrapper) Before(args []any) (any, error) {
	if w.record != nil {
		*w.record = append(*w.record, w.name+":before")
	}
	if w.beforeErr != nil {
		return nil, w.beforeErr
	}
	return w.name, nil
}

func (w *traceWrapper) After(state any, outcome *Result) error {
	if w.record != nil {
		*w.record = append(*w.record, w.name+":after")
	}
	if w.doForce {
		outcome.ForceResult(w.force)
	}
	return w.afterErr
}

func TestMulticallCollectsNonNilValuesInCallOrder(t *testing.T) {
	t.Parallel()

	impls := []*Implementation{
		traceImpl("a", 23, nil, ImplementationOptions{}),
		traceImpl("b", nil, nil, ImplementationOptions{}),
		traceImpl("c", 17, nil, ImplementationOptions{}),
	}

	res, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err)
	// Reverse of stored order, nil contributions dropped.
	assert.Equal(t, []any{17, 23}, value)
}

func TestMulticallFirstResultStopsAtFirstValue(t *testing.T) {
	t.Parallel()

	var calls []string
	impls := []*Implementation{
		traceImpl("a", 23, &calls, ImplementationOptions{}),
		traceImpl("b", nil, &calls, ImplementationOptions{}),
		traceImpl("c", 17, &calls, ImplementationOptions{}),
	}

	res, err := multicall("test_hook", impls, Args{}, true)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, 17, value, "firstresult collapses to a single value, not a list")
	assert.Equal(t, []string{"c"}, calls, "later implementations must not run")
}

func TestMulticallFirstResultNoValueYieldsNil(t *testing.T) {
	t.Parallel()

	impls := []*Implementation{
		traceImpl("a", nil, nil, ImplementationOptions{}),
	}

	res, err := multicall("test_hook", impls, Args{}, true)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestMulticallBindsDeclaredArgs(t *testing.T) {
	t.Parallel()

	var got []any
	im := NewImplementation(func(args []any) (any, error) {
		got = append([]any(nil), args...)
		return nil, nil
	}, ImplementationOptions{Plugin: "p", SpecName: "test_hook", ArgNames: []string{"x", "y"}})

	_, err := multicall("test_hook", []*Implementation{im}, Args{"x": 1, "y": "two", "extra": true}, false)
	require.NoError(t, err)
	assert.Equal(t, []any{1, "two"}, got, "values bound in declared order, extras ignored")
}

func TestMulticallMissingArgumentAbortsLoop(t *testing.T) {
	t.Parallel()

	var calls []string
	early := traceImpl("early", 1, &calls, ImplementationOptions{})
	needsArg := NewImplementation(func(args []any) (any, error) {
		calls = append(calls, "needs_arg")
		return 2, nil
	}, ImplementationOptions{Plugin: "needs_arg", SpecName: "test_hook", ArgNames: []string{"x"}})

	// needsArg is stored later, so it is visited first.
	res, err := multicall("test_hook", []*Implementation{early, needsArg}, Args{}, false)
	require.NoError(t, err, "a missing argument is deferred, not immediate")

	_, err = res.Unwrap()
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "test_hook", callErr.Hook)
	assert.Equal(t, []string{"x"}, callErr.Missing)
	assert.Empty(t, calls, "no implementation may run once binding fails")
}

func TestMulticallErrorIsolation(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	impls := []*Implementation{
		traceImpl("ok_a", 23, nil, ImplementationOptions{}),
		NewImplementation(func(args []any) (any, error) {
			return nil, boom
		}, ImplementationOptions{Plugin: "bad", SpecName: "test_hook"}),
		traceImpl("ok_b", 17, nil, ImplementationOptions{}),
	}

	res, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []any{17, 23}, value, "healthy implementations still contribute")

	pluginErrors := res.PluginErrors()
	require.Len(t, pluginErrors, 1)
	assert.Equal(t, "bad", pluginErrors[0].Plugin)
	assert.ErrorIs(t, pluginErrors[0], boom)
}

func TestMulticallFirstResultRaisesPluginError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	var calls []string
	impls := []*Implementation{
		traceImpl("a", 23, &calls, ImplementationOptions{}),
		NewImplementation(func(args []any) (any, error) {
			return nil, boom
		}, ImplementationOptions{Plugin: "bad", SpecName: "test_hook"}),
	}

	_, err := multicall("test_hook", impls, Args{}, true)
	var pce *PluginCallError
	require.ErrorAs(t, err, &pce)
	assert.Equal(t, "bad", pce.Plugin)
	assert.Empty(t, calls, "firstresult stops at the first failure")
}

func TestMulticallPanicBecomesPluginError(t *testing.T) {
	t.Parallel()

	impls := []*Implementation{
		traceImpl("ok", 1, nil, ImplementationOptions{}),
		NewImplementation(func(args []any) (any, error) {
			panic("plugin bug")
		}, ImplementationOptions{Plugin: "panicky", SpecName: "test_hook"}),
	}

	res, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)

	pluginErrors := res.PluginErrors()
	require.Len(t, pluginErrors, 1)
	assert.Equal(t, "panicky", pluginErrors[0].Plugin)
	assert.Contains(t, pluginErrors[0].Error(), "panic")

	value, err := res.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []any{1}, value)
}

func TestMulticallSkipsDisabledImplementations(t *testing.T) {
	t.Parallel()

	var calls []string
	off := traceImpl("off", 1, &calls, ImplementationOptions{})
	off.SetEnabled(false)
	on := traceImpl("on", 2, &calls, ImplementationOptions{})

	res, err := multicall("test_hook", []*Implementation{off, on}, Args{}, false)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []any{2}, value)
	assert.Equal(t, []string{"on"}, calls)
}

func TestMulticallWrapperBracketsChain(t *testing.T) {
	t.Parallel()

	var trace []string
	impls := []*Implementation{
		traceImpl("plain", 42, &trace, ImplementationOptions{}),
		NewWrapper(&traceWrapper{name: "w", record: &trace},
			ImplementationOptions{Plugin: "w", SpecName: "test_hook"}),
	}

	res, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []any{42}, value)
	assert.Equal(t, []string{"w:before", "plain", "w:after"}, trace)
}

func TestMulticallNestedWrappersTearDownInReverse(t *testing.T) {
	t.Parallel()

	var trace []string
	impls := []*Implementation{
		traceImpl("plain", 1, &trace, ImplementationOptions{}),
		NewWrapper(&traceWrapper{name: "inner", record: &trace},
			ImplementationOptions{Plugin: "inner", SpecName: "test_hook"}),
		NewWrapper(&traceWrapper{name: "outer", record: &trace},
			ImplementationOptions{Plugin: "outer", SpecName: "test_hook"}),
	}

	_, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"outer:before", "inner:before", "plain", "inner:after", "outer:after",
	}, trace)
}

func TestMulticallWrapperBeforeErrorIsDeferred(t *testing.T) {
	t.Parallel()

	setupErr := errors.New("setup failed")
	var trace []string
	impls := []*Implementation{
		traceImpl("plain", 1, &trace, ImplementationOptions{}),
		NewWrapper(&traceWrapper{name: "w", record: &trace, beforeErr: setupErr},
			ImplementationOptions{Plugin: "w", SpecName: "test_hook"}),
	}

	res, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)

	_, err = res.Unwrap()
	assert.ErrorIs(t, err, setupErr)
	assert.Equal(t, []string{"w:before"}, trace, "the chain must not run after a failed setup")
}

func TestMulticallWrapperAfterErrorIsImmediate(t *testing.T) {
	t.Parallel()

	teardownErr := errors.New("teardown failed")
	impls := []*Implementation{
		traceImpl("plain", 1, nil, ImplementationOptions{}),
		NewWrapper(&traceWrapper{name: "w", afterErr: teardownErr},
			ImplementationOptions{Plugin: "w", SpecName: "test_hook"}),
	}

	_, err := multicall("test_hook", impls, Args{}, false)
	var we *WrapperError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "w", we.Plugin)
	assert.ErrorIs(t, we, teardownErr)
}

func TestMulticallWrapperForcesResult(t *testing.T) {
	t.Parallel()

	impls := []*Implementation{
		traceImpl("plain", 1, nil, ImplementationOptions{}),
		NewWrapper(&traceWrapper{name: "w", doForce: true, force: []any{99}},
			ImplementationOptions{Plugin: "w", SpecName: "test_hook"}),
	}

	res, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []any{99}, value)
	assert.Equal(t, "w", res.ModifiedBy())
}

func TestMulticallForceResultClearsDeferredError(t *testing.T) {
	t.Parallel()

	needsArg := NewImplementation(func(args []any) (any, error) {
		return nil, nil
	}, ImplementationOptions{Plugin: "needs_arg", SpecName: "test_hook", ArgNames: []string{"x"}})
	impls := []*Implementation{
		needsArg,
		NewWrapper(&traceWrapper{name: "rescue", doForce: true, force: "recovered"},
			ImplementationOptions{Plugin: "rescue", SpecName: "test_hook"}),
	}

	res, err := multicall("test_hook", impls, Args{}, false)
	require.NoError(t, err)

	value, err := res.Unwrap()
	require.NoError(t, err, "a forced result clears the deferred error")
	assert.Equal(t, "recovered", value)
}
