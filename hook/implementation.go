package hook

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Args is the keyword bundle supplied at a hook call site. Implementations
// never see the map itself; the caller binds each implementation's declared
// argument names against it and passes positional values.
type Args map[string]any

// Func is a plain hook implementation. args holds the values bound from
// the call-site Args in the order of the implementation's declared
// argument names. A nil return value contributes no result; a non-nil
// error is recorded as a per-plugin call error.
type Func func(args []any) (any, error)

// Wrapper is a hook implementation that runs around the rest of the
// chain. Before runs ahead of the plain implementations (in dispatch
// order among wrappers) and may return opaque state; After runs once the
// chain has finished, in reverse entry order, receiving that state and
// the call outcome. After may rewrite the outcome with Result.ForceResult.
//
// A Before error is recorded as the call's deferred error. An After error
// aborts the call; it is never swallowed.
type Wrapper interface {
	Before(args []any) (state any, err error)
	After(state any, outcome *Result) error
}

// ImplementationOptions configures construction of an Implementation.
type ImplementationOptions struct {
	// Plugin is the owning plugin name. The registry overwrites it at
	// registration time; standalone callers may set it directly.
	Plugin string

	// SpecName is the hook name this implementation targets. If empty it
	// defaults to the function's own name for plain implementations.
	SpecName string

	// ArgNames is the ordered list of argument names the callable
	// accepts. Each name is looked up in the call-site Args.
	ArgNames []string

	// TryFirst and TryLast are placement hints resolved at insertion
	// time. They are advisory across plugins, not guarantees.
	TryFirst bool
	TryLast  bool

	// Optional marks the implementation as tolerating a missing hook
	// specification at CheckPending time.
	Optional bool
}

// Implementation wraps one plugin-provided callable with its calling
// metadata. Exactly one of the plain function or the wrapper is set.
type Implementation struct {
	fn      Func
	wrapper Wrapper

	plugin   string
	specName string
	argNames []string

	tryFirst bool
	tryLast  bool
	optional bool
	enabled  bool
}

// NewImplementation builds a plain implementation from fn.
func NewImplementation(fn Func, opts ImplementationOptions) *Implementation {
	name := opts.SpecName
	if name == "" {
		name = funcName(fn)
	}
	return &Implementation{
		fn:       fn,
		plugin:   opts.Plugin,
		specName: name,
		argNames: append([]string(nil), opts.ArgNames...),
		tryFirst: opts.TryFirst,
		tryLast:  opts.TryLast,
		optional: opts.Optional,
		enabled:  true,
	}
}

// NewWrapper builds a wrapper implementation from w. Wrappers have no
// derivable name, so opts.SpecName must be set before registration.
func NewWrapper(w Wrapper, opts ImplementationOptions) *Implementation {
	return &Implementation{
		wrapper:  w,
		plugin:   opts.Plugin,
		specName: opts.SpecName,
		argNames: append([]string(nil), opts.ArgNames...),
		tryFirst: opts.TryFirst,
		tryLast:  opts.TryLast,
		optional: opts.Optional,
		enabled:  true,
	}
}

// Plugin returns the owning plugin name.
func (im *Implementation) Plugin() string { return im.plugin }

// SetPlugin assigns the owning plugin name. The registry calls this when
// a provider's implementations are registered under a plugin identity.
func (im *Implementation) SetPlugin(name string) { im.plugin = name }

// SpecName returns the hook name this implementation targets.
func (im *Implementation) SpecName() string { return im.specName }

// ArgNames returns the declared argument names in binding order.
func (im *Implementation) ArgNames() []string {
	return append([]string(nil), im.argNames...)
}

// IsWrapper reports whether this implementation is a wrapper.
func (im *Implementation) IsWrapper() bool { return im.wrapper != nil }

// TryFirst reports the try-first placement hint.
func (im *Implementation) TryFirst() bool { return im.tryFirst }

// TryLast reports the try-last placement hint.
func (im *Implementation) TryLast() bool { return im.tryLast }

// Optional reports whether a missing specification is tolerated for this
// implementation at CheckPending time.
func (im *Implementation) Optional() bool { return im.optional }

// Enabled reports whether the implementation participates in dispatch.
func (im *Implementation) Enabled() bool { return im.enabled }

// SetEnabled toggles dispatch participation without unregistering.
// Re-enabling restores the implementation at its original position.
func (im *Implementation) SetEnabled(enabled bool) { im.enabled = enabled }

func (im *Implementation) String() string {
	var flags []string
	if im.wrapper != nil {
		flags = append(flags, "wrapper")
	}
	if im.tryFirst {
		flags = append(flags, "tryfirst")
	}
	if im.tryLast {
		flags = append(flags, "trylast")
	}
	if !im.enabled {
		flags = append(flags, "disabled")
	}
	suffix := ""
	if len(flags) > 0 {
		suffix = " " + strings.Join(flags, " ")
	}
	return fmt.Sprintf("<Implementation plugin=%q spec=%q%s>", im.plugin, im.specName, suffix)
}

// bindArgs resolves the implementation's declared argument names against
// the call-site bundle. A missing name is fatal to the whole call.
func (im *Implementation) bindArgs(hookName string, kwargs Args) ([]any, error) {
	args := make([]any, len(im.argNames))
	var missing []string
	for i, name := range im.argNames {
		v, ok := kwargs[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		args[i] = v
	}
	if len(missing) > 0 {
		return nil, &CallError{
			Hook:     hookName,
			Missing:  missing,
			Required: append([]string(nil), im.argNames...),
			Provided: sortedKeys(kwargs),
		}
	}
	return args, nil
}

// call invokes a plain implementation, converting a panic in plugin code
// into an ordinary error so one misbehaving plugin cannot take down the
// dispatch loop.
func (im *Implementation) call(args []any) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return im.fn(args)
}

// funcName derives a display name from a function value, mirroring the
// way a callable carries its own name. Anonymous functions come back as
// their compiler-assigned names (e.g. "mypkg.glob..func1").
func funcName(fn Func) string {
	if fn == nil {
		return ""
	}
	pc := reflect.ValueOf(fn).Pointer()
	f := runtime.FuncForPC(pc)
	if f == nil {
		return ""
	}
	name := f.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if idx := strings.Index(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	return name
}
