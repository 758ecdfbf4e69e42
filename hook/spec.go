package hook

import (
	"fmt"
	"slices"
)

// Reserved argument names used for call-site control. Specifications may
// not declare them.
var reservedArgNames = []string{"_plugin", "_skip_impls"}

// SpecOptions configures construction of a Spec.
type SpecOptions struct {
	// ArgNames is the hook's formal contract: the ordered argument names
	// implementations may declare.
	ArgNames []string

	// FirstResult stops dispatch at the first non-nil value and collapses
	// the call result to that single value.
	FirstResult bool

	// Historic logs every call for replay against implementations
	// registered later. Historic hooks never return a live result and
	// never accept wrapper implementations.
	Historic bool

	// WarnOnImpl, when non-empty, is a deprecation notice logged each
	// time an implementation registers against this specification.
	WarnOnImpl string
}

// Spec describes the canonical call-site for one named hook. It is
// immutable once attached to a Caller.
type Spec struct {
	name        string
	argNames    []string
	firstResult bool
	historic    bool
	warnOnImpl  string
}

// NewSpec validates opts and builds a specification for the named hook.
func NewSpec(name string, opts SpecOptions) (*Spec, error) {
	if name == "" {
		return nil, &ValidationError{Hook: name, Reason: "hook specification requires a name"}
	}
	for _, reserved := range reservedArgNames {
		if slices.Contains(opts.ArgNames, reserved) {
			return nil, &ValidationError{
				Hook:   name,
				Reason: fmt.Sprintf("hook specifications may not have argument %q", reserved),
			}
		}
	}
	return &Spec{
		name:        name,
		argNames:    append([]string(nil), opts.ArgNames...),
		firstResult: opts.FirstResult,
		historic:    opts.Historic,
		warnOnImpl:  opts.WarnOnImpl,
	}, nil
}

// Name returns the hook name.
func (s *Spec) Name() string { return s.name }

// ArgNames returns the declared argument names.
func (s *Spec) ArgNames() []string { return append([]string(nil), s.argNames...) }

// FirstResult reports whether the hook collapses to its first non-nil
// result.
func (s *Spec) FirstResult() bool { return s.firstResult }

// Historic reports whether calls are logged for replay.
func (s *Spec) Historic() bool { return s.historic }

// WarnOnImpl returns the deprecation notice, or "" if none.
func (s *Spec) WarnOnImpl() string { return s.warnOnImpl }

func (s *Spec) String() string {
	return fmt.Sprintf("<Spec %q args=%v firstresult=%v historic=%v>", s.name, s.argNames, s.firstResult, s.historic)
}
