package hook

import (
	"fmt"
	"sort"
	"strings"
)

// CallError reports a call-site keyword bundle that is missing arguments
// required by a registered implementation. It is fatal to the whole call,
// not just the implementation that declared the missing name.
type CallError struct {
	Hook     string
	Missing  []string
	Required []string
	Provided []string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("hook %q call must provide arguments [%s], but provided [%s]",
		e.Hook, strings.Join(e.Required, ", "), strings.Join(e.Provided, ", "))
}

// PluginCallError wraps an error returned by one plugin's implementation
// during dispatch. These are collected on the Result rather than raised,
// except for firstresult hooks where the most recent one is returned
// immediately.
type PluginCallError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *PluginCallError) Error() string {
	return fmt.Sprintf("error in plugin %q, hook %q: %v", e.Plugin, e.Hook, e.Err)
}

func (e *PluginCallError) Unwrap() error { return e.Err }

// ValidationError reports a registration-time failure: an implementation
// that does not satisfy its hook specification, or a specification that
// is itself malformed.
type ValidationError struct {
	Plugin string
	Hook   string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Plugin == "" {
		return fmt.Sprintf("hook %q: %s", e.Hook, e.Reason)
	}
	return fmt.Sprintf("plugin %q, hook %q: %s", e.Plugin, e.Hook, e.Reason)
}

// WrapperError reports a wrapper implementation whose teardown phase
// failed. Teardown failures are never swallowed; they abort the call.
type WrapperError struct {
	Plugin string
	Hook   string
	Err    error
}

func (e *WrapperError) Error() string {
	return fmt.Sprintf("wrapper teardown failed in plugin %q, hook %q: %v", e.Plugin, e.Hook, e.Err)
}

func (e *WrapperError) Unwrap() error { return e.Err }

func sortedKeys(m Args) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
