package plugin

import "fmt"

// ImportError reports a loadable reference that failed to resolve to a
// provider.
type ImportError struct {
	Plugin string
	Ref    string
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("failed to resolve reference %q", e.Ref)
	if e.Plugin != "" {
		msg = fmt.Sprintf("plugin %q: %s", e.Plugin, msg)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error { return e.Err }

// RegistrationError reports a plugin whose registration failed after its
// reference resolved.
type RegistrationError struct {
	Plugin string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("failed to register plugin %q: %v", e.Plugin, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }
