// Package hook implements the hook dispatch core: specifications,
// implementations, per-hook callers, and the multicall loop.
//
// A hook is a named extension point. A host declares it with a Spec
// (argument names plus firstresult/historic flags), plugins contribute
// Implementations, and a Caller owns the ordered implementation lists and
// the call surface. Dispatch walks the stored lists in reverse, so the
// default call order is last-registered-first, adjusted by the TryFirst
// and TryLast placement hints at insertion time.
//
// Key behaviors:
//   - Wrapper implementations run setup before the plain chain and
//     teardown after it, in nested (reverse-entry) order
//   - firstresult specs stop at the first non-nil value and surface the
//     most recent plugin error immediately
//   - plain implementation errors are isolated: collected on the Result,
//     never aborting the rest of the chain
//   - historic specs log every call and replay the log against
//     implementations registered later
//   - an explicit call-order override (a list of plugin names) pins the
//     dispatch order of the named plugins; the host may persist it
//
// Callers are not internally synchronized. Registration, reordering, and
// dispatch for one hook must be serialized by the host if used from
// multiple goroutines.
package hook
