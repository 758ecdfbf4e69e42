// Package plugin manages plugin registration and hook orchestration.
//
// The Registry maps hook names to hook.Caller instances and plugin names
// to the providers that contributed implementations. Registration
// validates each implementation against its hook specification (when one
// exists), unregistration removes a plugin from every chain it joined,
// and CheckPending catches implementations of hooks that never received
// a specification.
//
// Discovery is manifest-driven: each plugin directory carries a
// manifest.yaml naming the plugin and a loadable reference, and a
// Resolver supplied by the host turns that reference into a Provider.
// Invalid manifests and failing plugins are logged and skipped; one bad
// plugin never aborts the scan.
//
// Plugin lifecycle:
//   - Discover scans manifest roots → (name, ref) pairs
//   - Resolver.Resolve(ref) → Provider
//   - Registry.Register attaches the provider's implementations to their
//     hook callers (validating against specs, replaying historic calls)
//   - Registry.Unregister / Block remove or ban a plugin
//
// The registry publishes lifecycle and dispatch events to an optional
// events.Hub and routes every hook dispatch through a monitoring layer
// that hosts can extend with AddMonitor.
package plugin
