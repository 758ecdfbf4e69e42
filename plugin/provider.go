package plugin

import (
	"reflect"
	"strings"

	"github.com/mattjoyce/armature/hook"
)

// Provider is the namespace a plugin exposes to the engine: the set of
// hook implementations it contributes. Implementations carry their own
// target hook names; the registry assigns the owning plugin name at
// registration time.
type Provider interface {
	HookImplementations() []*hook.Implementation
}

// Resolver turns a manifest's loadable reference into a live Provider.
// Hosts supply one; the engine never imports plugin code itself.
type Resolver interface {
	Resolve(ref string) (Provider, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ref string) (Provider, error)

func (f ResolverFunc) Resolve(ref string) (Provider, error) { return f(ref) }

// StaticResolver resolves references from a fixed table. Useful for
// hosts that compile their plugins in, and for tests.
type StaticResolver struct {
	providers map[string]Provider
}

// NewStaticResolver builds a resolver over the given reference table.
func NewStaticResolver(providers map[string]Provider) *StaticResolver {
	table := make(map[string]Provider, len(providers))
	for ref, p := range providers {
		table[ref] = p
	}
	return &StaticResolver{providers: table}
}

// Resolve implements Resolver.
func (r *StaticResolver) Resolve(ref string) (Provider, error) {
	p, ok := r.providers[ref]
	if !ok {
		return nil, &ImportError{Ref: ref, Reason: "no provider registered for reference"}
	}
	return p, nil
}

// CanonicalName derives a registration name from a provider's type, used
// when Register is called with an empty name.
func CanonicalName(p Provider) string {
	t := reflect.TypeOf(p)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "anonymous"
	}
	return strings.ToLower(t.Name())
}
