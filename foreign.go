// foreign.go — foreign symbol resolution.
//
// An atom of the form "<prefix><dotted.path>/<member>" (by default the
// prefix is "go.", e.g. "go.math/sin") does not resolve in the environment.
// Instead it delegates to the installed ForeignResolver, the pluggable
// bridge into host-provided values. The evaluator depends only on this
// interface, never on a concrete host import mechanism.
//
// Resolved invocables with an introspectable signature get the exact same
// calling convention as natively registered functions: quoting and
// type-directed binding apply identically.
//
// RegistryResolver is the bundled implementation: an explicit registry that
// hosts populate with values and functions before evaluation. Embedders with
// richer host-lookup needs implement ForeignResolver themselves.
package mu

import "strings"

// ForeignResolver maps a dotted path and a member name to a host value.
// Signature is the separate best-effort introspection hook: it reports the
// declared signature of an invocable member when one is known.
type ForeignResolver interface {
	Resolve(path, member string) (any, error)
	Signature(path, member string) (*FunctionSignature, bool)
}

// foreignSymbol splits an atom into its dotted path and member name if it
// matches the foreign-symbol syntax; both parts must be non-empty.
func (ctx *ExecutionContext) foreignSymbol(name string) (path, member string, ok bool) {
	if !strings.HasPrefix(name, ctx.resolverPrefix) {
		return "", "", false
	}
	rest := name[len(ctx.resolverPrefix):]
	i := strings.LastIndex(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

// resolveForeign fetches path/member from the resolver. Invocable results
// whose signature is known are wrapped like registered functions, so quoted
// parameters and declared types work for foreign callables too.
func (ctx *ExecutionContext) resolveForeign(path, member string) (any, error) {
	if ctx.resolver == nil {
		return nil, &CallError{Msg: "no foreign symbol resolver installed"}
	}
	v, err := ctx.resolver.Resolve(path, member)
	if err != nil {
		return nil, err
	}

	if _, ok := v.(CallableObject); ok {
		return v, nil
	}
	if inv, ok := v.(Invocable); ok {
		if sig, known := ctx.resolver.Signature(path, member); known && sig != nil {
			return &NativeFunction{
				Name: member,
				Sig:  *sig,
				Impl: adaptInvocable(inv),
			}, nil
		}
	}
	return v, nil
}

// adaptInvocable bridges a signature-carrying Invocable into the NativeImpl
// convention: positional values in declaration order, keyword-bound values
// by name.
func adaptInvocable(inv Invocable) NativeImpl {
	return func(_ *ExecutionContext, call *CallArgs) (any, error) {
		return inv.Invoke(call.positional, call.keyword)
	}
}

type foreignEntry struct {
	value any
	sig   *FunctionSignature
}

// RegistryResolver is a ForeignResolver backed by an explicit host-side
// registry of modules and members.
type RegistryResolver struct {
	modules map[string]map[string]foreignEntry
}

// NewRegistryResolver returns an empty registry.
func NewRegistryResolver() *RegistryResolver {
	return &RegistryResolver{modules: make(map[string]map[string]foreignEntry)}
}

func (r *RegistryResolver) module(path string) map[string]foreignEntry {
	m, ok := r.modules[path]
	if !ok {
		m = make(map[string]foreignEntry)
		r.modules[path] = m
	}
	return m
}

// RegisterValue exposes a plain host value under path/member.
func (r *RegistryResolver) RegisterValue(path, member string, v any) {
	r.module(path)[member] = foreignEntry{value: v}
}

// RegisterInvocable exposes an invocable host value, optionally with its
// introspected signature. With a signature the evaluator binds arguments
// exactly as for registered functions; without one, all arguments are
// evaluated eagerly.
func (r *RegistryResolver) RegisterInvocable(path, member string, inv Invocable, sig *FunctionSignature) {
	r.module(path)[member] = foreignEntry{value: inv, sig: sig}
}

// RegisterFunc exposes a NativeImpl with a declared signature; lookups
// return a fully signature-carrying callable.
func (r *RegistryResolver) RegisterFunc(path, member string, params []Param, ret TypeSpec, impl NativeImpl) {
	fn := &NativeFunction{
		Name: member,
		Sig:  FunctionSignature{Params: params, Return: ret},
		Impl: impl,
	}
	r.module(path)[member] = foreignEntry{value: fn}
}

// Resolve implements ForeignResolver.
func (r *RegistryResolver) Resolve(path, member string) (any, error) {
	if m, ok := r.modules[path]; ok {
		if e, ok := m[member]; ok {
			return e.value, nil
		}
	}
	return nil, &NameError{Name: path + "/" + member}
}

// Signature implements ForeignResolver.
func (r *RegistryResolver) Signature(path, member string) (*FunctionSignature, bool) {
	if m, ok := r.modules[path]; ok {
		if e, ok := m[member]; ok && e.sig != nil {
			return e.sig, true
		}
	}
	return nil, false
}
