// exec.go — the Mu execution context and evaluator.
//
// OVERVIEW
// ========
// An ExecutionContext owns a mutable name→value environment plus the foreign
// symbol resolver. Evaluation reduces a syntax node to a Go value:
//
//   - Atom   — foreign-symbol syntax delegates to the resolver; anything else
//     is an environment lookup (undefined names fail with *NameError).
//   - Str    — returned as-is unless it contains '$'; then ${...} fragments
//     are re-parsed as Mu source, evaluated in the same context and the last
//     value is stringified in place. "$$" is a literal '$'.
//   - Seq    — an ordered []any of the evaluated items.
//   - Map    — an insertion-ordered *MapValue; a later duplicate key
//     overwrites the earlier value in place (last write wins).
//   - Group  — a call. The head evaluates to the callee; atoms starting with
//     ':' name keyword arguments whose value is the following item. Callees
//     with a declared signature (CallableObject) decide per parameter whether
//     the raw node is passed through (quoted parameters, with a node-kind
//     check) or evaluated first; plain Invocable callees get every argument
//     evaluated eagerly. Anything else is a call error.
//
// Numeric variants (Real/Int/Rational) are reserved extension points of the
// data model; when present they self-evaluate to int64, decimal.Decimal and
// *big.Rat respectively.
//
// FUNCTION REGISTRATION
// =====================
// Signatures are explicit values built at registration time from a declared
// parameter list; no reflection is involved. Register wraps a NativeImpl
// with its FunctionSignature into a *NativeFunction and installs it in the
// environment. Quoting is declared per parameter with QuotedType(kind).
//
// CONCURRENCY
// ===========
// An ExecutionContext is mutable shared state. Concurrent evaluation against
// the same context is undefined; embedders must serialize access or give
// each evaluation its own context. This is a hard constraint, not a
// guarantee the engine enforces.
package mu

import (
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Type specs and signatures
// ---------------------------------------------------------------------------

// TypeSpec is a lightweight declared type used for argument binding and
// diagnostics. It is a name plus optional type arguments; this is not a type
// system, only the per-parameter tags the call protocol needs.
type TypeSpec struct {
	Name string
	Args []TypeSpec
}

// Well-known specs. Any is the open "no declared type" marker; the node-kind
// specs parameterize QuotedType.
var (
	Any    = TypeSpec{Name: "Any"}
	TExpr  = TypeSpec{Name: "Expr"}
	TAtom  = TypeSpec{Name: "Atom"}
	TStr   = TypeSpec{Name: "Str"}
	TGroup = TypeSpec{Name: "Group"}
	TSeq   = TypeSpec{Name: "Seq"}
	TMap   = TypeSpec{Name: "Map"}
)

// T builds a TypeSpec, e.g. T("List", TStr) renders as "List[Str]".
func T(name string, args ...TypeSpec) TypeSpec {
	return TypeSpec{Name: name, Args: args}
}

// QuotedType declares a parameter that receives the raw, unevaluated syntax
// node. The kind restricts which node variant is accepted; use TExpr to
// accept any node.
func QuotedType(kind TypeSpec) TypeSpec {
	return TypeSpec{Name: "Quoted", Args: []TypeSpec{kind}}
}

func (t TypeSpec) String() string {
	if t.Name == "" {
		return "Any"
	}
	if len(t.Args) == 0 {
		return t.Name
	}
	parts := make([]string, len(t.Args))
	for i, a := range t.Args {
		parts[i] = a.String()
	}
	return t.Name + "[" + strings.Join(parts, ", ") + "]"
}

// quotedKind returns the required node kind if t is a quoting spec.
func (t TypeSpec) quotedKind() (TypeSpec, bool) {
	if t.Name != "Quoted" {
		return TypeSpec{}, false
	}
	if len(t.Args) == 0 {
		return TExpr, true
	}
	return t.Args[0], true
}

// Param is one declared parameter: a name and its declared type (Any for
// open parameters).
type Param struct {
	Name string
	Type TypeSpec
}

// FunctionSignature is the declared shape of a registered function: ordered
// parameters and a return type. It exists purely for argument binding and
// diagnostics.
type FunctionSignature struct {
	Params []Param
	Return TypeSpec
}

// String renders the diagnostic form "(a: Int, b: Str) -> R".
func (s FunctionSignature) String() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Name + ": " + p.Type.String()
	}
	return "(" + strings.Join(parts, ", ") + ") -> " + s.Return.String()
}

func (s FunctionSignature) param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ---------------------------------------------------------------------------
// Callables
// ---------------------------------------------------------------------------

// Quoted wraps a raw syntax node passed to a quoted parameter.
type Quoted struct {
	Expr Expr
}

// KeywordArg is one ":name value" pair of a call, in source order. Keyword
// evaluation and binding always follow this order.
type KeywordArg struct {
	Name  string
	Value Expr
}

// CallableObject is the capability of signature-carrying callees. Call
// receives the raw argument nodes and decides per declared parameter whether
// to evaluate, defer (quote) or type-check each one.
type CallableObject interface {
	Call(ctx *ExecutionContext, args []Expr, kwargs []KeywordArg) (any, error)
	Signature() FunctionSignature
}

// Invocable is the capability of plain callable values without a declared
// signature: every argument arrives already evaluated.
type Invocable interface {
	Invoke(args []any, kwargs map[string]any) (any, error)
}

// InvocableFunc adapts a Go function into an Invocable.
type InvocableFunc func(args []any, kwargs map[string]any) (any, error)

func (f InvocableFunc) Invoke(args []any, kwargs map[string]any) (any, error) {
	return f(args, kwargs)
}

// CallArgs gives a NativeImpl access to its bound arguments, by declared
// parameter name or positionally.
type CallArgs struct {
	positional []any
	named      map[string]any
	keyword    map[string]any
}

// Arg returns the bound value for a declared parameter name.
func (c *CallArgs) Arg(name string) (any, bool) {
	v, ok := c.named[name]
	return v, ok
}

// MustArg returns the bound value for name, or nil when the caller did not
// supply it.
func (c *CallArgs) MustArg(name string) any {
	return c.named[name]
}

// Positional returns the positionally bound values in declaration order.
func (c *CallArgs) Positional() []any { return c.positional }

// NativeImpl is the implementation signature for registered functions. The
// values it receives are already evaluated or quoted per the declared
// parameter types.
type NativeImpl func(ctx *ExecutionContext, call *CallArgs) (any, error)

// NativeFunction pairs a NativeImpl with its declared signature. It is what
// Register installs into the environment.
type NativeFunction struct {
	Name string
	Sig  FunctionSignature
	Impl NativeImpl
}

func (f *NativeFunction) Signature() FunctionSignature { return f.Sig }

// Call binds arguments per the declared signature. Positional arguments
// beyond the declared parameter count are dropped, and keyword arguments
// that name no declared parameter are ignored; neither is evaluated.
func (f *NativeFunction) Call(ctx *ExecutionContext, args []Expr, kwargs []KeywordArg) (any, error) {
	call := &CallArgs{
		named:   make(map[string]any),
		keyword: make(map[string]any),
	}

	params := f.Sig.Params
	for i, node := range args {
		if i >= len(params) {
			break
		}
		v, err := bindArg(ctx, node, params[i].Type)
		if err != nil {
			return nil, err
		}
		call.positional = append(call.positional, v)
		call.named[params[i].Name] = v
	}
	for _, kw := range kwargs {
		p, ok := f.Sig.param(kw.Name)
		if !ok {
			continue
		}
		v, err := bindArg(ctx, kw.Value, p.Type)
		if err != nil {
			return nil, err
		}
		call.named[kw.Name] = v
		call.keyword[kw.Name] = v
	}

	return f.Impl(ctx, call)
}

// bindArg applies the per-parameter protocol: quoted parameters get the raw
// node (after a node-kind check), everything else is evaluated first.
func bindArg(ctx *ExecutionContext, node Expr, t TypeSpec) (any, error) {
	if kind, quoted := t.quotedKind(); quoted {
		if kind.Name != TExpr.Name && kindName(node) != kind.Name {
			return nil, &TypeError{Msg: fmt.Sprintf(
				"expected %s node, got %s node %q", kind.Name, kindName(node), node.Render())}
		}
		return Quoted{Expr: node}, nil
	}
	return ctx.Eval(node)
}

// ---------------------------------------------------------------------------
// Execution context
// ---------------------------------------------------------------------------

// ExecutionContext is the mutable environment evaluation runs against. Not
// safe for concurrent use; see the package notes at the top of this file.
type ExecutionContext struct {
	env            map[string]any
	resolver       ForeignResolver
	resolverPrefix string
}

// NewContext returns an empty context with the default foreign-symbol
// prefix "go.".
func NewContext() *ExecutionContext {
	return &ExecutionContext{
		env:            make(map[string]any),
		resolverPrefix: "go.",
	}
}

// Define binds name to v in the environment, replacing any prior binding.
func (ctx *ExecutionContext) Define(name string, v any) {
	ctx.env[name] = v
}

// Lookup retrieves the binding for name.
func (ctx *ExecutionContext) Lookup(name string) (any, bool) {
	v, ok := ctx.env[name]
	return v, ok
}

// SetResolver installs the foreign symbol resolver. Atoms of the form
// "<prefix><dotted.path>/<member>" delegate to it. An empty prefix keeps
// the current one.
func (ctx *ExecutionContext) SetResolver(prefix string, r ForeignResolver) {
	if prefix != "" {
		ctx.resolverPrefix = prefix
	}
	ctx.resolver = r
}

// Register builds a FunctionSignature from the declared parameter list,
// wraps impl into a *NativeFunction and installs it under name. The returned
// function is also handed back for direct host use.
func (ctx *ExecutionContext) Register(name string, params []Param, ret TypeSpec, impl NativeImpl) *NativeFunction {
	fn := &NativeFunction{
		Name: name,
		Sig:  FunctionSignature{Params: params, Return: ret},
		Impl: impl,
	}
	ctx.env[name] = fn
	return fn
}

// FunctionSignatureString renders the diagnostic signature of a registered
// function, or a descriptive not-found message for unknown names.
func (ctx *ExecutionContext) FunctionSignatureString(name string) string {
	v, ok := ctx.env[name]
	if !ok {
		return fmt.Sprintf("function %q not found", name)
	}
	co, ok := v.(CallableObject)
	if !ok {
		return fmt.Sprintf("function %q not found", name)
	}
	return co.Signature().String()
}

// ---------------------------------------------------------------------------
// Runtime values
// ---------------------------------------------------------------------------

// MapEntry is one key/value pair of a MapValue.
type MapEntry struct {
	Key   any
	Value any
}

// MapValue is the insertion-ordered mapping produced by evaluating a Map
// node. A duplicate key keeps its original position and takes the latest
// value. Keys are compared structurally, so evaluated sequences and maps can
// serve as keys. Host values of uncomparable Go kinds (functions) never
// compare equal, so such keys never merge.
type MapValue struct {
	entries []MapEntry
}

// Set inserts or overwrites the value for key.
func (m *MapValue) Set(key, value any) {
	for i := range m.entries {
		if valueEqual(m.entries[i].Key, key) {
			m.entries[i].Value = value
			return
		}
	}
	m.entries = append(m.entries, MapEntry{Key: key, Value: value})
}

// Get returns the value for key.
func (m *MapValue) Get(key any) (any, bool) {
	for i := range m.entries {
		if valueEqual(m.entries[i].Key, key) {
			return m.entries[i].Value, true
		}
	}
	return nil, false
}

// Len returns the number of entries.
func (m *MapValue) Len() int { return len(m.entries) }

// Entries returns the entries in insertion order. The slice is shared; do
// not mutate it.
func (m *MapValue) Entries() []MapEntry { return m.entries }

// valueEqual is the structural equality used for map keys.
func valueEqual(a, b any) bool {
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		return ok && x == y
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !valueEqual(x[i], y[i]) {
				return false
			}
		}
		return true
	case *MapValue:
		y, ok := b.(*MapValue)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i := range x.entries {
			if !valueEqual(x.entries[i].Key, y.entries[i].Key) ||
				!valueEqual(x.entries[i].Value, y.entries[i].Value) {
				return false
			}
		}
		return true
	case decimal.Decimal:
		y, ok := b.(decimal.Decimal)
		return ok && x.Equal(y)
	case Quoted:
		y, ok := b.(Quoted)
		return ok && EqualExpr(x.Expr, y.Expr)
	default:
		ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
		if ta != tb {
			return false
		}
		if ta == nil {
			return true
		}
		// Host values of uncomparable kinds (functions, slices we don't
		// know) never compare equal; they must not panic the evaluator.
		if !ta.Comparable() {
			return false
		}
		return a == b
	}
}

// ---------------------------------------------------------------------------
// Evaluator
// ---------------------------------------------------------------------------

// Eval reduces a syntax node to a value against this context. Nodes may
// carry trivia or not; trivia is ignored.
func (ctx *ExecutionContext) Eval(e Expr) (any, error) {
	switch n := e.(type) {
	case *Atom:
		if path, member, ok := ctx.foreignSymbol(n.Value); ok {
			return ctx.resolveForeign(path, member)
		}
		v, ok := ctx.Lookup(n.Value)
		if !ok {
			return nil, &NameError{Name: n.Value}
		}
		return v, nil

	case *Str:
		if !strings.ContainsRune(n.Value, '$') {
			return n.Value, nil
		}
		return ctx.interpolate(n.Value)

	case *Int:
		return n.Value, nil

	case *Real:
		d, err := decimal.NewFromString(n.Value)
		if err != nil {
			return nil, &TypeError{Msg: fmt.Sprintf("invalid real literal %q", n.Value)}
		}
		return d, nil

	case *Rational:
		if n.Den == 0 {
			return nil, &TypeError{Msg: "rational with zero denominator"}
		}
		return big.NewRat(n.Num, n.Den), nil

	case *Seq:
		out := make([]any, len(n.Values))
		for i, item := range n.Values {
			v, err := ctx.Eval(item)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *Map:
		result := &MapValue{}
		for _, f := range n.Fields {
			k, err := ctx.Eval(f.Key)
			if err != nil {
				return nil, err
			}
			v, err := ctx.Eval(f.Value)
			if err != nil {
				return nil, err
			}
			result.Set(k, v)
		}
		return result, nil

	case *Group:
		return ctx.evalGroup(n)

	default:
		return nil, &CallError{Msg: fmt.Sprintf("cannot evaluate %T", e)}
	}
}

// evalGroup applies the call protocol described in the file header.
func (ctx *ExecutionContext) evalGroup(g *Group) (any, error) {
	if len(g.Values) == 0 {
		return nil, &CallError{Msg: "empty group"}
	}

	head, err := ctx.Eval(g.Values[0])
	if err != nil {
		return nil, err
	}

	tail := g.Values[1:]
	var args []Expr
	var kwargs []KeywordArg
	seen := make(map[string]bool)
	for i := 0; i < len(tail); i++ {
		a, ok := tail[i].(*Atom)
		if ok && strings.HasPrefix(a.Value, ":") {
			key := a.Value[1:]
			if i+1 >= len(tail) {
				return nil, &CallError{Msg: fmt.Sprintf("missing value for keyword argument %q", key)}
			}
			if seen[key] {
				return nil, &CallError{Msg: fmt.Sprintf("duplicate keyword argument %q", key)}
			}
			seen[key] = true
			kwargs = append(kwargs, KeywordArg{Name: key, Value: tail[i+1]})
			i++
			continue
		}
		args = append(args, tail[i])
	}

	switch fn := head.(type) {
	case CallableObject:
		return fn.Call(ctx, args, kwargs)
	case Invocable:
		vals := make([]any, len(args))
		for i, node := range args {
			v, err := ctx.Eval(node)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
		kwvals := make(map[string]any, len(kwargs))
		for _, kw := range kwargs {
			v, err := ctx.Eval(kw.Value)
			if err != nil {
				return nil, err
			}
			kwvals[kw.Name] = v
		}
		return fn.Invoke(vals, kwvals)
	default:
		return nil, &CallError{Msg: fmt.Sprintf("cannot call %s", FormatValue(head))}
	}
}

// interpolationPattern matches ${...} substitutions and the $$ escape.
var interpolationPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$\$`)

// interpolate substitutes ${expr} fragments (re-parsed as Mu source and
// evaluated in this context; the last value is stringified) and turns $$
// into a literal '$'.
func (ctx *ExecutionContext) interpolate(s string) (any, error) {
	var b strings.Builder
	last := 0
	for _, m := range interpolationPattern.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		last = m[1]

		if s[m[0]:m[1]] == "$$" {
			b.WriteByte('$')
			continue
		}

		fragment := s[m[2]:m[3]]
		doc, err := Parse(fragment)
		if err != nil {
			return nil, err
		}
		if len(doc.Exprs) == 0 {
			return nil, &CallError{Msg: fmt.Sprintf("empty interpolation %q", s[m[0]:m[1]])}
		}
		var value any
		for _, e := range doc.Exprs {
			value, err = ctx.Eval(e)
			if err != nil {
				return nil, err
			}
		}
		b.WriteString(stringify(value))
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// EvalDocument evaluates each top-level expression independently, in order,
// and returns the ordered results. The first failing form aborts.
func (ctx *ExecutionContext) EvalDocument(doc *Document) ([]any, error) {
	out := make([]any, 0, len(doc.Exprs))
	for _, e := range doc.Exprs {
		v, err := ctx.Eval(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// EvalDocumentTolerant evaluates each top-level form; a failing form yields
// its error as the result value in place, and evaluation of the remaining
// forms continues. Errors inside nested, non-top-level calls still propagate
// to their enclosing top-level form.
func (ctx *ExecutionContext) EvalDocumentTolerant(doc *Document) []any {
	out := make([]any, 0, len(doc.Exprs))
	for _, e := range doc.Exprs {
		v, err := ctx.Eval(e)
		if err != nil {
			out = append(out, err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// EvalSource parses src canonically and evaluates the document. Parse errors
// come back wrapped with a caret snippet of src.
func (ctx *ExecutionContext) EvalSource(src string) ([]any, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, WrapErrorWithSource(err, src)
	}
	return ctx.EvalDocument(doc)
}

// stringify renders a substituted interpolation value: strings verbatim,
// everything else through FormatValue.
func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return FormatValue(v)
}
