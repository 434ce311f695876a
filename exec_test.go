package mu

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// evalOne parses src, requires exactly one top-level form and evaluates it.
func evalOne(t *testing.T, ctx *ExecutionContext, src string) (any, error) {
	t.Helper()
	doc, err := Parse(src)
	require.NoError(t, err, "parse %q", src)
	require.Len(t, doc.Exprs, 1, "source %q", src)
	return ctx.Eval(doc.Exprs[0])
}

func mustEval(t *testing.T, ctx *ExecutionContext, src string) any {
	t.Helper()
	v, err := evalOne(t, ctx, src)
	require.NoError(t, err, "eval %q", src)
	return v
}

// --- atoms and literals ----------------------------------------------------

func Test_Eval_AtomLookup(t *testing.T) {
	ctx := NewContext()
	ctx.Define("name", "mu")
	require.Equal(t, "mu", mustEval(t, ctx, "name"))
}

func Test_Eval_UndefinedName(t *testing.T) {
	ctx := NewContext()
	_, err := evalOne(t, ctx, "nope")
	var ne *NameError
	require.ErrorAs(t, err, &ne)
	require.Equal(t, "nope", ne.Name)
}

func Test_Eval_PlainString(t *testing.T) {
	ctx := NewContext()
	require.Equal(t, "just text", mustEval(t, ctx, `"just text"`))
}

func Test_Eval_NumericNodes(t *testing.T) {
	ctx := NewContext()

	v, err := ctx.Eval(&Int{Value: 42})
	require.NoError(t, err)
	require.Equal(t, int64(42), v)

	v, err = ctx.Eval(&Real{Value: "0.1"})
	require.NoError(t, err)
	require.True(t, v.(decimal.Decimal).Equal(decimal.RequireFromString("0.1")))

	v, err = ctx.Eval(&Rational{Num: 1, Den: 3})
	require.NoError(t, err)
	require.Equal(t, 0, v.(*big.Rat).Cmp(big.NewRat(1, 3)))

	_, err = ctx.Eval(&Rational{Num: 1, Den: 0})
	var te *TypeError
	require.ErrorAs(t, err, &te)
}

// --- interpolation ---------------------------------------------------------

func Test_Eval_Interpolation(t *testing.T) {
	ctx := NewContext()
	ctx.Define("name", "World")
	require.Equal(t, "Hello, World!", mustEval(t, ctx, `"Hello, ${name}!"`))
}

func Test_Eval_InterpolationCallsBack(t *testing.T) {
	ctx := NewContext()
	ctx.Define("get_user", InvocableFunc(func(args []any, kwargs map[string]any) (any, error) {
		return "Ada", nil
	}))
	require.Equal(t, "Hello, Ada!", mustEval(t, ctx, `"Hello, ${(get_user)}!"`))
}

func Test_Eval_InterpolationLastValueWins(t *testing.T) {
	ctx := NewContext()
	ctx.Define("a", "first")
	ctx.Define("b", "second")
	require.Equal(t, "got second", mustEval(t, ctx, `"got ${a b}"`))
}

func Test_Eval_InterpolationDollarEscape(t *testing.T) {
	ctx := NewContext()
	require.Equal(t, "cost: $5", mustEval(t, ctx, `"cost: $$5"`))
	// A '$' that is neither "$$" nor "${...}" stays as-is.
	require.Equal(t, "lone $ char", mustEval(t, ctx, `"lone $ char"`))
}

func Test_Eval_InterpolationStringifiesValues(t *testing.T) {
	ctx := NewContext()
	ctx.Define("n", int64(3))
	ctx.Define("xs", []any{"a", "b"})
	require.Equal(t, "n=3", mustEval(t, ctx, `"n=${n}"`))
	require.Equal(t, `xs=["a", "b"]`, mustEval(t, ctx, `"xs=${xs}"`))
}

func Test_Eval_InterpolationErrorPropagates(t *testing.T) {
	ctx := NewContext()
	_, err := evalOne(t, ctx, `"oops ${missing}"`)
	var ne *NameError
	require.ErrorAs(t, err, &ne)
}

// --- sequences and maps ----------------------------------------------------

func Test_Eval_Seq(t *testing.T) {
	ctx := NewContext()
	ctx.Define("x", "ex")
	require.Equal(t, []any{"ex", "lit"}, mustEval(t, ctx, `[x "lit"]`))
}

func Test_Eval_MapOrderAndDuplicates(t *testing.T) {
	ctx := NewContext()
	ctx.Define("a", "ka")
	ctx.Define("b", "kb")
	ctx.Define("one", "1")
	ctx.Define("two", "2")
	ctx.Define("three", "3")

	v := mustEval(t, ctx, "{a: one, b: two, a: three}")
	m := v.(*MapValue)
	require.Equal(t, 2, m.Len())

	// The duplicate keeps its first position but takes the last value.
	entries := m.Entries()
	require.Equal(t, "ka", entries[0].Key)
	require.Equal(t, "3", entries[0].Value)
	require.Equal(t, "kb", entries[1].Key)
	require.Equal(t, "2", entries[1].Value)
}

func Test_Eval_MapUncomparableKeys(t *testing.T) {
	// Function-valued keys have no Go equality; they must evaluate without
	// panicking and simply never merge.
	ctx := NewContext()
	ctx.Define("f", InvocableFunc(func([]any, map[string]any) (any, error) {
		return nil, nil
	}))

	v, err := evalOne(t, ctx, `{f: "a", f: "b"}`)
	require.NoError(t, err)
	m := v.(*MapValue)
	require.Equal(t, 2, m.Len())

	fn, _ := ctx.Lookup("f")
	_, found := m.Get(fn)
	require.False(t, found)
}

func Test_Eval_MapStructuralKeys(t *testing.T) {
	m := &MapValue{}
	m.Set([]any{"a", "b"}, 1)
	m.Set([]any{"a", "b"}, 2)
	require.Equal(t, 1, m.Len())
	v, ok := m.Get([]any{"a", "b"})
	require.True(t, ok)
	require.Equal(t, 2, v)
}

// --- calls -----------------------------------------------------------------

func Test_Eval_EmptyGroup(t *testing.T) {
	ctx := NewContext()
	_, err := evalOne(t, ctx, "()")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
}

func Test_Eval_NotCallable(t *testing.T) {
	ctx := NewContext()
	ctx.Define("s", "just a string")
	_, err := evalOne(t, ctx, "(s)")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Msg, "cannot call")
}

func Test_Eval_InvocableEagerArguments(t *testing.T) {
	ctx := NewContext()
	ctx.Define("x", "ex")
	var got []any
	var gotKw map[string]any
	ctx.Define("f", InvocableFunc(func(args []any, kwargs map[string]any) (any, error) {
		got, gotKw = args, kwargs
		return "ok", nil
	}))

	v := mustEval(t, ctx, `(f x "lit" :mode "fast")`)
	require.Equal(t, "ok", v)
	require.Equal(t, []any{"ex", "lit"}, got)
	require.Equal(t, map[string]any{"mode": "fast"}, gotKw)
}

func Test_Eval_RegisteredFunction(t *testing.T) {
	ctx := NewContext()
	ctx.Register("join",
		[]Param{{Name: "a", Type: TStr}, {Name: "b", Type: TStr}}, TStr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			return call.MustArg("a").(string) + "/" + call.MustArg("b").(string), nil
		})

	require.Equal(t, "x/y", mustEval(t, ctx, `(join "x" "y")`))
	// Positional and keyword binding mix by declared name.
	require.Equal(t, "x/y", mustEval(t, ctx, `(join "x" :b "y")`))
	require.Equal(t, "x/y", mustEval(t, ctx, `(join :b "y" :a "x")`))
}

func Test_Eval_QuotedParameter(t *testing.T) {
	ctx := NewContext()
	ctx.Register("inspect",
		[]Param{{Name: "form", Type: QuotedType(TGroup)}}, TStr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			q := call.MustArg("form").(Quoted)
			return q.Expr.Render(), nil
		})

	// The argument must never be evaluated: undefined-name atoms inside are fine.
	require.Equal(t, "(undefined names here)", mustEval(t, ctx, "(inspect (undefined names here))"))
}

func Test_Eval_QuotedParameterKindMismatch(t *testing.T) {
	ctx := NewContext()
	ctx.Register("inspect",
		[]Param{{Name: "form", Type: QuotedType(TGroup)}}, TStr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			return nil, nil
		})

	_, err := evalOne(t, ctx, "(inspect [not a group])")
	var te *TypeError
	require.ErrorAs(t, err, &te)
	require.Contains(t, te.Msg, "Group")
	require.Contains(t, te.Msg, "Seq")
}

func Test_Eval_ExtraPositionalsDropped(t *testing.T) {
	ctx := NewContext()
	evaluated := false
	ctx.Define("boom", InvocableFunc(func([]any, map[string]any) (any, error) {
		evaluated = true
		return nil, nil
	}))
	ctx.Register("one",
		[]Param{{Name: "a", Type: Any}}, Any,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			return call.MustArg("a"), nil
		})

	// The extra argument is dropped without being evaluated.
	require.Equal(t, "kept", mustEval(t, ctx, `(one "kept" (boom))`))
	require.False(t, evaluated)
}

func Test_Eval_UnknownKeywordIgnored(t *testing.T) {
	ctx := NewContext()
	ctx.Register("one",
		[]Param{{Name: "a", Type: Any}}, Any,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			return call.MustArg("a"), nil
		})

	require.Equal(t, "v", mustEval(t, ctx, `(one "v" :bogus (would fail))`))
}

func Test_Eval_DuplicateKeyword(t *testing.T) {
	ctx := NewContext()
	ctx.Define("f", InvocableFunc(func([]any, map[string]any) (any, error) { return nil, nil }))
	_, err := evalOne(t, ctx, `(f :x 1 :x 2)`)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Msg, "duplicate")
}

func Test_Eval_KeywordValuesEvaluateInSourceOrder(t *testing.T) {
	ctx := NewContext()
	var order []string
	ctx.Define("mark", InvocableFunc(func(args []any, _ map[string]any) (any, error) {
		order = append(order, args[0].(string))
		return args[0], nil
	}))

	// Eager (Invocable) callee.
	ctx.Define("f", InvocableFunc(func([]any, map[string]any) (any, error) { return nil, nil }))
	mustEval(t, ctx, `(f :b (mark "first") :a (mark "second"))`)
	require.Equal(t, []string{"first", "second"}, order)

	// Signature-carrying callee: binding follows source order too, not the
	// declared parameter order.
	order = nil
	ctx.Register("g",
		[]Param{{Name: "a", Type: Any}, {Name: "b", Type: Any}}, Any,
		func(*ExecutionContext, *CallArgs) (any, error) { return nil, nil })
	mustEval(t, ctx, `(g :b (mark "first") :a (mark "second"))`)
	require.Equal(t, []string{"first", "second"}, order)
}

func Test_Eval_KeywordMissingValue(t *testing.T) {
	ctx := NewContext()
	ctx.Define("f", InvocableFunc(func([]any, map[string]any) (any, error) { return nil, nil }))
	_, err := evalOne(t, ctx, `(f :x)`)
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Msg, `"x"`)
}

// --- signatures ------------------------------------------------------------

func Test_FunctionSignature_String(t *testing.T) {
	sig := FunctionSignature{
		Params: []Param{
			{Name: "a", Type: T("Int")},
			{Name: "b", Type: T("Int")},
		},
		Return: T("Int"),
	}
	require.Equal(t, "(a: Int, b: Int) -> Int", sig.String())

	sig = FunctionSignature{
		Params: []Param{
			{Name: "form", Type: QuotedType(TGroup)},
			{Name: "names", Type: T("List", TStr)},
		},
		Return: Any,
	}
	require.Equal(t, "(form: Quoted[Group], names: List[Str]) -> Any", sig.String())
}

func Test_FunctionSignatureString_Lookup(t *testing.T) {
	ctx := NewContext()
	ctx.Register("f", []Param{{Name: "a", Type: TStr}}, TStr,
		func(*ExecutionContext, *CallArgs) (any, error) { return nil, nil })

	require.Equal(t, "(a: Str) -> Str", ctx.FunctionSignatureString("f"))
	require.Contains(t, ctx.FunctionSignatureString("g"), "not found")

	ctx.Define("v", "not a function")
	require.Contains(t, ctx.FunctionSignatureString("v"), "not found")
}

// --- foreign symbols -------------------------------------------------------

func Test_Eval_ForeignValue(t *testing.T) {
	reg := NewRegistryResolver()
	reg.RegisterValue("app.config", "version", "1.2.3")

	ctx := NewContext()
	ctx.SetResolver("go.", reg)
	require.Equal(t, "1.2.3", mustEval(t, ctx, "go.app.config/version"))
}

func Test_Eval_ForeignInvocableEager(t *testing.T) {
	reg := NewRegistryResolver()
	reg.RegisterInvocable("strings", "upper", InvocableFunc(func(args []any, _ map[string]any) (any, error) {
		return strings.ToUpper(args[0].(string)), nil
	}), nil)

	ctx := NewContext()
	ctx.SetResolver("go.", reg)
	require.Equal(t, "HI", mustEval(t, ctx, `(go.strings/upper "hi")`))
}

func Test_Eval_ForeignInvocableWithSignature(t *testing.T) {
	// A known signature makes a foreign invocable bind like a registered
	// function, including quoted parameters.
	reg := NewRegistryResolver()
	reg.RegisterInvocable("meta", "render", InvocableFunc(func(args []any, _ map[string]any) (any, error) {
		return args[0].(Quoted).Expr.Render(), nil
	}), &FunctionSignature{
		Params: []Param{{Name: "form", Type: QuotedType(TExpr)}},
		Return: TStr,
	})

	ctx := NewContext()
	ctx.SetResolver("go.", reg)
	require.Equal(t, "(raw form)", mustEval(t, ctx, "(go.meta/render (raw form))"))
}

func Test_Eval_ForeignFunc(t *testing.T) {
	reg := NewRegistryResolver()
	reg.RegisterFunc("text", "repeat",
		[]Param{{Name: "s", Type: TStr}, {Name: "sep", Type: TStr}}, TStr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			s := call.MustArg("s").(string)
			return s + call.MustArg("sep").(string) + s, nil
		})

	ctx := NewContext()
	ctx.SetResolver("go.", reg)
	require.Equal(t, "a-a", mustEval(t, ctx, `(go.text/repeat "a" :sep "-")`))
}

func Test_Eval_ForeignNoResolver(t *testing.T) {
	ctx := NewContext()
	_, err := evalOne(t, ctx, "go.math/pi")
	var ce *CallError
	require.ErrorAs(t, err, &ce)
	require.Contains(t, ce.Msg, "resolver")
}

func Test_Eval_ForeignUnknownMember(t *testing.T) {
	ctx := NewContext()
	ctx.SetResolver("go.", NewRegistryResolver())
	_, err := evalOne(t, ctx, "go.math/pi")
	var ne *NameError
	require.ErrorAs(t, err, &ne)
}

func Test_Eval_ForeignSyntaxRequiresMember(t *testing.T) {
	// Without a "/member" part the atom is an ordinary environment lookup
	// even when it carries the prefix.
	ctx := NewContext()
	ctx.SetResolver("go.", NewRegistryResolver())
	_, err := evalOne(t, ctx, "go.math")
	var ne *NameError
	require.ErrorAs(t, err, &ne)
	require.Equal(t, "go.math", ne.Name)
}

func Test_Eval_CustomResolverPrefix(t *testing.T) {
	reg := NewRegistryResolver()
	reg.RegisterValue("env", "user", "root")

	ctx := NewContext()
	ctx.SetResolver("host.", reg)
	require.Equal(t, "root", mustEval(t, ctx, "host.env/user"))
}

// --- documents -------------------------------------------------------------

func Test_EvalDocument(t *testing.T) {
	ctx := NewContext()
	ctx.Define("a", "va")
	ctx.Define("b", "vb")

	vals, err := ctx.EvalSource("a b")
	require.NoError(t, err)
	require.Equal(t, []any{"va", "vb"}, vals)
}

func Test_EvalDocument_FirstErrorAborts(t *testing.T) {
	ctx := NewContext()
	ctx.Define("ok", "fine")
	_, err := ctx.EvalSource("ok missing ok")
	var ne *NameError
	require.ErrorAs(t, err, &ne)
}

func Test_EvalDocumentTolerant(t *testing.T) {
	ctx := NewContext()
	ctx.Define("ok", "fine")

	doc, err := Parse("ok missing ok")
	require.NoError(t, err)

	vals := ctx.EvalDocumentTolerant(doc)
	require.Len(t, vals, 3)
	require.Equal(t, "fine", vals[0])
	e, isErr := vals[1].(error)
	require.True(t, isErr)
	var ne *NameError
	require.True(t, errors.As(e, &ne))
	require.Equal(t, "fine", vals[2])
}

func Test_EvalSource_ParseErrorHasSnippet(t *testing.T) {
	ctx := NewContext()
	_, err := ctx.EvalSource("(a b")
	require.Error(t, err)
	require.Contains(t, err.Error(), "PARSE ERROR")
	require.Contains(t, err.Error(), "^")
}

// --- host value formatting --------------------------------------------------

func Test_FormatValue(t *testing.T) {
	ctx := NewContext()
	ctx.Register("f", []Param{{Name: "a", Type: TStr}}, TStr,
		func(*ExecutionContext, *CallArgs) (any, error) { return nil, nil })
	fn, _ := ctx.Lookup("f")

	cases := []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{true, "true"},
		{"s", `"s"`},
		{"tab\there", `"tab\there"`},
		{int64(7), "7"},
		{3.5, "3.5"},
		{decimal.RequireFromString("0.3"), "0.3"},
		{big.NewRat(1, 3), "1/3"},
		{[]any{int64(1), "x"}, `[1, "x"]`},
		{Quoted{Expr: &Atom{Value: "sym"}}, "sym"},
		{fn, "<fn (a: Str) -> Str>"},
		{InvocableFunc(func([]any, map[string]any) (any, error) { return nil, nil }), "<fn>"},
		{fmt.Errorf("went wrong"), "error: went wrong"},
	}
	for _, c := range cases {
		require.Equal(t, c.want, FormatValue(c.in), "value %#v", c.in)
	}

	m := &MapValue{}
	m.Set("k", int64(1))
	m.Set([]any{"a"}, "v")
	require.Equal(t, `{"k": 1, ["a"]: "v"}`, FormatValue(m))
}
