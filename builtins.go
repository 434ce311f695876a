// builtins.go — an optional standard builtin set.
//
// The Mu core ships no built-in names: a fresh ExecutionContext is empty and
// hosts register exactly what their configuration surface needs. This file
// is the small default vocabulary the CLI installs, and doubles as the
// reference for how registration, quoting and declared types are meant to be
// used.
//
// Arithmetic works over quoted numeric atoms: numbers are not self-resolving
// names in the environment, so (add 1 2) declares both parameters as
// Quoted[Atom] and parses the atom text with exact decimal arithmetic.
package mu

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RegisterBuiltins installs the standard builtins into ctx:
//
//	quote render str concat signature add sub mul div
func RegisterBuiltins(ctx *ExecutionContext) {
	ctx.Register("quote",
		[]Param{{Name: "expr", Type: QuotedType(TExpr)}}, TExpr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			return call.MustArg("expr"), nil
		})

	ctx.Register("render",
		[]Param{{Name: "expr", Type: QuotedType(TExpr)}}, TStr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			q, err := quotedArg(call, "expr")
			if err != nil {
				return nil, err
			}
			return q.Expr.Render(), nil
		})

	ctx.Register("str",
		[]Param{{Name: "value", Type: Any}}, TStr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			v, ok := call.Arg("value")
			if !ok {
				return nil, &CallError{Msg: "str: missing argument \"value\""}
			}
			return stringify(v), nil
		})

	ctx.Register("concat",
		[]Param{{Name: "a", Type: Any}, {Name: "b", Type: Any}}, TStr,
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			a, aok := call.Arg("a")
			b, bok := call.Arg("b")
			if !aok || !bok {
				return nil, &CallError{Msg: "concat: missing argument"}
			}
			return stringify(a) + stringify(b), nil
		})

	ctx.Register("signature",
		[]Param{{Name: "name", Type: QuotedType(TAtom)}}, TStr,
		func(ctx *ExecutionContext, call *CallArgs) (any, error) {
			q, err := quotedArg(call, "name")
			if err != nil {
				return nil, err
			}
			return ctx.FunctionSignatureString(q.Expr.(*Atom).Value), nil
		})

	registerArith(ctx, "add", func(a, b decimal.Decimal) (decimal.Decimal, error) {
		return a.Add(b), nil
	})
	registerArith(ctx, "sub", func(a, b decimal.Decimal) (decimal.Decimal, error) {
		return a.Sub(b), nil
	})
	registerArith(ctx, "mul", func(a, b decimal.Decimal) (decimal.Decimal, error) {
		return a.Mul(b), nil
	})
	registerArith(ctx, "div", func(a, b decimal.Decimal) (decimal.Decimal, error) {
		if b.IsZero() {
			return decimal.Decimal{}, &CallError{Msg: "div: division by zero"}
		}
		return a.Div(b), nil
	})
}

func registerArith(ctx *ExecutionContext, name string, op func(a, b decimal.Decimal) (decimal.Decimal, error)) {
	ctx.Register(name,
		[]Param{
			{Name: "a", Type: QuotedType(TAtom)},
			{Name: "b", Type: QuotedType(TAtom)},
		},
		T("Dec"),
		func(_ *ExecutionContext, call *CallArgs) (any, error) {
			a, err := decimalArg(call, name, "a")
			if err != nil {
				return nil, err
			}
			b, err := decimalArg(call, name, "b")
			if err != nil {
				return nil, err
			}
			return op(a, b)
		})
}

func quotedArg(call *CallArgs, name string) (Quoted, error) {
	v, ok := call.Arg(name)
	if !ok {
		return Quoted{}, &CallError{Msg: fmt.Sprintf("missing argument %q", name)}
	}
	q, ok := v.(Quoted)
	if !ok {
		return Quoted{}, &TypeError{Msg: fmt.Sprintf("argument %q is not a quoted node", name)}
	}
	return q, nil
}

func decimalArg(call *CallArgs, fn, name string) (decimal.Decimal, error) {
	q, err := quotedArg(call, name)
	if err != nil {
		return decimal.Decimal{}, err
	}
	atom, ok := q.Expr.(*Atom)
	if !ok {
		return decimal.Decimal{}, &TypeError{Msg: fmt.Sprintf("%s: argument %q is not an atom", fn, name)}
	}
	d, err := decimal.NewFromString(atom.Value)
	if err != nil {
		return decimal.Decimal{}, &TypeError{Msg: fmt.Sprintf("%s: %q is not a number", fn, atom.Value)}
	}
	return d, nil
}
