// types.go — the Mu syntax tree.
//
// The tree is a closed set of variants behind the Expr interface: Atom, Str,
// Real, Int, Rational (reserved numeric forms), Group, Seq and Map, plus the
// parse root Document. Every consumer switches exhaustively over these; a new
// variant means updating every switch.
//
// Each node optionally carries trivia (TokenSpans): the exact token text and
// the whitespace/comments that followed it. A tree parsed with spans renders
// back to its source byte-for-byte. StripSpans produces the canonical,
// trivia-free counterpart used for evaluation and structural equality; a
// stripped node renders to canonical text instead.
//
// Nodes are immutable after parsing. The evaluator only reads them.
package mu

import (
	"strconv"
	"strings"
)

// Expr is a node of the Mu syntax tree. The set of implementations is closed:
// Atom, Str, Real, Int, Rational, Group, Seq, Map.
type Expr interface {
	// Render reconstructs text for this node: exact source text when trivia
	// is present, canonical text otherwise.
	Render() string
	// StripSpans returns the trivia-free counterpart of this node.
	StripSpans() Expr

	exprNode()
}

// Atom is a bare identifier/number/keyword-looking token.
type Atom struct {
	Value string
	Span  *TokenSpans
}

// Str is a string literal; Value is already escape-decoded.
type Str struct {
	Value string
	Span  *TokenSpans
}

// Real is a reserved variant for real-number literals. The parser in this
// package produces atoms for numeric text; Real exists so the data model can
// grow a numeric layer without reshaping the tree.
type Real struct {
	Value string
	Span  *TokenSpans
}

// Int is a reserved variant for integer literals.
type Int struct {
	Value int64
	Span  *TokenSpans
}

// Rational is a reserved variant for exact ratios like 1/3.
type Rational struct {
	Num  int64
	Den  int64
	Span *TokenSpans
}

// Group is a parenthesized call-form: the first child is the callee.
type Group struct {
	Values     []Expr
	Open       *TokenSpans
	Separators []TokenSpans
	Close      *TokenSpans
}

// Seq is a bracketed ordered list.
type Seq struct {
	Values     []Expr
	Open       *TokenSpans
	Separators []TokenSpans
	Close      *TokenSpans
}

// MapField is one key/value pair of a Map, with the colon trivia between.
type MapField struct {
	Key       Expr
	Value     Expr
	Separator *TokenSpans
}

// Map is a braced ordered list of key/value fields. Field order is the
// source order; duplicate keys are a concern of evaluation, not parsing.
type Map struct {
	Fields     []MapField
	Open       *TokenSpans
	Separators []TokenSpans
	Close      *TokenSpans
}

// Document is the parse root: the ordered top-level expressions plus the
// trivia that preceded the first token.
type Document struct {
	Exprs   []Expr
	Leading *Span
}

func (*Atom) exprNode()     {}
func (*Str) exprNode()      {}
func (*Real) exprNode()     {}
func (*Int) exprNode()      {}
func (*Rational) exprNode() {}
func (*Group) exprNode()    {}
func (*Seq) exprNode()      {}
func (*Map) exprNode()      {}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

func (a *Atom) Render() string {
	if a.Span != nil {
		return a.Span.Render()
	}
	return a.Value
}

func (s *Str) Render() string {
	if s.Span != nil {
		return s.Span.Render()
	}
	return quoteStringLiteral(s.Value)
}

func (r *Real) Render() string {
	if r.Span != nil {
		return r.Span.Render()
	}
	return r.Value
}

func (i *Int) Render() string {
	if i.Span != nil {
		return i.Span.Render()
	}
	return strconv.FormatInt(i.Value, 10)
}

func (r *Rational) Render() string {
	if r.Span != nil {
		return r.Span.Render()
	}
	return strconv.FormatInt(r.Num, 10) + "/" + strconv.FormatInt(r.Den, 10)
}

func (g *Group) Render() string {
	return renderContainer("(", ")", g.Values, g.Open, g.Separators, g.Close)
}

func (s *Seq) Render() string {
	return renderContainer("[", "]", s.Values, s.Open, s.Separators, s.Close)
}

func (f MapField) render() string {
	var b strings.Builder
	b.WriteString(f.Key.Render())
	if f.Separator != nil {
		b.WriteString(f.Separator.Render())
	} else {
		b.WriteString(": ")
	}
	b.WriteString(f.Value.Render())
	return b.String()
}

func (m *Map) Render() string {
	var b strings.Builder
	if m.Open != nil {
		b.WriteString(m.Open.Render())
	} else {
		b.WriteString("{")
	}
	for i, f := range m.Fields {
		if m.Open == nil && i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.render())
		if m.Separators != nil && i < len(m.Separators) {
			b.WriteString(m.Separators[i].Render())
		}
	}
	if m.Close != nil {
		b.WriteString(m.Close.Render())
	} else {
		b.WriteString("}")
	}
	return b.String()
}

// Render reconstructs the document text: exact source when parsed with spans.
func (d *Document) Render() string {
	var b strings.Builder
	if d.Leading != nil {
		b.WriteString(d.Leading.Raw)
	}
	for i, e := range d.Exprs {
		if d.Leading == nil && i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(e.Render())
	}
	return b.String()
}

func renderContainer(open, close string, values []Expr, ot *TokenSpans, seps []TokenSpans, ct *TokenSpans) string {
	var b strings.Builder
	if ot != nil {
		b.WriteString(ot.Render())
	} else {
		b.WriteString(open)
	}
	for i, v := range values {
		if ot == nil && i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(v.Render())
		if seps != nil && i < len(seps) {
			b.WriteString(seps[i].Render())
		}
	}
	if ct != nil {
		b.WriteString(ct.Render())
	} else {
		b.WriteString(close)
	}
	return b.String()
}

// quoteStringLiteral renders a canonical string literal using the Mu escape
// table (\n \t \r \0 \\ \").
func quoteStringLiteral(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		case 0:
			b.WriteString(`\0`)
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// ---------------------------------------------------------------------------
// Canonicalization
// ---------------------------------------------------------------------------

func (a *Atom) StripSpans() Expr     { return &Atom{Value: a.Value} }
func (s *Str) StripSpans() Expr      { return &Str{Value: s.Value} }
func (r *Real) StripSpans() Expr     { return &Real{Value: r.Value} }
func (i *Int) StripSpans() Expr      { return &Int{Value: i.Value} }
func (r *Rational) StripSpans() Expr { return &Rational{Num: r.Num, Den: r.Den} }

func (g *Group) StripSpans() Expr { return &Group{Values: stripAll(g.Values)} }
func (s *Seq) StripSpans() Expr   { return &Seq{Values: stripAll(s.Values)} }

func (m *Map) StripSpans() Expr {
	if len(m.Fields) == 0 {
		return &Map{}
	}
	fields := make([]MapField, len(m.Fields))
	for i, f := range m.Fields {
		fields[i] = MapField{Key: f.Key.StripSpans(), Value: f.Value.StripSpans()}
	}
	return &Map{Fields: fields}
}

// StripSpans returns the canonical, trivia-free document.
func (d *Document) StripSpans() *Document {
	return &Document{Exprs: stripAll(d.Exprs)}
}

func stripAll(values []Expr) []Expr {
	if len(values) == 0 {
		return nil
	}
	out := make([]Expr, len(values))
	for i, v := range values {
		out[i] = v.StripSpans()
	}
	return out
}

// ---------------------------------------------------------------------------
// Structural equality
// ---------------------------------------------------------------------------

// EqualExpr reports structural equality of two nodes: same variant, same
// value, same children. Trivia never participates.
func EqualExpr(a, b Expr) bool {
	switch x := a.(type) {
	case *Atom:
		y, ok := b.(*Atom)
		return ok && x.Value == y.Value
	case *Str:
		y, ok := b.(*Str)
		return ok && x.Value == y.Value
	case *Real:
		y, ok := b.(*Real)
		return ok && x.Value == y.Value
	case *Int:
		y, ok := b.(*Int)
		return ok && x.Value == y.Value
	case *Rational:
		y, ok := b.(*Rational)
		return ok && x.Num == y.Num && x.Den == y.Den
	case *Group:
		y, ok := b.(*Group)
		return ok && equalExprs(x.Values, y.Values)
	case *Seq:
		y, ok := b.(*Seq)
		return ok && equalExprs(x.Values, y.Values)
	case *Map:
		y, ok := b.(*Map)
		if !ok || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if !EqualExpr(x.Fields[i].Key, y.Fields[i].Key) ||
				!EqualExpr(x.Fields[i].Value, y.Fields[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func equalExprs(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !EqualExpr(a[i], b[i]) {
			return false
		}
	}
	return true
}

// kindName names the variant of a node, used by quoted-parameter checks and
// diagnostics.
func kindName(e Expr) string {
	switch e.(type) {
	case *Atom:
		return "Atom"
	case *Str:
		return "Str"
	case *Real:
		return "Real"
	case *Int:
		return "Int"
	case *Rational:
		return "Rational"
	case *Group:
		return "Group"
	case *Seq:
		return "Seq"
	case *Map:
		return "Map"
	default:
		return "Expr"
	}
}
