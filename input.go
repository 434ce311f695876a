// input.go — positions, spans and the character cursor used by the parser.
//
// A Pos is a point in the source text (1-based line/column, 0-based character
// index). A Span is a half-open region [Start, End) together with the exact
// raw text it covers; the invariant `len(Raw) == End.Index - Start.Index`
// (counted in characters) is validated on construction and treated as an
// internal bug when violated, never as user input error.
//
// Spans support Python-style slicing (negative offsets count from the end,
// out-of-range offsets clamp) and concatenation of contiguous spans. Both
// recompute line/column information by walking the raw text one character at
// a time, so a sliced span still points at the right place in the original
// source. Walking backwards over a newline is impossible (a position does not
// remember the width of the previous line) and reported as a SpanError.
//
// The private `input` type is the parser's cursor: it tracks the current
// character (NUL sentinel at end of stream), the running position, and an
// independent mark used to capture trivia spans between tokens.
package mu

import "fmt"

// Pos is a location in source text. Line and Col are 1-based, Index is the
// 0-based character offset from the start of the input.
type Pos struct {
	Line  int
	Col   int
	Index int
}

// ForwardVia returns the position one step forward, assuming ch is the
// character at p. Crossing a newline bumps the line and resets the column.
func (p Pos) ForwardVia(ch rune) Pos {
	if ch == '\n' {
		return Pos{Line: p.Line + 1, Col: 1, Index: p.Index + 1}
	}
	return Pos{Line: p.Line, Col: p.Col + 1, Index: p.Index + 1}
}

// BackwardVia returns the position one step back, assuming ch is the
// character immediately before p. Moving back over a newline fails: the
// position does not retain the column width of the previous line.
func (p Pos) BackwardVia(ch rune) (Pos, error) {
	if ch == '\n' {
		return Pos{}, &SpanError{Msg: "cannot move backwards over a newline"}
	}
	return Pos{Line: p.Line, Col: p.Col - 1, Index: p.Index - 1}, nil
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Span is a region of source text with its exact raw content.
type Span struct {
	Start Pos
	End   Pos
	Raw   string
}

// NewSpan validates the span length invariant and returns the span.
// A mismatch between the raw text and the positions signals a bug in the
// producing code and is surfaced as a SpanError.
func NewSpan(start, end Pos, raw string) (Span, error) {
	if n := len([]rune(raw)); n != end.Index-start.Index {
		return Span{}, &SpanError{Msg: fmt.Sprintf(
			"span raw text has %d characters but positions cover %d",
			n, end.Index-start.Index)}
	}
	return Span{Start: start, End: end, Raw: raw}, nil
}

// Len returns the number of characters the span covers.
func (s Span) Len() int { return s.End.Index - s.Start.Index }

// Slice extracts the sub-span [i, j) with Python slice semantics: negative
// offsets count from the end of the span and out-of-range offsets clamp to
// the span bounds. Start and end positions of the result are recomputed by
// walking the raw text, so they remain valid positions in the original
// source. Slicing backwards over a newline fails.
func (s Span) Slice(i, j int) (Span, error) {
	runes := []rune(s.Raw)
	length := len(runes)

	if i < 0 {
		i = length + i
	}
	if j < 0 {
		j = length + j
	}
	if i < 0 {
		i = 0
	}
	if i > length {
		i = length
	}
	if j < 0 {
		j = 0
	}
	if j > length {
		j = length
	}
	if j < i {
		j = i
	}

	start := s.Start
	for k := 0; k < i; k++ {
		start = start.ForwardVia(runes[k])
	}

	end := s.End
	for k := 0; k < length-j; k++ {
		var err error
		end, err = end.BackwardVia(runes[length-1-k])
		if err != nil {
			return Span{}, err
		}
	}

	return NewSpan(start, end, string(runes[i:j]))
}

// Concat merges s with other when they are contiguous (s ends exactly where
// other starts). Non-adjacent spans cannot be merged.
func (s Span) Concat(other Span) (Span, error) {
	if s.End.Index != other.Start.Index {
		return Span{}, &SpanError{Msg: fmt.Sprintf(
			"cannot concatenate spans that are not contiguous: end index %d, start index %d",
			s.End.Index, other.Start.Index)}
	}
	return NewSpan(s.Start, other.End, s.Raw+other.Raw)
}

// TokenSpans carries the trivia attached to one token: the token's own text
// and the whitespace/comment run that followed it before the next token.
// Rendering concatenates the two, which is what makes a parsed tree
// reproduce its source exactly.
type TokenSpans struct {
	Token *Span
	Space *Span
}

// Render returns the token text followed by its trailing trivia. Nil
// receivers and nil parts render as the empty string.
func (ts *TokenSpans) Render() string {
	if ts == nil {
		return ""
	}
	out := ""
	if ts.Token != nil {
		out += ts.Token.Raw
	}
	if ts.Space != nil {
		out += ts.Space.Raw
	}
	return out
}

// eos is the sentinel returned by the cursor once the input is exhausted.
const eos = rune(0)

// input is the parser's character cursor over an immutable source buffer.
// It keeps the running position and a mark; capture() produces the span
// between the mark and the current position and re-marks.
type input struct {
	src []rune

	index int
	line  int
	col   int

	markIndex int
	markLine  int
	markCol   int

	current rune
}

func newInput(src string) *input {
	in := &input{
		src:      []rune(src),
		line:     1,
		col:      1,
		markLine: 1,
		markCol:  1,
		current:  eos,
	}
	if len(in.src) > 0 {
		in.current = in.src[0]
	}
	return in
}

func (in *input) position() Pos {
	return Pos{Line: in.line, Col: in.col, Index: in.index}
}

// next advances by one character, updating line/column. Advancing past the
// end of the input leaves the cursor at the sentinel.
func (in *input) next() {
	if in.index >= len(in.src) {
		in.current = eos
		return
	}
	if in.current == '\n' {
		in.line++
		in.col = 1
	} else {
		in.col++
	}
	in.index++
	if in.index >= len(in.src) {
		in.current = eos
	} else {
		in.current = in.src[in.index]
	}
}

// capture returns the span from the mark to the current position and moves
// the mark up to the current position.
func (in *input) capture() Span {
	start := Pos{Line: in.markLine, Col: in.markCol, Index: in.markIndex}
	span := Span{Start: start, End: in.position(), Raw: string(in.src[in.markIndex:in.index])}
	in.markIndex = in.index
	in.markLine = in.line
	in.markCol = in.col
	return span
}
