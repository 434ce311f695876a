// parser.go — character-level recursive descent for Mu.
//
// There is no separate tokenization pass: the parser reads the cursor from
// input.go directly, skipping whitespace and ";"-to-end-of-line comments
// between tokens and capturing them as trailing trivia on the preceding
// token. A tree produced by ParseWithSpans therefore renders back to the
// original text exactly.
//
// Grammar (informal):
//
//	expr     := group | seq | string | raw-string | map | atom
//	group    := '(' expr* ')'            commas between items are skipped
//	seq      := '[' expr* ']'            commas between items are skipped
//	map      := '{' field (',' field)* '}'
//	field    := (atom-ending-in-colon | expr ':') expr
//	string   := '"' (escape | char)* '"'
//	raw-str  := '#' tag '"' char* '"' tag     tag = alnum run
//	atom     := run of chars excluding whitespace and ()[]{}",
//	document := expr*
//
// Errors abort the parse immediately; there is no recovery or resync.
package mu

import (
	"fmt"
	"unicode"
)

// Parse parses src into a canonical (trivia-free) document.
func Parse(src string) (*Document, error) {
	doc, err := ParseWithSpans(src)
	if err != nil {
		return nil, err
	}
	return doc.StripSpans(), nil
}

// ParseWithSpans parses src into a document that retains all trivia, so
// doc.Render() reproduces src exactly.
func ParseWithSpans(src string) (*Document, error) {
	in := newInput(src)
	leading := skipWhitespace(in)

	var exprs []Expr
	for in.current != eos {
		e, err := parseOne(in)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return &Document{Exprs: exprs, Leading: &leading}, nil
}

func parseOne(in *input) (Expr, error) {
	skipWhitespace(in)
	switch in.current {
	case '(':
		return parseGroup(in)
	case '[':
		return parseSeq(in)
	case '"':
		return parseString(in)
	case '#':
		return parseRawString(in)
	case '{':
		return parseMap(in)
	default:
		return parseAtom(in)
	}
}

// skipWhitespace consumes whitespace and ";" line comments (including the
// terminating newline) and returns the span it covered.
func skipWhitespace(in *input) Span {
	for {
		if in.current == eos {
			break
		}
		if unicode.IsSpace(in.current) {
			in.next()
		} else if in.current == ';' {
			for in.current != '\n' && in.current != eos {
				in.next()
			}
			if in.current != eos {
				in.next()
			}
		} else {
			break
		}
	}
	return in.capture()
}

func parseErrorAt(in *input, incomplete bool, format string, args ...any) error {
	p := in.position()
	return &ParseError{Line: p.Line, Col: p.Col, Msg: fmt.Sprintf(format, args...), Incomplete: incomplete}
}

func tokenTrivia(in *input) *TokenSpans {
	tok := in.capture()
	space := skipWhitespace(in)
	return &TokenSpans{Token: &tok, Space: &space}
}

func parseGroup(in *input) (Expr, error) {
	in.next() // '('
	open := tokenTrivia(in)

	var values []Expr
	var separators []TokenSpans
	for in.current != ')' {
		if in.current == eos {
			return nil, parseErrorAt(in, true, "unexpected end of input")
		}
		v, err := parseOne(in)
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		if in.current == ',' {
			in.next()
		}
		separators = append(separators, *tokenTrivia(in))
	}
	in.next() // ')'
	close := tokenTrivia(in)

	return &Group{Values: values, Open: open, Separators: separators, Close: close}, nil
}

func parseSeq(in *input) (Expr, error) {
	in.next() // '['
	open := tokenTrivia(in)

	var values []Expr
	var separators []TokenSpans
	for in.current != ']' {
		if in.current == eos {
			return nil, parseErrorAt(in, true, "unexpected end of input")
		}
		v, err := parseOne(in)
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		if in.current == ',' {
			in.next()
		}
		separators = append(separators, *tokenTrivia(in))
	}
	in.next() // ']'
	close := tokenTrivia(in)

	return &Seq{Values: values, Open: open, Separators: separators, Close: close}, nil
}

// isAtomBoundary reports characters that terminate an atom. Note that ';' is
// not a boundary: a comment only starts between tokens.
func isAtomBoundary(ch rune) bool {
	switch ch {
	case eos, '(', ')', '[', ']', ',', '{', '}', '"':
		return true
	}
	return unicode.IsSpace(ch)
}

func parseAtom(in *input) (Expr, error) {
	if isAtomBoundary(in.current) {
		if in.current == eos {
			return nil, parseErrorAt(in, true, "unexpected end of input")
		}
		return nil, parseErrorAt(in, false, "unexpected character %q", in.current)
	}

	var value []rune
	for !isAtomBoundary(in.current) {
		value = append(value, in.current)
		in.next()
	}
	return &Atom{Value: string(value), Span: tokenTrivia(in)}, nil
}

func parseString(in *input) (Expr, error) {
	in.next() // '"'

	var value []rune
	for in.current != '"' {
		if in.current == eos {
			return nil, parseErrorAt(in, true, "unexpected end of input")
		}
		if in.current == '\\' {
			in.next()
			switch in.current {
			case 'n':
				value = append(value, '\n')
			case 't':
				value = append(value, '\t')
			case 'r':
				value = append(value, '\r')
			case '0':
				value = append(value, 0)
			case '\\':
				value = append(value, '\\')
			case '"':
				value = append(value, '"')
			case eos:
				return nil, parseErrorAt(in, true, "unexpected end of input")
			default:
				return nil, parseErrorAt(in, false, "invalid escape sequence '\\%c'", in.current)
			}
			in.next()
		} else {
			value = append(value, in.current)
			in.next()
		}
	}
	in.next() // closing '"'

	return &Str{Value: string(value), Span: tokenTrivia(in)}, nil
}

// parseRawString parses #tag"..."tag. The content runs until a '"' followed
// by exactly the tag; a '"' with only a partial tag match is literal content,
// including the matched part.
func parseRawString(in *input) (Expr, error) {
	in.next() // '#'

	var tag []rune
	for unicode.IsLetter(in.current) || unicode.IsDigit(in.current) {
		tag = append(tag, in.current)
		in.next()
	}
	if in.current != '"' {
		if in.current == eos {
			return nil, parseErrorAt(in, true, "unexpected end of input")
		}
		return nil, parseErrorAt(in, false, "expected '\"' after raw string tag, got %q", in.current)
	}
	in.next()

	var value []rune
	for {
		if in.current == eos {
			return nil, parseErrorAt(in, true, "unexpected end of input")
		}
		if in.current != '"' {
			value = append(value, in.current)
			in.next()
			continue
		}
		in.next()
		if len(tag) == 0 {
			break
		}

		count := 0
		for in.current == tag[count] {
			count++
			in.next()
			if count == len(tag) {
				break
			}
		}
		if count == len(tag) {
			break
		}

		value = append(value, '"')
		value = append(value, tag[:count]...)
	}

	return &Str{Value: string(value), Span: tokenTrivia(in)}, nil
}

func parseMap(in *input) (Expr, error) {
	in.next() // '{'
	open := tokenTrivia(in)

	var fields []MapField
	var separators []TokenSpans
	for in.current != '}' {
		if in.current == eos {
			return nil, parseErrorAt(in, true, "unexpected end of input")
		}

		key, err := parseOne(in)
		if err != nil {
			return nil, err
		}

		var colon *TokenSpans
		if a, ok := key.(*Atom); ok && len(a.Value) > 0 && a.Value[len(a.Value)-1] == ':' {
			// The author wrote "key:" as one token; split the trailing colon
			// off the atom and use it as the field separator.
			key, colon, err = splitColonAtom(a)
			if err != nil {
				return nil, err
			}
		} else {
			if in.current != ':' {
				if in.current == eos {
					return nil, parseErrorAt(in, true, "unexpected end of input")
				}
				return nil, parseErrorAt(in, false, "expected ':' but got %q", in.current)
			}
			in.next()
			colon = tokenTrivia(in)
		}

		value, err := parseOne(in)
		if err != nil {
			return nil, err
		}
		fields = append(fields, MapField{Key: key, Value: value, Separator: colon})

		if in.current == ',' {
			in.next()
		}
		separators = append(separators, *tokenTrivia(in))
	}
	in.next() // '}'
	close := tokenTrivia(in)

	return &Map{Fields: fields, Open: open, Separators: separators, Close: close}, nil
}

// splitColonAtom rewrites an atom that lexed as "key:" into a key atom and a
// colon TokenSpans, preserving exact source positions via span slicing. The
// atom's trailing trivia moves to the colon, which is what followed it.
func splitColonAtom(a *Atom) (Expr, *TokenSpans, error) {
	ks := *a.Span.Token
	n := ks.Len()

	keyTok, err := ks.Slice(0, n-1)
	if err != nil {
		return nil, nil, err
	}
	keySpace, err := ks.Slice(n-1, n-1)
	if err != nil {
		return nil, nil, err
	}
	colonTok, err := ks.Slice(n-1, n)
	if err != nil {
		return nil, nil, err
	}

	key := &Atom{
		Value: a.Value[:len(a.Value)-1],
		Span:  &TokenSpans{Token: &keyTok, Space: &keySpace},
	}
	colon := &TokenSpans{Token: &colonTok, Space: a.Span.Space}
	return key, colon, nil
}
