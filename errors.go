// errors.go — error kinds and caret-snippet rendering.
//
// Mu distinguishes four user-facing error kinds and one defect kind:
//
//   - *ParseError  — the parser aborted; no recovery, no partial documents.
//   - *NameError   — an atom did not resolve in the execution context.
//   - *CallError   — empty group, non-callable head, keyword-argument misuse.
//   - *TypeError   — a quoted parameter received the wrong node kind.
//   - *SpanError   — a structural invariant of the span machinery was
//     violated; this signals a bug in tree construction, not bad input.
//
// WrapErrorWithSource turns a *ParseError into a readable multi-line snippet
// with a caret under the offending column:
//
//	PARSE ERROR at 2:5: unexpected end of input
//
//	   1 | (app "x"
//	   2 |   :main
//	     |     ^
//
// Other error kinds pass through unchanged. The renderer clamps out-of-range
// coordinates so it can always produce output.
package mu

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError is a fatal parse failure at a 1-based source position.
// Incomplete marks errors caused by the input ending too early, which lets
// interactive callers distinguish "keep typing" from "malformed".
type ParseError struct {
	Line       int
	Col        int
	Msg        string
	Incomplete bool
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

// IsIncomplete reports whether err is a parse error caused by the input
// ending before the current form was closed. REPLs use this to prompt for a
// continuation line instead of reporting a failure.
func IsIncomplete(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe) && pe.Incomplete
}

// NameError reports an atom that is not bound in the execution context.
type NameError struct {
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("name %q is not defined", e.Name)
}

// CallError reports a malformed call: empty group, non-callable head,
// missing or duplicate keyword arguments.
type CallError struct {
	Msg string
}

func (e *CallError) Error() string { return e.Msg }

// TypeError reports a declared-type violation during argument binding.
type TypeError struct {
	Msg string
}

func (e *TypeError) Error() string { return e.Msg }

// SpanError reports a violated structural invariant in span arithmetic.
// It indicates a defect in tree-construction code rather than bad input.
type SpanError struct {
	Msg string
}

func (e *SpanError) Error() string { return e.Msg }

// WrapErrorWithSource augments a parse error with a caret-annotated snippet
// of the source it came from. Non-parse errors are returned unchanged.
func WrapErrorWithSource(err error, src string) error {
	return WrapErrorWithName(err, "", src)
}

// WrapErrorWithName is WrapErrorWithSource with a source name ("in <name>")
// in the header, for callers that evaluate multiple files.
func WrapErrorWithName(err error, srcName, src string) error {
	var pe *ParseError
	if !errors.As(err, &pe) {
		return err
	}
	return errors.New(caretSnippet(src, "PARSE ERROR", srcName, pe.Line, pe.Col, pe.Msg))
}

// caretSnippet builds the numbered snippet with up to one line of context on
// each side and a caret under the 1-based column. Coordinates are clamped.
func caretSnippet(src, header, name string, line, col int, msg string) string {
	lines := strings.Split(src, "\n")
	if len(lines) == 0 {
		lines = []string{""}
	}
	if line < 1 {
		line = 1
	}
	if line > len(lines) {
		line = len(lines)
	}
	if col < 1 {
		col = 1
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "%s in %s at %d:%d: %s\n\n", header, name, line, col, msg)
	} else {
		fmt.Fprintf(&b, "%s at %d:%d: %s\n\n", header, line, col, msg)
	}
	if line > 1 {
		fmt.Fprintf(&b, "%4d | %s\n", line-1, lines[line-2])
	}
	fmt.Fprintf(&b, "%4d | %s\n", line, lines[line-1])
	fmt.Fprintf(&b, "     | %s^\n", strings.Repeat(" ", col-1))
	if line < len(lines) {
		fmt.Fprintf(&b, "%4d | %s\n", line+1, lines[line])
	}
	return b.String()
}
