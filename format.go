// format.go — human-readable rendering of runtime values for the REPL and
// diagnostics. This is presentation only; it is not a serialization format
// and makes no round-trip promise.
package mu

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// FormatValue renders an evaluated value: strings quoted, sequences
// bracketed, maps braced in insertion order, quoted nodes as their source
// text, callables as their signature.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(x)
	case string:
		return quoteStringLiteral(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case decimal.Decimal:
		return x.String()
	case *big.Rat:
		return x.RatString()
	case []any:
		parts := make([]string, len(x))
		for i, item := range x {
			parts[i] = FormatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *MapValue:
		parts := make([]string, 0, x.Len())
		for _, e := range x.Entries() {
			parts = append(parts, FormatValue(e.Key)+": "+FormatValue(e.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Quoted:
		return x.Expr.Render()
	case Expr:
		return x.Render()
	case CallableObject:
		return "<fn " + x.Signature().String() + ">"
	case Invocable:
		return "<fn>"
	case error:
		return "error: " + x.Error()
	default:
		return fmt.Sprintf("%v", x)
	}
}
