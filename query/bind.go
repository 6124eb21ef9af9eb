package query

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ErrBindArgs reports a placeholder/argument count mismatch or an
// unsupported argument type.
var ErrBindArgs = errors.New("bind arguments")

// Bind replaces each ? placeholder in sql with the SQLite literal of the
// matching argument. A ? inside a quoted string, a quoted identifier or a
// -- or /* */ comment is left alone.
//
// Supported argument types: nil, string, []byte, bool, signed and unsigned
// integers, float32, float64 and *big.Int.
func Bind(sql string, args ...any) (string, error) {
	var b strings.Builder
	b.Grow(len(sql))

	next := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
			b.WriteByte(ch)
		case ch == '-' && strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql) - i
			}
			b.WriteString(sql[i : i+end])
			i += end - 1
		case ch == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				b.WriteString(sql[i:])
				i = len(sql)
				break
			}
			b.WriteString(sql[i : i+2+end+2])
			i += 2 + end + 1
		case ch == '\'' || ch == '"' || ch == '`':
			quote = ch
			b.WriteByte(ch)
		case ch == '?':
			if next >= len(args) {
				return "", fmt.Errorf("%w: more placeholders than %d arguments", ErrBindArgs, len(args))
			}
			lit, err := literal(args[next])
			if err != nil {
				return "", fmt.Errorf("%w: argument %d: %w", ErrBindArgs, next, err)
			}
			b.WriteString(lit)
			next++
		default:
			b.WriteByte(ch)
		}
	}
	if next != len(args) {
		return "", fmt.Errorf("%w: %d placeholders, %d arguments", ErrBindArgs, next, len(args))
	}
	return b.String(), nil
}

func literal(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case []byte:
		return "x'" + hex.EncodeToString(val) + "'", nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case int:
		return strconv.FormatInt(int64(val), 10), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float32:
		if !isFinite(float64(val)) {
			return "", fmt.Errorf("non-finite float %v", val)
		}
		return strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		if !isFinite(val) {
			return "", fmt.Errorf("non-finite float %v", val)
		}
		return strconv.FormatFloat(val, 'g', -1, 64), nil
	case *big.Int:
		if val == nil {
			return "NULL", nil
		}
		return val.String(), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// InList binds a list of values as a parenthesized, comma separated SQL
// list suitable for an IN clause. An empty list yields "(NULL)", which
// matches no rows.
func InList[T any](values []T) (string, error) {
	if len(values) == 0 {
		return "(NULL)", nil
	}
	parts := make([]string, len(values))
	for i, v := range values {
		lit, err := literal(v)
		if err != nil {
			return "", fmt.Errorf("%w: element %d: %w", ErrBindArgs, i, err)
		}
		parts[i] = lit
	}
	return "(" + strings.Join(parts, ", ") + ")", nil
}
