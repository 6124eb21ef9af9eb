package query

import (
	"fmt"
	"math/big"
)

// Row is one decoded result row. Columns keeps the engine's column order;
// Values maps each column to its decoded value:
//
//	INTEGER  int64, or *big.Int for values of 16 or more characters
//	FLOAT    float64
//	TEXT     string
//	BLOB     []byte
//	NULL     nil
type Row struct {
	Columns []string
	Values  map[string]any
}

// Get returns the value of column and whether the column exists.
func (r Row) Get(column string) (any, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// IsNull reports whether column holds NULL. Missing columns are not NULL.
func (r Row) IsNull(column string) bool {
	v, ok := r.Values[column]
	return ok && v == nil
}

// String returns a TEXT value. Integers and floats are formatted.
func (r Row) String(column string) (string, error) {
	v, ok := r.Values[column]
	if !ok {
		return "", fmt.Errorf("column %q not in row", column)
	}
	switch val := v.(type) {
	case string:
		return val, nil
	case int64:
		return fmt.Sprintf("%d", val), nil
	case *big.Int:
		return val.String(), nil
	case float64:
		return fmt.Sprintf("%v", val), nil
	default:
		return "", fmt.Errorf("column %q is %T, not text", column, v)
	}
}

// Int64 returns an INTEGER value. Wide integers that fit in int64 are narrowed.
func (r Row) Int64(column string) (int64, error) {
	v, ok := r.Values[column]
	if !ok {
		return 0, fmt.Errorf("column %q not in row", column)
	}
	switch val := v.(type) {
	case int64:
		return val, nil
	case *big.Int:
		if !val.IsInt64() {
			return 0, fmt.Errorf("column %q value %s overflows int64", column, val)
		}
		return val.Int64(), nil
	default:
		return 0, fmt.Errorf("column %q is %T, not integer", column, v)
	}
}

// BigInt returns an INTEGER value at arbitrary precision.
func (r Row) BigInt(column string) (*big.Int, error) {
	v, ok := r.Values[column]
	if !ok {
		return nil, fmt.Errorf("column %q not in row", column)
	}
	switch val := v.(type) {
	case *big.Int:
		return new(big.Int).Set(val), nil
	case int64:
		return big.NewInt(val), nil
	default:
		return nil, fmt.Errorf("column %q is %T, not integer", column, v)
	}
}

// Uint64 returns a non-negative INTEGER value as uint64.
func (r Row) Uint64(column string) (uint64, error) {
	n, err := r.BigInt(column)
	if err != nil {
		return 0, err
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("column %q value %s is not a uint64", column, n)
	}
	return n.Uint64(), nil
}

// Float64 returns a FLOAT value. Integers are converted.
func (r Row) Float64(column string) (float64, error) {
	v, ok := r.Values[column]
	if !ok {
		return 0, fmt.Errorf("column %q not in row", column)
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	default:
		return 0, fmt.Errorf("column %q is %T, not float", column, v)
	}
}

// Bytes returns a BLOB value. NULL yields nil, TEXT its UTF-8 bytes.
func (r Row) Bytes(column string) ([]byte, error) {
	v, ok := r.Values[column]
	if !ok {
		return nil, fmt.Errorf("column %q not in row", column)
	}
	switch val := v.(type) {
	case []byte:
		return val, nil
	case nil:
		return nil, nil
	case string:
		return []byte(val), nil
	default:
		return nil, fmt.Errorf("column %q is %T, not blob", column, v)
	}
}
