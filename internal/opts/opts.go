// Package opts holds resolved command option values.
package opts

import (
	"fmt"
	"strconv"
)

// Values maps kebab-case option names to resolved values. Values are one of
// string, int, bool or []string.
type Values map[string]interface{}

// Has reports whether name has a value.
func (v Values) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// String returns the value of name as a string.
func (v Values) String(name string) string {
	switch x := v[name].(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}

// Int returns the value of name as an int, or 0.
func (v Values) Int(name string) int {
	switch x := v[name].(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Bool returns the value of name as a bool.
func (v Values) Bool(name string) bool {
	switch x := v[name].(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	default:
		return false
	}
}

// Strings returns the value of name as a string slice.
func (v Values) Strings(name string) []string {
	switch x := v[name].(type) {
	case []string:
		return x
	case []interface{}:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	default:
		return nil
	}
}

// Clone returns a shallow copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}
