package automation

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// evaluateOperator compares the resolved field value against the condition value.
func evaluateOperator(op Operator, actual, expected any) (bool, error) {
	switch op {
	case OperatorEquals:
		return strictEqual(actual, expected), nil

	case OperatorNotEquals:
		return !strictEqual(actual, expected), nil

	case OperatorGreaterThan:
		a, b, ok := toNumbers(actual, expected)
		return ok && a > b, nil

	case OperatorLessThan:
		a, b, ok := toNumbers(actual, expected)
		return ok && a < b, nil

	case OperatorContains:
		return evaluateContains(actual, expected), nil

	case OperatorIn:
		found, isList := evaluateIn(actual, expected)
		return isList && found, nil

	case OperatorNotIn:
		found, isList := evaluateIn(actual, expected)
		return isList && !found, nil

	default:
		return false, NewUnsupportedOperationError("operator", string(op))
	}
}

// strictEqual compares without cross-kind coercion. Numbers of any Go
// numeric type compare by value.
func strictEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	actualNum, actualIsNum := toFloat64(actual)
	expectedNum, expectedIsNum := toFloat64(expected)
	if actualIsNum || expectedIsNum {
		return actualIsNum && expectedIsNum && actualNum == expectedNum
	}

	switch a := actual.(type) {
	case string:
		b, ok := expected.(string)
		return ok && a == b
	case bool:
		b, ok := expected.(bool)
		return ok && a == b
	case time.Time:
		b, ok := expected.(time.Time)
		return ok && a.Equal(b)
	}

	if reflect.TypeOf(actual) != reflect.TypeOf(expected) {
		return false
	}
	return reflect.DeepEqual(actual, expected)
}

// evaluateContains is a case-insensitive substring match.
func evaluateContains(actual, expected any) bool {
	if actual == nil || expected == nil {
		return false
	}
	return strings.Contains(strings.ToLower(toString(actual)), strings.ToLower(toString(expected)))
}

// evaluateIn reports whether actual is an element of expected. isList is
// false when expected is not a slice or array.
func evaluateIn(actual, expected any) (found bool, isList bool) {
	if expected == nil {
		return false, false
	}
	list := reflect.ValueOf(expected)
	if list.Kind() != reflect.Slice && list.Kind() != reflect.Array {
		return false, false
	}

	for i := 0; i < list.Len(); i++ {
		if strictEqual(actual, list.Index(i).Interface()) {
			return true, true
		}
	}
	return false, true
}

// toNumbers coerces both operands for an ordering comparison.
func toNumbers(actual, expected any) (float64, float64, bool) {
	a, ok := coerceNumber(actual)
	if !ok {
		return 0, 0, false
	}
	b, ok := coerceNumber(expected)
	if !ok {
		return 0, 0, false
	}
	return a, b, true
}

// toFloat64 converts Go numeric kinds only.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// coerceNumber converts v the way a numeric comparison sees it: numeric
// strings parse, booleans are 1 or 0, times are Unix milliseconds. nil and
// non-numeric strings do not coerce.
func coerceNumber(v any) (float64, bool) {
	if n, ok := toFloat64(v); ok {
		return n, !math.IsNaN(n)
	}

	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, true
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(n) {
			return 0, false
		}
		return n, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case time.Time:
		return float64(x.UnixMilli()), true
	}
	return 0, false
}

// toString renders v for substring matching and message payloads.
func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	}
	if n, ok := toFloat64(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// ToString renders a condition or action value as a string.
func ToString(v any) string {
	return toString(v)
}

// ToNumber coerces a condition or action value to a number.
func ToNumber(v any) (float64, bool) {
	return coerceNumber(v)
}
