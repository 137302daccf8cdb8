package profile

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NormalizeValue cleans a raw attribute string so it cannot break document layout.
// The delimiter is replaced by a space, surrounding space is trimmed and inner runs
// of whitespace collapse to one space.
func NormalizeValue(value, delimiter string) string {
	if delimiter != "" {
		value = strings.ReplaceAll(value, delimiter, " ")
	}
	return strings.Join(strings.Fields(value), " ")
}

// Coerce converts a profile value to its document form. The second result is false
// when the value counts as absent.
func Coerce(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case bool:
		// Matches the Yes/No encoding of the reference dataset.
		if val {
			s = "Yes"
		} else {
			s = "No"
		}
	case int:
		s = strconv.Itoa(val)
	case int32:
		s = strconv.FormatInt(int64(val), 10)
	case int64:
		s = strconv.FormatInt(val, 10)
	case uint:
		s = strconv.FormatUint(uint64(val), 10)
	case uint64:
		s = strconv.FormatUint(val, 10)
	case float32:
		s = formatFloat(float64(val))
	case float64:
		s = formatFloat(val)
	case fmt.Stringer:
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
