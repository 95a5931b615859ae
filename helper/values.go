package helper

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ValueToString renders an interface value for comparison and CSV-ish output.
// Times are rendered in UTC with RFC3339Nano so comparisons are zone-stable.
func ValueToString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseBool canonicalizes common source-system boolean spellings.
// It accepts Y/N, YES/NO, T/F, TRUE/FALSE, 1/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "t", "true", "1":
		return true, nil
	case "n", "no", "f", "false", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("unrecognised boolean value %q", s)
}

// NormalizeDecimal strips locale-specific digit grouping and converts a
// decimal comma to a decimal point, e.g. "1.234,56" -> "1234.56" and
// "1,234.56" -> "1234.56".
func NormalizeDecimal(s string) string {
	s = strings.TrimSpace(s)
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	if lastComma > lastDot { // comma is the decimal separator...
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	} else { // dot is the decimal separator (or there is neither)...
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

// StringsToCsv joins tokens with commas, the inverse of a simple CSV split.
func StringsToCsv(tokens []string) string {
	return strings.Join(tokens, ",")
}
