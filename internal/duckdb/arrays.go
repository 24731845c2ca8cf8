package duckdb

import (
	"fmt"
	"strconv"
	"strings"
)

// Int64ArrayToString converts []int64 to a DuckDB array literal such as
// "[1, 2, 3]". The driver does not bind Go slices as parameters, so array
// columns are written through a literal cast.
func Int64ArrayToString(values []int64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strconv.FormatInt(v, 10))
	}
	sb.WriteByte(']')
	return sb.String()
}

// Int64Array converts a scanned DuckDB INTEGER[]/BIGINT[] value to []int64.
// The driver returns lists as []any holding int32 or int64.
func Int64Array(value any) ([]int64, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []int64:
		return v, nil
	case []any:
		out := make([]int64, len(v))
		for i, elem := range v {
			switch n := elem.(type) {
			case int64:
				out[i] = n
			case int32:
				out[i] = int64(n)
			case int:
				out[i] = int64(n)
			default:
				return nil, fmt.Errorf("unexpected array element type %T at index %d", elem, i)
			}
		}
		return out, nil
	case string:
		return parseInt64ArrayLiteral(v)
	default:
		return nil, fmt.Errorf("unexpected array type %T", value)
	}
}

func parseInt64ArrayLiteral(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed array literal %q", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		return []int64{}, nil
	}

	parts := strings.Split(body, ",")
	out := make([]int64, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed array element %q: %w", p, err)
		}
		out[i] = n
	}
	return out, nil
}
