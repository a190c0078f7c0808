package project

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Count is a non-negative build counter. Stored values that are not numbers
// decode as zero so the next increment starts from one.
type Count int64

// Inc returns the counter advanced by one.
func (c Count) Inc() Count {
	if c < 0 {
		c = 0
	}
	return c + 1
}

// ParseCount converts a loosely typed stored value into a Count.
func ParseCount(v any) Count {
	switch x := v.(type) {
	case nil:
		return 0
	case int64:
		return nonNegative(x)
	case int:
		return nonNegative(int64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0
		}
		return nonNegative(int64(x))
	case []byte:
		return ParseCount(string(x))
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(strings.TrimSpace(x), 64)
			if ferr != nil {
				return 0
			}
			return ParseCount(f)
		}
		return nonNegative(n)
	default:
		return 0
	}
}

func nonNegative(n int64) Count {
	if n < 0 {
		return 0
	}
	return Count(n)
}

// Scan implements sql.Scanner.
func (c *Count) Scan(src any) error {
	*c = ParseCount(src)
	return nil
}

// Value implements driver.Valuer.
func (c Count) Value() (driver.Value, error) {
	return int64(c), nil
}

// UnmarshalJSON accepts numbers, numeric strings and anything else as zero.
func (c *Count) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode build count: %w", err)
	}
	*c = ParseCount(v)
	return nil
}
