// Package inventory holds the vehicle inventory model shared by the store, the retrieval
// normalizer and the transport layer.
package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ID identifies one inventory row. All-digit values are numeric, anything else stays a
// string, so "7" and 7 compare equal and dedupe to the same key.
// The zero value is the absent id.
type ID struct {
	num     int64
	str     string
	numeric bool
}

// NumericID returns a numeric id.
func NumericID(n int64) ID {
	return ID{num: n, numeric: true}
}

// StringID normalizes s: all-digit strings become numeric ids.
// Returns the absent id for an empty or blank string.
func StringID(s string) ID {
	s = strings.TrimSpace(s)
	if s == "" {
		return ID{}
	}
	if allDigits(s) {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return NumericID(n)
		}
	}
	return ID{str: s}
}

// IDFromValue normalizes a loosely typed metadata value (JSON number, string, integer).
// Returns false for nil, empty strings and unsupported types.
func IDFromValue(v any) (ID, bool) {
	var id ID
	switch t := v.(type) {
	case nil:
		return ID{}, false
	case string:
		id = StringID(t)
	case json.Number:
		id = StringID(t.String())
	case int:
		id = NumericID(int64(t))
	case int32:
		id = NumericID(int64(t))
	case int64:
		id = NumericID(t)
	case float32:
		id = fromFloat(float64(t))
	case float64:
		id = fromFloat(t)
	default:
		return ID{}, false
	}
	return id, !id.IsZero()
}

var recordIDPattern = regexp.MustCompile(`(?i)car_(\d+)$`)

// ParseRecordID extracts the trailing digit run after the "car_" token
// of a vector record identifier, e.g. "listing-car_42" -> 42.
func ParseRecordID(raw string) (ID, bool) {
	m := recordIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return ID{}, false
	}
	id := StringID(m[1])
	return id, !id.IsZero()
}

// IsZero reports whether id is absent.
func (id ID) IsZero() bool { return !id.numeric && id.str == "" }

// IsNumeric reports whether id is numeric.
func (id ID) IsNumeric() bool { return id.numeric }

// Int64 returns the numeric value.
func (id ID) Int64() (int64, bool) { return id.num, id.numeric }

// String returns the canonical text form, used as the store lookup key.
func (id ID) String() string {
	if id.numeric {
		return strconv.FormatInt(id.num, 10)
	}
	return id.str
}

// MarshalJSON writes numeric ids as JSON numbers and the rest as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	switch {
	case id.numeric:
		return []byte(strconv.FormatInt(id.num, 10)), nil
	case id.str == "":
		return []byte("null"), nil
	default:
		return json.Marshal(id.str)
	}
}

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("decode inventory id: %w", err)
	}
	parsed, ok := IDFromValue(v)
	if !ok {
		return fmt.Errorf("invalid inventory id %s", data)
	}
	*id = parsed
	return nil
}

func fromFloat(f float64) ID {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ID{}
	}
	if f == math.Trunc(f) && f >= 0 && f < math.MaxInt64 {
		return NumericID(int64(f))
	}
	return ID{str: strconv.FormatFloat(f, 'f', -1, 64)}
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
