package reading

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// ParseField parses the measurement stored under key as a finite float.
//
// JSON numbers, Go numeric types and numeric strings are accepted,
// surrounding whitespace in strings is ignored. Every failure is
// a *FieldError wrapping ErrFieldMissing, ErrFieldNull or ErrFieldNotNumeric.
func ParseField(rec ParsedRecord, key string) (float64, error) {
	v, ok := rec[key]
	if !ok {
		return 0, &FieldError{Field: key, Err: ErrFieldMissing}
	}

	if v == nil {
		return 0, &FieldError{Field: key, Err: ErrFieldNull}
	}

	f, ok := toFloat(v)
	if !ok {
		return 0, &FieldError{Field: key, Err: ErrFieldNotNumeric}
	}

	return f, nil
}

// Validate parses both measurements of the record.
func Validate(rec ParsedRecord) (*ValidatedRecord, error) {
	celsius, err := ParseField(rec, FieldTemperature)
	if err != nil {
		return nil, err
	}

	kilopascals, err := ParseField(rec, FieldPressure)
	if err != nil {
		return nil, err
	}

	return &ValidatedRecord{
		Record:      rec,
		Celsius:     celsius,
		Kilopascals: kilopascals,
	}, nil
}

// FilterValid reports whether both measurements are present and numeric.
func FilterValid(rec ParsedRecord) bool {
	_, err := Validate(rec)
	return err == nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		return parseNumeric(string(n))
	case string:
		return parseNumeric(strings.TrimSpace(n))
	case float64:
		return n, isFinite(n)
	case float32:
		return float64(n), isFinite(float64(n))
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func parseNumeric(s string) (float64, bool) {
	if s == "" || isHexLiteral(s) {
		return 0, false
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}

	return f, isFinite(f)
}

// isHexLiteral
func isHexLiteral(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
