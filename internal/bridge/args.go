package bridge

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
)

// Arguments is the key-value argument bag of a Call. Values are either the
// result of decoding JSON or native Go values from in-process callers.
type Arguments map[string]interface{}

// String returns a string argument. A missing or null key reports ok=false.
func (a Arguments) String(key string) (value string, ok bool, err error) {
	raw, present := a[key]
	if !present || raw == nil {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, fmt.Errorf("%s must be a string, got %T", key, raw)
	}
	return s, true, nil
}

// Bytes returns a byte argument, given either as []byte or as a standard
// base64 string. A missing, null or empty value reports ok=false.
func (a Arguments) Bytes(key string) (value []byte, ok bool, err error) {
	raw, present := a[key]
	if !present || raw == nil {
		return nil, false, nil
	}

	switch v := raw.(type) {
	case []byte:
		value = v
	case string:
		value, err = base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, true, fmt.Errorf("%s is not valid base64: %w", key, err)
		}
	default:
		return nil, true, fmt.Errorf("%s must be bytes, got %T", key, raw)
	}

	if len(value) == 0 {
		return nil, false, nil
	}
	return value, true, nil
}

// Int returns an integer argument, or def when the key is missing or null
func (a Arguments) Int(key string, def int) (int, error) {
	raw, present := a[key]
	if !present || raw == nil {
		return def, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("%s must be an integer, got %v", key, v)
		}
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer: %w", key, err)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%s must be an integer, got %T", key, raw)
	}
}
