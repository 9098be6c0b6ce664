package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/banshee-data/sweepcast/internal/monitoring"
)

var (
	// ErrMalformedUpdate is returned when an update is not a JSON object or
	// one of its recognised values cannot be coerced to the parameter type.
	ErrMalformedUpdate = errors.New("malformed config update")
	// ErrInvalidConfig is returned when the merged configuration fails
	// Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// ParseUpdate decodes a command payload into a key/value map. Numbers are kept
// as json.Number so integers larger than 2^53 survive until coercion.
func ParseUpdate(data []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var updates map[string]interface{}
	if err := dec.Decode(&updates); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedUpdate, err)
	}
	if updates == nil {
		return nil, fmt.Errorf("%w: payload is not an object", ErrMalformedUpdate)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedUpdate)
	}
	return updates, nil
}

// WithUpdates returns a copy of c with updates applied and the sorted list of
// keys that were recognised. Unknown keys are ignored. The update is all or
// nothing: if any recognised value fails coercion, or the merged result fails
// validation, c is returned unchanged with the error.
func (c RuntimeConfig) WithUpdates(updates map[string]interface{}) (RuntimeConfig, []string, error) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	next := c
	v := reflect.ValueOf(&next).Elem()
	applied := make([]string, 0, len(keys))
	for _, key := range keys {
		i, ok := fieldIndex[key]
		if !ok {
			monitoring.Debugf("[config] ignoring unknown key %q", key)
			continue
		}
		if err := coerceInto(v.Field(i), updates[key]); err != nil {
			return c, nil, fmt.Errorf("%w: %s: %v", ErrMalformedUpdate, key, err)
		}
		applied = append(applied, key)
	}

	if err := next.Validate(); err != nil {
		return c, nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return next, applied, nil
}

func coerceInto(f reflect.Value, raw interface{}) error {
	switch f.Kind() {
	case reflect.Int:
		n, err := toInt(raw)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float64:
		x, err := toFloat(raw)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	case reflect.Bool:
		b, err := toBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

// toInt accepts integers, numbers (truncated toward zero) and numeric strings.
func toInt(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, nil
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v.String())
		}
		return truncate(f)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer %d out of range", v)
		}
		return int64(v), nil
	case float64:
		return truncate(v)
	case string:
		s := strings.TrimSpace(v)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", v)
		}
		return truncate(f)
	default:
		return 0, fmt.Errorf("cannot use %T as integer", raw)
	}
}

func truncate(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 || f <= math.MinInt64 {
		return 0, fmt.Errorf("number %v out of integer range", f)
	}
	return int64(math.Trunc(f)), nil
}

// toFloat accepts numbers and numeric strings. Non-finite values are rejected.
func toFloat(raw interface{}) (float64, error) {
	var f float64
	switch v := raw.(type) {
	case json.Number:
		x, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v.String())
		}
		f = x
	case float64:
		f = v
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case string:
		x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", v)
		}
		f = x
	default:
		return 0, fmt.Errorf("cannot use %T as number", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("number %v is not finite", f)
	}
	return f, nil
}

// toBool accepts booleans, the numbers 0 and 1, and the strings understood by
// strconv.ParseBool.
func toBool(raw interface{}) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("not a boolean: %q", v)
		}
		return b, nil
	case json.Number, float64, int, int64, uint64:
		f, err := toFloat(v)
		if err != nil {
			return false, err
		}
		switch f {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
		return false, fmt.Errorf("number %v is not 0 or 1", f)
	default:
		return false, fmt.Errorf("cannot use %T as boolean", raw)
	}
}
