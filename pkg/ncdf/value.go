package ncdf

import (
	"fmt"
)

// normalizeAttr converts a raw cdf attribute value into the scalar forms
// used throughout the update tools. NetCDF classic stores numeric
// attributes as typed arrays; single-element arrays become int64/float64
// scalars, longer arrays pass through untouched.
func normalizeAttr(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return x
	case []int8:
		if len(x) == 1 {
			return int64(x[0])
		}
	case []int16:
		if len(x) == 1 {
			return int64(x[0])
		}
	case []int32:
		if len(x) == 1 {
			return int64(x[0])
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0])
		}
	case []float64:
		if len(x) == 1 {
			return x[0]
		}
	}
	return v
}

// denormalizeAttr converts a scalar attribute value back into the typed
// array form the cdf library writes. Integers become NetCDF ints (int32),
// floats become doubles, matching the source tool's convention.
func denormalizeAttr(v interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return x
	case int:
		return []int32{int32(x)}
	case int32:
		return []int32{x}
	case int64:
		return []int32{int32(x)}
	case float32:
		return []float64{float64(x)}
	case float64:
		return []float64{x}
	}
	return v
}

// toFloat64 converts a scalar attribute value to float64.
func toFloat64(v interface{}) (float64, error) {
	switch x := v.(type) {
	case int64:
		return float64(x), nil
	case float64:
		return x, nil
	case int32:
		return float64(x), nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	}
	return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
}

// toFloat64s converts a typed numeric slice read from a variable into
// []float64.
func toFloat64s(raw interface{}) ([]float64, error) {
	switch data := raw.(type) {
	case []float64:
		return data, nil
	case []float32:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported variable type %T", raw)
}
