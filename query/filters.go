package query

import "reflect"

// FilterState maps a filter field to its value, a scalar or a list.
type FilterState map[string]any

// Clean returns a copy without inactive fields. nil, empty strings and empty
// slices, arrays or maps are inactive. Zero numbers and false are active:
// a minimum weight of 0 is a real bound.
func (f FilterState) Clean() FilterState {
	out := make(FilterState, len(f))
	for k, v := range f {
		if isInactive(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// HasActive reports whether any field is active.
func (f FilterState) HasActive() bool {
	for _, v := range f {
		if !isInactive(v) {
			return true
		}
	}
	return false
}

// Merge returns a copy of f with partial applied on top. Fields set to an
// inactive value in partial stay in the result, inactive.
func (f FilterState) Merge(partial FilterState) FilterState {
	out := make(FilterState, len(f)+len(partial))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}

func isInactive(v any) bool {
	if v == nil {
		return true
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() == 0
	default:
		return false
	}
}
