package ir

import "slices"

// ShallowEqual compares two field values the way change detection needs:
//
//   - scalars and links compare by value
//   - arrays compare as sets: order and duplicates are ignored
//   - objects compare by key set only
//
// nil and Null are equal to each other.
func ShallowEqual(a, b Value) bool {
	if isNull(a) || isNull(b) {
		return isNull(a) && isNull(b)
	}

	switch av := a.(type) {
	case String, Int, Bool, Link:
		return a == b
	case Array:
		bv, ok := b.(Array)
		if !ok {
			return false
		}
		return sameElements(av, bv)
	case Object:
		bv, ok := b.(Object)
		if !ok {
			return false
		}
		return slices.Equal(av.SortedKeys(), bv.SortedKeys())
	default:
		return false
	}
}

func isNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// sameElements reports whether every element of a has an equal element in b
// and vice versa.
func sameElements(a, b Array) bool {
	return containsAll(a, b) && containsAll(b, a)
}

func containsAll(haystack, needles Array) bool {
	for _, n := range needles {
		if !slices.ContainsFunc(haystack, func(h Value) bool { return ShallowEqual(h, n) }) {
			return false
		}
	}
	return true
}

// RecordEqual compares two records field by field with ShallowEqual.
// Both records must have the same field set.
func RecordEqual(a, b Object) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !ShallowEqual(av, bv) {
			return false
		}
	}
	return true
}

// Links returns every link contained in v, in order of appearance, without
// descending into linked records.
func Links(v Value) []string {
	var out []string
	collectLinks(v, &out)
	return out
}

func collectLinks(v Value, out *[]string) {
	switch val := v.(type) {
	case Link:
		*out = append(*out, string(val))
	case Array:
		for _, elem := range val {
			collectLinks(elem, out)
		}
	case Object:
		for _, k := range val.SortedKeys() {
			collectLinks(val[k], out)
		}
	}
}
