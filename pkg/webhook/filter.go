package webhook

import (
	"reflect"
	"strings"
)

// MatchFilters reports whether a decoded payload satisfies every filter.
// Filter keys are dot-notation paths into nested JSON objects; values are
// compared for deep equality, so filters may pin whole objects or arrays.
// An empty filter set matches everything.
func MatchFilters(payload map[string]any, filters map[string]any) bool {
	for path, expected := range filters {
		actual, found := lookupPath(payload, path)
		if !found || !reflect.DeepEqual(actual, expected) {
			return false
		}
	}

	return true
}

// lookupPath walks a dot-notation path through nested map[string]any
// values. Any non-map segment before the last returns not found.
func lookupPath(payload map[string]any, path string) (any, bool) {
	segments := strings.Split(path, ".")

	var current any = payload

	for _, segment := range segments {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = object[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}
