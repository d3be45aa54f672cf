// Package slice holds the generic helpers shared by the report pipeline.
package slice

// Map applies f to every element of list. A nil f yields an empty slice.
func Map[T, R any](list []T, f func(t T) R) []R {
	if f == nil {
		return make([]R, 0)
	}

	output := make([]R, 0, len(list))
	for idx := range list {
		output = append(output, f(list[idx]))
	}

	return output
}

// Filter keeps the elements accepted by keep. A nil keep accepts everything.
func Filter[T any](list []T, keep func(v T) bool) []T {
	output := make([]T, 0, len(list))
	for _, v := range list {
		if keep == nil || keep(v) {
			output = append(output, v)
		}
	}

	return output
}

// Find returns the first element satisfying f.
func Find[T any](list []T, f func(t T) bool) (T, bool) {
	for idx := range list {
		if f(list[idx]) {
			return list[idx], true
		}
	}

	var zero T
	return zero, false
}

// FindLast returns the last element satisfying f. Later declarations win
// over earlier ones, so callers resolving overrides scan from the end.
func FindLast[T any](list []T, f func(t T) bool) (T, bool) {
	for idx := len(list) - 1; idx >= 0; idx-- {
		if f(list[idx]) {
			return list[idx], true
		}
	}

	var zero T
	return zero, false
}

func Contains[T comparable](list []T, v T) bool {
	for idx := range list {
		if list[idx] == v {
			return true
		}
	}

	return false
}

// NonZero drops the zero values of list.
func NonZero[T comparable](list []T) []T {
	var zero T

	return Filter(
		list, func(v T) bool {
			return v != zero
		},
	)
}
