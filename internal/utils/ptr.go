// Package utils has small helpers for the optional (pointer-typed) fields the
// taskbot API leaves out of many responses.
package utils

// Value dereferences v, returning the zero value when v is nil.
func Value[T any](v *T) T {
	if v == nil {
		return *new(T)
	}
	return *v
}

// Ptr returns a pointer to v, handy for literal optional fields.
func Ptr[T any](v T) *T {
	return &v
}

// ValueOr dereferences v, returning fallback when v is nil.
func ValueOr[T any](v *T, fallback T) T {
	if v == nil {
		return fallback
	}
	return *v
}
