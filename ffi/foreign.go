package ffi

// Option is a value the host may leave out.
type Option[T any] struct {
	Value   T
	Present bool
}

// Some wraps a present value.
func Some[T any](v T) Option[T] {
	return Option[T]{Value: v, Present: true}
}

// None is an absent value.
func None[T any]() Option[T] {
	return Option[T]{}
}

// OptionFromPtr is Some(*p), or None for nil.
func OptionFromPtr[T any](p *T) Option[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Ptr returns a pointer to a copy of the value, nil when absent.
func (o Option[T]) Ptr() *T {
	if !o.Present {
		return nil
	}
	v := o.Value
	return &v
}

// Get returns the value and whether it is present.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// Pair carries two values across the boundary.
type Pair[T, U any] struct {
	First  T
	Second U
}

// MakePair creates a Pair.
func MakePair[T, U any](first T, second U) Pair[T, U] {
	return Pair[T, U]{First: first, Second: second}
}

// StringFromForeign copies host bytes into a string. Absent data is a
// NullPointer error.
func StringFromForeign(b []byte, present bool) (string, error) {
	if !present {
		return "", Errorf(NullPointer, "string is null")
	}
	return string(b), nil
}

// SliceFromForeign copies a host slice so the host may reuse its memory.
// Absent data is a NullPointer error.
func SliceFromForeign[T any](s []T, present bool) ([]T, error) {
	if !present {
		return nil, Errorf(NullPointer, "array is null")
	}
	out := make([]T, len(s))
	copy(out, s)
	return out, nil
}
