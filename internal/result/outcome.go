// Package result models best-effort steps whose failure is folded into an
// empty value by the caller instead of being returned.
package result

type Outcome[T any] struct {
	Value T
	Err   error
}

func Ok[T any](v T) Outcome[T] { return Outcome[T]{Value: v} }

func Fail[T any](err error) Outcome[T] { return Outcome[T]{Err: err} }

func (o Outcome[T]) OK() bool { return o.Err == nil }

// Or returns the value on success and fallback otherwise.
func (o Outcome[T]) Or(fallback T) T {
	if o.Err != nil {
		return fallback
	}
	return o.Value
}
