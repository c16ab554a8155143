//go:build !debug

package debug

import "testing"

const Enabled = false

func Log([]any, string, string, ...any) {}
func Assert(bool, string, ...any)       {}

// WithTesting is a no-op outside of debug builds.
func WithTesting(testing.TB) func() { return func() {} }

type Value[T any] struct {
	_ struct{}
}

func (v *Value[T]) Get() *T {
	panic("called Value.Get() when not in debug mode")
}
