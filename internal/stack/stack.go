// Package stack provides an immutable linked-list stack. Pushing onto a stack
// leaves the original untouched, so branches of a depth-first search can share
// their common prefix.
package stack

// Stack is an implementation of a stack based on a linked list. A nil *Stack
// is the empty stack.
//
// *Important*: Each push() operation creates and returns a pointer to a new stack entirely to
// ensure thread safety.
type Stack[T any] struct {
	Value T
	next  *Stack[T]
	size  int
}

func Push[T any](stack *Stack[T], value T) *Stack[T] {
	return &Stack[T]{Value: value, next: stack, size: stack.Len() + 1}
}

// Len returns the number of entries in the stack.
func (s *Stack[T]) Len() int {
	if s == nil {
		return 0
	}
	if s.size == 0 {
		// Built as a literal rather than through Push.
		return 1 + s.next.Len()
	}
	return s.size
}

// Slice returns the entries from the bottom of the stack to the top.
func Slice[T any](stack *Stack[T]) []T {
	n := stack.Len()
	out := make([]T, n)
	for s := stack; s != nil; s = s.next {
		n--
		out[n] = s.Value
	}
	return out
}
