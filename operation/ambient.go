package operation

import "context"

// ambientKey keys the innermost active operation on the context returned by
// Enter. Context values are the runtime's task-local facility: concurrent
// tasks holding different contexts never observe each other's scope.
type ambientKey struct{}

// FromContext returns the innermost active operation for ctx, or false when
// ctx is outside any operation scope.
func FromContext(ctx context.Context) (*Operation, bool) {
	op, ok := ctx.Value(ambientKey{}).(*Operation)
	return op, ok
}

// Current returns the innermost active operation, or nil outside any scope.
// Lookups outside a scope are not an error.
func Current(ctx context.Context) *Operation {
	op, _ := FromContext(ctx)
	return op
}
