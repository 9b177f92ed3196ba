package domain

import "context"

type opKey struct{}

// WithOp tags ctx with the workflow operation name used for metrics and logs.
func WithOp(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey{}, op)
}

// OpFrom returns the operation set by WithOp, or fallback.
func OpFrom(ctx context.Context, fallback string) string {
	if op, ok := ctx.Value(opKey{}).(string); ok && op != "" {
		return op
	}
	return fallback
}
