package logger

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type (
	ctxKey       struct{}
	requestIDKey struct{}
)

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequest derives a child of base tagged with a fresh request_id plus
// fields, and stores it in ctx. Both the context and the logger are returned.
func WithRequest(ctx context.Context, base *zap.Logger, fields ...zap.Field) (context.Context, *zap.Logger) {
	id := uuid.NewString()
	l := base.With(append([]zap.Field{zap.String("request_id", id)}, fields...)...)
	ctx = context.WithValue(ctx, requestIDKey{}, id)
	return ContextWithLogger(ctx, l), l
}

// RequestID returns the request_id stamped by WithRequest, or "".
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
