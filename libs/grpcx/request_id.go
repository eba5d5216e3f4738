package grpcx

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// RequestIDMetadataKey carries the request id in gRPC metadata. It matches
// the HTTP header so ids survive an HTTP to gRPC hop unchanged.
const RequestIDMetadataKey = "x-request-id"

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

func NewRequestID() string {
	return uuid.NewString()
}
