// Package obscontext carries request-scoped correlation values.
package obscontext

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "request_id"
	externalIDKey contextKey = "external_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithExternalID(ctx context.Context, externalID string) context.Context {
	return context.WithValue(ctx, externalIDKey, externalID)
}

func ExternalIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(externalIDKey).(string)
	return value
}
