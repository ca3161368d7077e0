package requestctx

import (
	"context"
	"errors"
)

// Key for request-scoped values in context
type contextKey string

const (
	requestIDKey contextKey = "requestID"
	actorKey     contextKey = "actor"
)

// ErrNoRequestIDInContext is returned when no request ID is found in context
var ErrNoRequestIDInContext = errors.New("no request ID found in context")

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FromRequestIDContext extracts the request ID from the context
func FromRequestIDContext(ctx context.Context) (string, error) {
	requestID, ok := ctx.Value(requestIDKey).(string)
	if !ok || requestID == "" {
		return "", ErrNoRequestIDInContext
	}
	return requestID, nil
}

// WithActor records who triggered the current operation (system, operator, scheduler).
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor stored in ctx or def when none is set.
func ActorFromContext(ctx context.Context, def string) string {
	actor, ok := ctx.Value(actorKey).(string)
	if !ok || actor == "" {
		return def
	}
	return actor
}
