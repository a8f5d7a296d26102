package goSession

import (
	"context"

	"github.com/google/uuid"
)

type attemptIDContextKey struct{}

// WithAttemptID attaches a caller-chosen correlation ID to ctx. Login and
// VerifyOTP stamp it on their audit events; without one a random ID is used.
func WithAttemptID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attemptIDContextKey{}, id)
}

func attemptIDFromContext(ctx context.Context) string {
	if ctx != nil {
		if id, _ := ctx.Value(attemptIDContextKey{}).(string); id != "" {
			return id
		}
	}
	return uuid.NewString()
}
