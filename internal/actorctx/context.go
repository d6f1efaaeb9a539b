package actorctx

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// ActorKey is the request context key for the acting user ID.
type ActorKey struct{}

// WithActor stores the acting user in the context. Zero means an
// unauthenticated or system actor.
func WithActor(ctx context.Context, userID snowflake.ID) context.Context {
	return context.WithValue(ctx, ActorKey{}, userID)
}

// ActorFromContext returns the acting user ID stored by the identity
// middleware, if any.
func ActorFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}

	value := ctx.Value(ActorKey{})
	if value == nil {
		return 0, false
	}
	switch typed := value.(type) {
	case snowflake.ID:
		return typed, true
	case int64:
		return snowflake.ID(typed), true
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil {
			return parsed, true
		}
	}
	return 0, false
}
