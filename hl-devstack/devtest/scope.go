package devtest

import (
	"context"
	"log/slog"
)

type scopeCtxKeyType struct{}

// scopeCtxKey is a key added to the context to identify the run-scope.
var scopeCtxKey = scopeCtxKeyType{}

// scopeValue wraps a string to implement slog.LogValuer for context handling
type scopeValue string

func (s scopeValue) LogValue() slog.Value {
	return slog.StringValue(string(s))
}

// Scope retrieves the scope from the context
func Scope(ctx context.Context) string {
	if v, ok := ctx.Value(scopeCtxKey).(scopeValue); ok {
		return string(v)
	}
	return ""
}

// AddScope combines the sub-scope with the scope of the context,
// and returns a context with the updated scope value.
func AddScope(ctx context.Context, scope string) context.Context {
	return context.WithValue(ctx, scopeCtxKey, scopeValue(Scope(ctx)+"/"+scope))
}
