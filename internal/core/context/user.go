// Package context provides request-scoped values extraction.
package context

import (
	"context"
	"slices"
)

// UserContext is the authenticated actor handed over by the identity provider.
// Both fields are opaque to the movement core.
type UserContext struct {
	UserID string
	Role   string
	Email  string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns UserContext from context.
func GetUser(ctx context.Context) *UserContext {
	if v, ok := ctx.Value(userContextKey{}).(*UserContext); ok {
		return v
	}
	return nil
}

// GetUserID returns user ID from context or empty string.
func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

// GetRole returns the actor role from context or empty string.
func GetRole(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.Role
	}
	return ""
}

// HasRole checks if user has one of the given roles.
func HasRole(ctx context.Context, roles ...string) bool {
	u := GetUser(ctx)
	if u == nil {
		return false
	}
	return slices.Contains(roles, u.Role)
}
