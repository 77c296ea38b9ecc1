package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockflow/internal/core/apperror"
	appctx "stockflow/internal/core/context"
)

// Development headers read when anonymous access is enabled.
const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth middleware validates JWT tokens and populates user context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return authenticate(validator, false)
}

// AuthOrAnonymous accepts a bearer token when one is sent and otherwise
// trusts the X-Actor-ID / X-Actor-Role headers. Development only.
func AuthOrAnonymous(validator JWTValidator) gin.HandlerFunc {
	return authenticate(validator, true)
}

func authenticate(validator JWTValidator, allowAnonymous bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			if allowAnonymous {
				if actor := strings.TrimSpace(c.GetHeader(HeaderActorID)); actor != "" {
					setUser(c, &appctx.UserContext{UserID: actor, Role: strings.TrimSpace(c.GetHeader(HeaderActorRole))})
					c.Next()
					return
				}
			}
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}
		if validator == nil {
			abortUnauthorized(c, "token authentication is not configured")
			return
		}

		user, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		setUser(c, user)
		c.Next()
	}
}

func setUser(c *gin.Context, user *appctx.UserContext) {
	ctx := appctx.WithUser(c.Request.Context(), user)
	c.Request = c.Request.WithContext(ctx)

	c.Set("user_id", user.UserID)
	c.Set("role", user.Role)
}

// RequireRole middleware checks if user has required role.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetUser(ctx) == nil {
			abortUnauthorized(c, "authentication required")
			return
		}
		if !appctx.HasRole(ctx, roles...) {
			_ = c.Error(
				apperror.NewForbidden("insufficient permissions").
					WithDetail("required_roles", roles),
			)
			c.Abort()
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
