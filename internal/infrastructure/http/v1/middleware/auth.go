package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"bakery/internal/core/apperror"
	appctx "bakery/internal/core/context"
)

// JWTValidator checks a bearer token issued by the identity service.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth requires a valid bearer token on every request of the group and
// puts the caller on the request context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, reason := bearerToken(c.GetHeader("Authorization"))
		if reason != "" {
			rejectUnauthenticated(c, reason)
			return
		}

		user, err := validator.ValidateToken(token)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			rejectUnauthenticated(c, "access token expired")
			return
		case err != nil:
			rejectUnauthenticated(c, "access token rejected")
			return
		}

		c.Request = c.Request.WithContext(appctx.WithUser(c.Request.Context(), user))
		c.Set("user_id", user.UserID)
		c.Next()
	}
}

// bearerToken returns the token of an "Authorization: Bearer <token>"
// header, or a reason it cannot be used.
func bearerToken(header string) (token, reason string) {
	if header == "" {
		return "", "bearer token required"
	}
	scheme, token, ok := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", "authorization header must be 'Bearer <token>'"
	}
	return token, ""
}

// RequireRole lets through callers holding any of roles. Admin tokens
// always pass. It guards the endpoints that write stock documents.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := appctx.GetUser(c.Request.Context())
		if user == nil {
			rejectUnauthenticated(c, "bearer token required")
			return
		}
		if user.IsAdmin || slices.ContainsFunc(user.Roles, func(r string) bool { return slices.Contains(roles, r) }) {
			c.Next()
			return
		}
		_ = c.Error(apperror.NewForbidden("role not allowed to change stock documents").
			WithDetail("required_roles", roles))
		c.Abort()
	}
}

func rejectUnauthenticated(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", `Bearer realm="bakery"`)
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
