package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"videovault/internal/access"
	"videovault/internal/domain/user"
	jwtsvc "videovault/internal/pkg/jwt"
	"videovault/internal/pkg/response"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"

	// TokenQueryParam carries the token for clients that cannot set headers
	// (media elements, browser websockets).
	TokenQueryParam = "token"
)

// UserLookup resolves the current state of a token subject so that role
// changes and deletions take effect before the token expires.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
}

// JWTAuth accepts only "Authorization: Bearer <token>".
func JWTAuth(jwt *jwtsvc.Service, users UserLookup) gin.HandlerFunc {
	return authenticate(jwt, users, false)
}

// JWTAuthWithQuery additionally accepts ?token=<token>. Both sources go
// through the same validation.
func JWTAuthWithQuery(jwt *jwtsvc.Service, users UserLookup) gin.HandlerFunc {
	return authenticate(jwt, users, true)
}

func authenticate(jwt *jwtsvc.Service, users UserLookup, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, code, msg := extractToken(c, allowQuery)
		if tokenStr == "" {
			response.Abort(c, http.StatusUnauthorized, code, msg)
			return
		}

		claims, err := jwt.ValidateToken(tokenStr)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.CodeInvalidToken, "Invalid or expired token")
			return
		}

		role := user.Role(claims.Role)
		if users != nil {
			u, err := users.GetByID(c.Request.Context(), claims.UserID)
			if errors.Is(err, user.ErrUserNotFound) {
				response.Abort(c, http.StatusUnauthorized, response.CodeUserNotFound, "User not found")
				return
			}
			if err != nil {
				// ErrorLogger picks this up; the token itself may be fine.
				_ = c.Error(fmt.Errorf("lookup user %d: %w", claims.UserID, err))
				response.Abort(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
				return
			}
			role = u.Role
		}
		if !role.Valid() {
			response.Abort(c, http.StatusUnauthorized, response.CodeInvalidToken, "Invalid role in token")
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxRole, string(role))
		c.Next()
	}
}

func extractToken(c *gin.Context, allowQuery bool) (token, code, msg string) {
	h := c.GetHeader("Authorization")
	if h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return "", "INVALID_AUTH_FORMAT", "Authorization header must use Bearer scheme"
		}
		token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		if token == "" {
			return "", "INVALID_AUTH_FORMAT", "Empty token"
		}
		return token, "", ""
	}
	if allowQuery {
		if token = strings.TrimSpace(c.Query(TokenQueryParam)); token != "" {
			return token, "", ""
		}
		return "", "AUTH_MISSING", "Authorization header or token query parameter required"
	}
	return "", "AUTH_HEADER_MISSING", "Missing Authorization header"
}

// Identity returns the caller set by JWTAuth.
func Identity(c *gin.Context) (access.Identity, bool) {
	id := c.GetInt64(ctxUserID)
	role := user.Role(c.GetString(ctxRole))
	ident := access.Identity{ID: id, Role: role}
	return ident, ident.Valid()
}
