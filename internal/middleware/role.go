package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"videovault/internal/access"
	"videovault/internal/pkg/response"
)

// RequireAction evaluates a collection-level action (no specific resource)
// through the guard, which applies the role gates.
func RequireAction(guard *access.Guard, action access.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := Identity(c)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
			return
		}

		if d := guard.Authorize(ident, nil, action); !d.Allowed {
			response.Abort(c, http.StatusForbidden, response.CodeForbidden, "Access denied: "+d.Reason)
			return
		}

		c.Next()
	}
}

// AdminOnly middleware requires admin role
func AdminOnly(guard *access.Guard) gin.HandlerFunc {
	return RequireAction(guard, access.ActionAdminister)
}
