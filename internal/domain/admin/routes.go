package admin

import (
	"github.com/gin-gonic/gin"

	"videovault/internal/access"
	"videovault/internal/middleware"
)

// RegisterRoutes mounts /admin on an already authenticated group.
func RegisterRoutes(protected *gin.RouterGroup, h *Handler, guard *access.Guard) {
	adminGroup := protected.Group("/admin", middleware.AdminOnly(guard))
	{
		adminGroup.GET("/users", h.ListUsers)
		adminGroup.PATCH("/users/:id/role", h.UpdateRole)
		adminGroup.DELETE("/users/:id", h.DeleteUser)
		adminGroup.GET("/stats", h.Stats)
		adminGroup.GET("/videos", h.ListVideos)
	}
}
