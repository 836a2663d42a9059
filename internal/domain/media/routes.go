package media

import (
	"github.com/gin-gonic/gin"

	"videovault/internal/access"
	"videovault/internal/middleware"
)

// RegisterRoutes mounts /videos. header authenticates with the
// Authorization header only; headerOrQuery also accepts ?token= and is used
// for the stream endpoint, where players cannot set headers.
func RegisterRoutes(r *gin.RouterGroup, h *Handler, guard *access.Guard, header, headerOrQuery gin.HandlerFunc) {
	videos := r.Group("/videos")
	{
		videos.GET("/:id/stream", headerOrQuery, h.Stream)

		protected := videos.Group("", header)
		protected.POST("/upload", middleware.RequireAction(guard, access.ActionUpload), h.Upload)
		protected.GET("", h.List)
		protected.GET("/:id", h.Get)
		protected.DELETE("/:id", middleware.RequireAction(guard, access.ActionDelete), h.Delete)
	}
}
