package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"videovault/internal/domain/user"
	"videovault/internal/middleware"
	"videovault/internal/pkg/logger"
	"videovault/internal/pkg/response"
	"videovault/internal/pkg/validator"
)

type Handler struct {
	service *Service
	log     *zap.Logger
}

func NewHandler(service *Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: logger.Component(log, "admin_http")}
}

type updateRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=viewer editor admin"`
}

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.internal(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"users": users})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		h.internal(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"stats": stats})
}

func (h *Handler) UpdateRole(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid role", errs)
		return
	}

	u, err := h.service.UpdateRole(c.Request.Context(), id, req.Role)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"user": u})
	case errors.Is(err, user.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "User not found")
	case errors.Is(err, user.ErrInvalidRole):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid role")
	default:
		h.internal(c, err)
	}
}

func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}
	actor, _ := middleware.Identity(c)

	err := h.service.DeleteUser(c.Request.Context(), actor.ID, id)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"message": "User and associated videos deleted"})
	case errors.Is(err, ErrSelfDelete):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, user.ErrUserNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "User not found")
	default:
		h.internal(c, err)
	}
}

func (h *Handler) ListVideos(c *gin.Context) {
	videos, err := h.service.ListVideos(c.Request.Context())
	if err != nil {
		h.internal(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": len(videos), "videos": videos})
}

func (h *Handler) internal(c *gin.Context, err error) {
	h.log.Error("admin request failed", zap.String("path", c.FullPath()), zap.Error(err))
	response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
}

func userIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "Invalid user id")
		return 0, false
	}
	return id, true
}
