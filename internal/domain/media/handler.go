package media

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"videovault/internal/access"
	"videovault/internal/middleware"
	"videovault/internal/pkg/logger"
	"videovault/internal/pkg/response"
	"videovault/internal/pkg/validator"
	"videovault/internal/streaming"
)

// multipartOverhead is allowed on top of the file limit for form framing.
const multipartOverhead = 1 << 20

type Handler struct {
	service  *Service
	streamer *streaming.Streamer
	maxBytes int64
	log      *zap.Logger
}

func NewHandler(service *Service, streamer *streaming.Streamer, maxBytes int64, log *zap.Logger) *Handler {
	return &Handler{service: service, streamer: streamer, maxBytes: maxBytes, log: logger.Component(log, "media_http")}
}

// uploadResponse is returned before processing starts.
type uploadResponse struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Filename           string          `json:"filename"`
	ProcessingState    ProcessingState `json:"processingState"`
	ProcessingProgress int             `json:"processingProgress"`
}

// Upload godoc
// @Summary Upload a video
// @Tags Videos
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param video formData file true "Video file"
// @Param title formData string false "Title, defaults to the file name"
// @Success 201 {object} map[string]interface{}
// @Failure 400,401,403,413,500 {object} map[string]interface{}
// @Router /videos/upload [post]
func (h *Handler) Upload(c *gin.Context) {
	ident, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	fileHeader, err := c.FormFile("video")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, ErrFileTooLarge.Error())
			return
		}
		response.Error(c, http.StatusBadRequest, response.CodeValidation, "No video file provided")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeStorage, "Failed to read upload")
		return
	}
	defer file.Close()

	rec, err := h.service.Accept(c.Request.Context(), ident, UploadInput{
		Title:        c.PostForm("title"),
		OriginalName: fileHeader.Filename,
		DeclaredSize: fileHeader.Size,
		Content:      file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, uploadResponse{
		ID:                 rec.ID,
		Title:              rec.Title,
		Filename:           rec.Filename,
		ProcessingState:    rec.ProcessingState,
		ProcessingProgress: rec.ProcessingProgress,
	})
	c.Writer.Flush()

	if _, err := h.service.StartProcessing(rec); err != nil {
		h.log.Error("schedule processing", zap.String("record_id", rec.ID), zap.Error(err))
	}
}

// List godoc
// @Summary List my videos
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param status query string false "uploading|processing|completed|failed|all"
// @Param sensitivity query string false "pending|safe|flagged|all"
// @Param search query string false "Title or file name"
// @Param sort query string false "newest|oldest|title|size"
// @Success 200 {object} map[string]interface{}
// @Router /videos [get]
func (h *Handler) List(c *gin.Context) {
	ident, ok := middleware.Identity(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
		return
	}

	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
		return
	}
	if errs := validator.Validate(q); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, response.CodeValidation, "Invalid query parameters", errs)
		return
	}

	records, err := h.service.List(c.Request.Context(), ident, q)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"count": len(records), "videos": records})
}

// Get godoc
// @Summary Video details
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403,404 {object} map[string]interface{}
// @Router /videos/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	ident, _ := middleware.Identity(c)
	rec, err := h.service.Get(c.Request.Context(), ident, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, rec)
}

// Stream godoc
// @Summary Stream a video with byte-range support
// @Tags Videos
// @Produce video/mp4
// @Param id path string true "Video ID"
// @Param token query string false "JWT when the Authorization header cannot be set"
// @Success 200,206
// @Failure 401,403,404,416 {object} map[string]interface{}
// @Router /videos/{id}/stream [get]
func (h *Handler) Stream(c *gin.Context) {
	ident, _ := middleware.Identity(c)
	src, err := h.service.StreamSource(c.Request.Context(), ident, c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	err = h.streamer.Serve(c.Writer, src, c.GetHeader("Range"))
	switch {
	case err == nil:
	case errors.Is(err, streaming.ErrFileNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Video file not found")
	case errors.Is(err, streaming.ErrInvalidRange), errors.Is(err, streaming.ErrUnsatisfiableRange):
		response.Error(c, http.StatusRequestedRangeNotSatisfiable, response.CodeRangeNotSatisfiable, err.Error())
	case errors.Is(err, streaming.ErrStreamAborted):
		h.log.Debug("stream aborted", zap.String("record_id", c.Param("id")), zap.Error(err))
	default:
		h.log.Error("stream failed", zap.String("record_id", c.Param("id")), zap.Error(err))
		if !c.Writer.Written() {
			response.Error(c, http.StatusInternalServerError, response.CodeStorage, "Failed to stream video")
		}
	}
}

// Delete godoc
// @Summary Delete a video and its file
// @Tags Videos
// @Produce json
// @Security BearerAuth
// @Param id path string true "Video ID"
// @Success 200 {object} map[string]interface{}
// @Failure 403,404,500 {object} map[string]interface{}
// @Router /videos/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	ident, _ := middleware.Identity(c)
	if err := h.service.Delete(c.Request.Context(), ident, c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Video deleted"})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "Authentication required")
	case errors.Is(err, access.ErrForbidden):
		response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
	case errors.Is(err, ErrRecordNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNotFound, "Video not found")
	case errors.Is(err, ErrFileTooLarge):
		response.Error(c, http.StatusRequestEntityTooLarge, response.CodeFileTooLarge, err.Error())
	case errors.Is(err, ErrInvalidMimeType):
		response.Error(c, http.StatusBadRequest, response.CodeInvalidMimeType, err.Error())
	case errors.Is(err, ErrEmptyFile):
		response.Error(c, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, ErrStorage):
		h.log.Error("storage failure", zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeStorage, "Storage failure")
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Error(c, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
	}
}
