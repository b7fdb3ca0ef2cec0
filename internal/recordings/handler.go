package recordings

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echo-sphere/backend/internal/models"
	"github.com/echo-sphere/backend/pkg/response"
)

// Handler handles recording HTTP endpoints.
type Handler struct {
	repo    *Repository
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(repo *Repository, service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, service: service, logger: logger}
}

// List handles GET /recordings?page=&page_size=&status=.
func (h *Handler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	if status := c.Query("status"); status != "" {
		list, err := h.repo.ListByStatus(c.Request.Context(), models.RecordingStatus(status), pageSize, (page-1)*pageSize)
		if err != nil {
			h.logger.Error("list recordings by status failed", zap.Error(err), zap.String("status", status))
			response.Internal(c, "failed to list recordings")
			return
		}
		total, err := h.repo.CountByStatus(c.Request.Context(), models.RecordingStatus(status))
		if err != nil {
			h.logger.Error("count recordings failed", zap.Error(err), zap.String("status", status))
			response.Internal(c, "failed to list recordings")
			return
		}
		response.OK(c, pageBody(list, total, page, pageSize))
		return
	}

	list, total, err := h.repo.ListAll(c.Request.Context(), page, pageSize)
	if err != nil {
		h.logger.Error("list recordings failed", zap.Error(err))
		response.Internal(c, "failed to list recordings")
		return
	}
	response.OK(c, pageBody(list, total, page, pageSize))
}

func pageBody(items []models.Recording, total, page, pageSize int) gin.H {
	totalPages := 1
	if total > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}
	if items == nil {
		items = []models.Recording{}
	}
	return gin.H{
		"items":       items,
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
		"total_pages": totalPages,
	}
}

// GetByID handles GET /recordings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	rec, err := h.service.GetRecording(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get recording failed", zap.Error(err), zap.String("recording_id", id.String()))
		response.Internal(c, "failed to get recording")
		return
	}
	if rec == nil {
		response.NotFound(c, "recording not found")
		return
	}
	response.OK(c, rec)
}

// PlaybackURL handles GET /recordings/:id/playback-url?expiry_seconds=.
func (h *Handler) PlaybackURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	var expire time.Duration
	if v := c.Query("expiry_seconds"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil || secs <= 0 {
			response.BadRequest(c, "invalid expiry_seconds")
			return
		}
		expire = time.Duration(secs) * time.Second
	}

	url, err := h.service.GetPlaybackURL(c.Request.Context(), id, expire)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "recording not found")
		return
	case errors.Is(err, ErrNotCompleted):
		response.BadRequest(c, "recording not completed")
		return
	case err != nil:
		h.logger.Error("playback url failed", zap.Error(err), zap.String("recording_id", id.String()))
		response.Internal(c, "failed to generate playback URL")
		return
	}
	response.OK(c, gin.H{"recording_id": id, "playback_url": url})
}

type startRequest struct {
	RoomName string `json:"room_name" binding:"required"`
	Bucket   string `json:"bucket"`
}

// Start handles POST /sessions/:id/recording/start.
func (h *Handler) Start(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	var body startRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	rec, err := h.service.StartRecording(c.Request.Context(), sessionID, body.RoomName, body.Bucket)
	switch {
	case errors.Is(err, ErrAlreadyExists):
		response.Conflict(c, "recording already in progress")
		return
	case err != nil:
		h.logger.Error("start recording failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to start recording")
		return
	}
	response.Created(c, rec)
}

// Stop handles POST /sessions/:id/recording/stop.
func (h *Handler) Stop(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	rec, err := h.service.StopRecording(c.Request.Context(), sessionID)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "no recording for session")
		return
	case err != nil:
		h.logger.Error("stop recording failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to stop recording")
		return
	}
	response.OK(c, rec)
}
