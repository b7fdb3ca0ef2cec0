package sessions

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echo-sphere/backend/internal/models"
	"github.com/echo-sphere/backend/internal/recordings"
	"github.com/echo-sphere/backend/pkg/response"
)

// Handler handles session HTTP endpoints. Sessions are created by the voice
// worker when a user joins a room; ending a session also stops its
// recording.
type Handler struct {
	repo             *Repository
	recordingService *recordings.Service
	autoRecord       bool
	logger           *zap.Logger
}

// NewHandler creates a sessions handler. autoRecord starts a recording for
// every new session.
func NewHandler(repo *Repository, recordingService *recordings.Service, autoRecord bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, recordingService: recordingService, autoRecord: autoRecord, logger: logger}
}

type createRequest struct {
	RoomName string `json:"room_name" binding:"required"`
	UserID   string `json:"user_id" binding:"required"`
}

// Create handles POST /sessions: persists an active session and, when
// configured, starts its recording. A room can only host one live session at
// a time. A recording start failure does not fail session creation; the
// failed attempt is already recorded.
func (h *Handler) Create(c *gin.Context) {
	var body createRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	existing, err := h.repo.GetByRoomName(c.Request.Context(), body.RoomName)
	if err != nil {
		h.logger.Error("lookup session by room failed", zap.Error(err), zap.String("room_name", body.RoomName))
		response.Internal(c, "failed to create session")
		return
	}
	if existing != nil && existing.Status == models.SessionStatusActive {
		response.Conflict(c, "room already has an active session")
		return
	}

	session := models.NewSession(body.RoomName, body.UserID)
	if err := session.Start(); err != nil {
		response.Internal(c, "failed to start session")
		return
	}
	if err := h.repo.Save(c.Request.Context(), session); err != nil {
		h.logger.Error("save session failed", zap.Error(err), zap.String("room_name", body.RoomName))
		response.Internal(c, "failed to create session")
		return
	}

	var rec *models.Recording
	if h.autoRecord {
		var err error
		rec, err = h.recordingService.StartRecording(c.Request.Context(), session.ID, session.RoomName, "")
		if err != nil {
			h.logger.Error("auto recording start failed", zap.Error(err), zap.String("session_id", session.ID.String()))
		}
	}

	h.logger.Info("session created",
		zap.String("session_id", session.ID.String()),
		zap.String("room_name", session.RoomName),
		zap.Bool("recording", rec != nil),
	)
	response.Created(c, gin.H{"session": session, "recording": rec})
}

// ListActive handles GET /sessions/active?limit=.
func (h *Handler) ListActive(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	list, err := h.repo.ListActive(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list active sessions failed", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	if list == nil {
		list = []models.Session{}
	}
	response.OK(c, gin.H{"items": list})
}

// GetByID handles GET /sessions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	session, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get session failed", zap.Error(err), zap.String("session_id", id.String()))
		response.Internal(c, "failed to get session")
		return
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}
	response.OK(c, session)
}

// End handles POST /sessions/:id/end: completes the session and stops its
// recording if one is live.
func (h *Handler) End(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	session, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get session failed", zap.Error(err), zap.String("session_id", id.String()))
		response.Internal(c, "failed to get session")
		return
	}
	if session == nil {
		response.NotFound(c, "session not found")
		return
	}

	if session.Status == models.SessionStatusActive {
		if err := session.Complete(); err != nil {
			response.Internal(c, "failed to end session")
			return
		}
		if err := h.repo.Save(c.Request.Context(), session); err != nil {
			h.logger.Error("save session failed", zap.Error(err), zap.String("session_id", id.String()))
			response.Internal(c, "failed to end session")
			return
		}
	}

	rec, err := h.recordingService.StopRecording(c.Request.Context(), session.ID)
	if err != nil && !errors.Is(err, recordings.ErrNotFound) {
		h.logger.Error("stop recording on session end failed", zap.Error(err), zap.String("session_id", id.String()))
	}

	h.logger.Info("session ended", zap.String("session_id", session.ID.String()))
	response.OK(c, gin.H{"session": session, "recording": rec})
}
