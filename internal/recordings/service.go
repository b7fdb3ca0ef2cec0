package recordings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/echo-sphere/backend/internal/egress"
	"github.com/echo-sphere/backend/internal/models"
	"github.com/echo-sphere/backend/pkg/storage"
)

// Service-level errors. Collaborator failures are wrapped with context; the
// sentinels below are what handlers branch on.
var (
	// ErrAlreadyExists is returned when a non-terminal recording already
	// exists for the session.
	ErrAlreadyExists = errors.New("active recording already exists for session")
	// ErrNotFound is returned when no recording matches the lookup.
	ErrNotFound = errors.New("recording not found")
	// ErrNotCompleted is returned when playback is requested before the
	// recording completed.
	ErrNotCompleted = errors.New("recording not completed")
)

// placeholderEgressID marks a recording whose capture job has not reported
// its real ID yet.
const placeholderEgressID = "pending"

// Store is the persistence contract the service needs.
type Store interface {
	Save(ctx context.Context, rec *models.Recording) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.Recording, error)
	GetByEgressID(ctx context.Context, egressID string) (*models.Recording, error)
}

// ObjectStorage is the storage contract the service needs for playback URLs
// and size fallbacks.
type ObjectStorage interface {
	GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	GetObjectInfo(ctx context.Context, bucket, key string) (*storage.ObjectInfo, error)
}

// Defaults hold the recording output settings applied when a request does
// not override them.
type Defaults struct {
	Bucket          string
	Width           int
	Height          int
	SegmentDuration int
	PresignExpire   time.Duration
}

// Service orchestrates the recording lifecycle: it starts and stops egress
// jobs, and reconciles persisted state against egress events, which arrive
// over an unreliable transport with no ordering guarantee.
type Service struct {
	store    Store
	egress   egress.Client
	storage  ObjectStorage
	defaults Defaults
	logger   *zap.Logger
}

// NewService creates the recording orchestration service.
func NewService(store Store, egressClient egress.Client, objectStorage ObjectStorage, defaults Defaults, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.Width == 0 {
		defaults.Width = 1280
	}
	if defaults.Height == 0 {
		defaults.Height = 720
	}
	if defaults.SegmentDuration == 0 {
		defaults.SegmentDuration = 4
	}
	if defaults.PresignExpire == 0 {
		defaults.PresignExpire = time.Hour
	}
	return &Service{
		store:    store,
		egress:   egressClient,
		storage:  objectStorage,
		defaults: defaults,
		logger:   logger,
	}
}

// StartRecording starts a room composite capture for a session. Exactly one
// recording row is persisted per call: non-terminal on success, failed when
// starting egress errored.
func (s *Service) StartRecording(ctx context.Context, sessionID uuid.UUID, roomName, bucket string) (*models.Recording, error) {
	existing, err := s.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup recording for session %s: %w", sessionID, err)
	}
	if existing != nil && !existing.IsTerminal() {
		return nil, fmt.Errorf("%w: session %s", ErrAlreadyExists, sessionID)
	}

	if bucket == "" {
		bucket = s.defaults.Bucket
	}
	rec := models.NewRecording(sessionID, placeholderEgressID, bucket, storage.RecordingPath(sessionID.String()))

	s.logger.Info("starting recording",
		zap.String("recording_id", rec.ID.String()),
		zap.String("session_id", sessionID.String()),
		zap.String("room_name", roomName),
	)

	info, err := s.egress.StartRoomComposite(ctx, egress.Config{
		RoomName:        roomName,
		OutputBucket:    bucket,
		OutputPath:      rec.StoragePath,
		Width:           s.defaults.Width,
		Height:          s.defaults.Height,
		SegmentDuration: s.defaults.SegmentDuration,
	})
	if err != nil {
		// The attempt is recorded, not dropped.
		_ = rec.Fail(err.Error())
		if saveErr := s.store.Save(ctx, rec); saveErr != nil {
			s.logger.Error("save failed recording", zap.Error(saveErr), zap.String("recording_id", rec.ID.String()))
		}
		s.logger.Error("recording start failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		return nil, fmt.Errorf("start recording for session %s: %w", sessionID, err)
	}

	rec.EgressID = info.EgressID
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save recording %s: %w", rec.ID, err)
	}

	s.logger.Info("recording started",
		zap.String("recording_id", rec.ID.String()),
		zap.String("egress_id", info.EgressID),
	)
	return rec, nil
}

// StopRecording stops the capture for a session. Stopping a recording that
// is already processing or terminal is a no-op returning the stored row, so
// duplicate stop requests never reach egress twice. A recording whose egress
// never became active is failed directly without contacting the egress
// system.
func (s *Service) StopRecording(ctx context.Context, sessionID uuid.UUID) (*models.Recording, error) {
	rec, err := s.store.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("lookup recording for session %s: %w", sessionID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	if rec.IsTerminal() {
		s.logger.Warn("recording already stopped",
			zap.String("recording_id", rec.ID.String()),
			zap.String("status", string(rec.Status)),
		)
		return rec, nil
	}
	if rec.Status == models.RecordingStatusProcessing {
		// Egress was already told to stop; repeating the call would only
		// race the completion webhook.
		s.logger.Info("recording already stopping", zap.String("recording_id", rec.ID.String()))
		return rec, nil
	}

	if rec.Status == models.RecordingStatusStarting {
		// Nothing is running to stop.
		_ = rec.Fail("recording stopped before egress started")
		if err := s.store.Save(ctx, rec); err != nil {
			return nil, fmt.Errorf("save recording %s: %w", rec.ID, err)
		}
		s.logger.Info("recording failed before egress start", zap.String("recording_id", rec.ID.String()))
		return rec, nil
	}

	if _, err := s.egress.StopEgress(ctx, rec.EgressID); err != nil {
		s.logger.Error("recording stop failed", zap.Error(err), zap.String("recording_id", rec.ID.String()))
		return nil, fmt.Errorf("stop recording for session %s: %w", sessionID, err)
	}
	if err := rec.StartProcessing(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save recording %s: %w", rec.ID, err)
	}

	s.logger.Info("recording stopped", zap.String("recording_id", rec.ID.String()))
	return rec, nil
}

// HandleEgressEvent reconciles a recording against one egress notification.
// Deliveries may be duplicated or arrive out of order; the transition guards
// absorb both. Returns (nil, nil) when no recording tracks the egress ID.
// Errors during completion bookkeeping degrade the recording to failed
// rather than leaving it stuck non-terminal.
func (s *Service) HandleEgressEvent(ctx context.Context, info *egress.Info) (*models.Recording, error) {
	rec, err := s.store.GetByEgressID(ctx, info.EgressID)
	if err != nil {
		return nil, fmt.Errorf("lookup recording for egress %s: %w", info.EgressID, err)
	}
	if rec == nil {
		s.logger.Warn("no recording for egress event", zap.String("egress_id", info.EgressID))
		return nil, nil
	}
	if rec.IsTerminal() {
		// Late or duplicate event after completed/failed; nothing to apply.
		s.logger.Info("egress event on terminal recording",
			zap.String("recording_id", rec.ID.String()),
			zap.String("egress_status", string(info.Status)),
		)
		return rec, nil
	}

	s.logger.Info("handling egress event",
		zap.String("recording_id", rec.ID.String()),
		zap.String("egress_id", info.EgressID),
		zap.String("egress_status", string(info.Status)),
	)

	switch info.Status {
	case egress.StatusActive:
		if rec.Status == models.RecordingStatusStarting {
			if err := rec.Activate(); err != nil {
				return rec, err
			}
			if err := s.store.Save(ctx, rec); err != nil {
				return rec, fmt.Errorf("save recording %s: %w", rec.ID, err)
			}
		}
	case egress.StatusComplete:
		if err := s.completeRecording(ctx, rec, info); err != nil {
			return s.degradeToFailed(ctx, rec, err), nil
		}
	case egress.StatusFailed:
		msg := info.Error
		if msg == "" {
			msg = "unknown egress error"
		}
		if err := rec.Fail(msg); err != nil {
			return rec, err
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return rec, fmt.Errorf("save recording %s: %w", rec.ID, err)
		}
		s.logger.Error("egress failed",
			zap.String("recording_id", rec.ID.String()),
			zap.String("error", msg),
		)
	}
	return rec, nil
}

// completeRecording finalizes a recording from a complete event: playlist
// URL from storage, duration from the event, size from the event with a
// storage metadata fallback.
func (s *Service) completeRecording(ctx context.Context, rec *models.Recording, info *egress.Info) error {
	// The stop path may never have run here (egress can auto-stop).
	if rec.Status == models.RecordingStatusActive {
		if err := rec.StartProcessing(); err != nil {
			return err
		}
	}

	playlistKey := storage.PlaylistKey(rec.StoragePath)
	playlistURL, err := s.storage.GeneratePresignedDownloadURL(ctx, rec.StorageBucket, playlistKey, s.defaults.PresignExpire)
	if err != nil {
		return fmt.Errorf("presign playlist for recording %s: %w", rec.ID, err)
	}

	var fileSize int64
	if info.FileSizeBytes != nil {
		fileSize = *info.FileSizeBytes
	} else {
		obj, err := s.storage.GetObjectInfo(ctx, rec.StorageBucket, playlistKey)
		if err != nil {
			return fmt.Errorf("object info for recording %s: %w", rec.ID, err)
		}
		if obj != nil {
			fileSize = obj.SizeBytes
		}
	}

	if err := rec.Complete(playlistURL, info.DurationSeconds, fileSize); err != nil {
		return err
	}
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("save recording %s: %w", rec.ID, err)
	}

	s.logger.Info("recording completed",
		zap.String("recording_id", rec.ID.String()),
		zap.Int("duration_seconds", info.DurationSeconds),
		zap.Int64("file_size_bytes", fileSize),
	)
	return nil
}

// degradeToFailed marks a recording failed after a reconciliation error so
// webhook handling never strands it in a non-terminal state.
func (s *Service) degradeToFailed(ctx context.Context, rec *models.Recording, cause error) *models.Recording {
	s.logger.Error("egress event handling failed",
		zap.Error(cause),
		zap.String("recording_id", rec.ID.String()),
	)
	if err := rec.Fail(cause.Error()); err != nil {
		return rec
	}
	if err := s.store.Save(ctx, rec); err != nil {
		s.logger.Error("save failed recording", zap.Error(err), zap.String("recording_id", rec.ID.String()))
	}
	return rec
}

// GetPlaybackURL generates a fresh presigned playlist URL for a completed
// recording. URLs are never cached; expiry windows make caching unsafe.
func (s *Service) GetPlaybackURL(ctx context.Context, recordingID uuid.UUID, expire time.Duration) (string, error) {
	rec, err := s.store.GetByID(ctx, recordingID)
	if err != nil {
		return "", fmt.Errorf("lookup recording %s: %w", recordingID, err)
	}
	if rec == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, recordingID)
	}
	if rec.Status != models.RecordingStatusCompleted {
		return "", fmt.Errorf("%w: recording %s is %s", ErrNotCompleted, recordingID, rec.Status)
	}
	if expire <= 0 {
		expire = s.defaults.PresignExpire
	}
	url, err := s.storage.GeneratePresignedDownloadURL(ctx, rec.StorageBucket, storage.PlaylistKey(rec.StoragePath), expire)
	if err != nil {
		return "", fmt.Errorf("presign playlist for recording %s: %w", recordingID, err)
	}
	return url, nil
}

// GetRecording returns a recording by ID, or nil when absent.
func (s *Service) GetRecording(ctx context.Context, recordingID uuid.UUID) (*models.Recording, error) {
	return s.store.GetByID(ctx, recordingID)
}

// GetRecordingBySession returns the latest recording for a session, or nil.
func (s *Service) GetRecordingBySession(ctx context.Context, sessionID uuid.UUID) (*models.Recording, error) {
	return s.store.GetBySessionID(ctx, sessionID)
}
