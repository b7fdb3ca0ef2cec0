package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordingStatus is the lifecycle state of a recording.
//
// State machine:
//
//	starting -> active -> processing -> completed
//	    |         |           |
//	    v         v           v
//	  failed    failed      failed
type RecordingStatus string

const (
	RecordingStatusStarting   RecordingStatus = "starting"
	RecordingStatusActive     RecordingStatus = "active"
	RecordingStatusProcessing RecordingStatus = "processing"
	RecordingStatusCompleted  RecordingStatus = "completed"
	RecordingStatusFailed     RecordingStatus = "failed"
)

// validTransitions is the full transition table. Transitions are only
// permitted along these edges; terminal states have no outgoing edges.
var validTransitions = map[RecordingStatus][]RecordingStatus{
	RecordingStatusStarting:   {RecordingStatusActive, RecordingStatusFailed},
	RecordingStatusActive:     {RecordingStatusProcessing, RecordingStatusFailed},
	RecordingStatusProcessing: {RecordingStatusCompleted, RecordingStatusFailed},
	RecordingStatusCompleted:  {},
	RecordingStatusFailed:     {},
}

// InvalidTransitionError reports an attempted state change that is not
// permitted from the current status.
type InvalidTransitionError struct {
	From RecordingStatus
	To   RecordingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition recording from %s to %s", e.From, e.To)
}

// AlreadyTerminalError reports a Fail call on a recording that already
// reached a terminal state.
type AlreadyTerminalError struct {
	Status RecordingStatus
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("cannot fail recording in %s status", e.Status)
}

// Recording is an egress recording of a voice session. Status changes only
// through the transition methods below; there is no raw status setter.
type Recording struct {
	ID              uuid.UUID       `json:"id"`
	SessionID       uuid.UUID       `json:"session_id"`
	EgressID        string          `json:"egress_id"`
	Status          RecordingStatus `json:"status"`
	StorageBucket   string          `json:"storage_bucket"`
	StoragePath     string          `json:"storage_path"`
	PlaylistURL     string          `json:"playlist_url,omitempty"`
	DurationSeconds int             `json:"duration_seconds"`
	FileSizeBytes   int64           `json:"file_size_bytes"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	EndedAt         *time.Time      `json:"ended_at,omitempty"`
}

// NewRecording creates a recording in the starting state. The egress ID is a
// placeholder until the capture job reports its real one.
func NewRecording(sessionID uuid.UUID, egressID, bucket, path string) *Recording {
	now := time.Now().UTC()
	return &Recording{
		ID:            uuid.New(),
		SessionID:     sessionID,
		EgressID:      egressID,
		Status:        RecordingStatusStarting,
		StorageBucket: bucket,
		StoragePath:   path,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func (r *Recording) transitionTo(next RecordingStatus) error {
	for _, allowed := range validTransitions[r.Status] {
		if allowed == next {
			r.Status = next
			r.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return &InvalidTransitionError{From: r.Status, To: next}
}

// Activate marks the recording active (egress started) and stamps StartedAt.
func (r *Recording) Activate() error {
	if err := r.transitionTo(RecordingStatusActive); err != nil {
		return err
	}
	now := time.Now().UTC()
	r.StartedAt = &now
	return nil
}

// StartProcessing marks the recording as processing (egress stopped, output
// being finalized).
func (r *Recording) StartProcessing() error {
	return r.transitionTo(RecordingStatusProcessing)
}

// Complete marks the recording completed and records its playback output.
// The three output values are only ever set together, here.
func (r *Recording) Complete(playlistURL string, durationSeconds int, fileSizeBytes int64) error {
	if err := r.transitionTo(RecordingStatusCompleted); err != nil {
		return err
	}
	r.PlaylistURL = playlistURL
	r.DurationSeconds = durationSeconds
	r.FileSizeBytes = fileSizeBytes
	now := time.Now().UTC()
	r.EndedAt = &now
	return nil
}

// Fail marks the recording failed. Valid from any non-terminal state.
func (r *Recording) Fail(errorMessage string) error {
	if r.IsTerminal() {
		return &AlreadyTerminalError{Status: r.Status}
	}
	r.Status = RecordingStatusFailed
	r.ErrorMessage = errorMessage
	now := time.Now().UTC()
	r.EndedAt = &now
	r.UpdatedAt = now
	return nil
}

// IsTerminal reports whether the recording reached completed or failed.
func (r *Recording) IsTerminal() bool {
	return r.Status == RecordingStatusCompleted || r.Status == RecordingStatusFailed
}

// IsActive reports whether the recording is live (starting or active); used
// to decide whether a session already has a recording in flight.
func (r *Recording) IsActive() bool {
	return r.Status == RecordingStatusStarting || r.Status == RecordingStatusActive
}
