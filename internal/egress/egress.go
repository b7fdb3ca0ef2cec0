// Package egress talks to the LiveKit Egress API: starting and stopping room
// composite captures and translating egress status payloads into the
// vocabulary the recording service reconciles against.
package egress

import (
	"context"
	"errors"
	"time"
)

// Status is the domain-side egress lifecycle vocabulary.
type Status string

const (
	StatusStarting Status = "starting"
	StatusActive   Status = "active"
	StatusEnding   Status = "ending"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// Errors returned by egress operations.
var (
	// ErrEgress is the generic egress failure; all client errors wrap it.
	ErrEgress = errors.New("egress error")
	// ErrEgressNotFound is returned when stopping or querying an unknown job.
	ErrEgressNotFound = errors.New("egress not found")
)

// Config describes a room composite capture job to start.
type Config struct {
	RoomName        string
	OutputBucket    string
	OutputPath      string
	Width           int
	Height          int
	SegmentDuration int
}

// Info is the translated state of an egress job, from either an API response
// or a webhook event.
type Info struct {
	EgressID        string
	RoomName        string
	Status          Status
	StartedAt       *time.Time
	EndedAt         *time.Time
	FilePath        string
	Error           string
	DurationSeconds int
	// FileSizeBytes is nil when the payload carried no segment sizes; the
	// service falls back to a storage lookup in that case.
	FileSizeBytes *int64
}

// Client is the capability the recording service needs from the egress
// system.
type Client interface {
	StartRoomComposite(ctx context.Context, cfg Config) (*Info, error)
	StopEgress(ctx context.Context, egressID string) (*Info, error)
	GetEgressInfo(ctx context.Context, egressID string) (*Info, error)
}
