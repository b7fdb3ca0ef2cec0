package models

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func newTestRecording(t *testing.T) *Recording {
	t.Helper()
	return NewRecording(uuid.New(), "EG_test", "recordings", "recordings/abc")
}

func advanceTo(t *testing.T, rec *Recording, status RecordingStatus) {
	t.Helper()
	steps := map[RecordingStatus]func() error{
		RecordingStatusActive:     rec.Activate,
		RecordingStatusProcessing: rec.StartProcessing,
		RecordingStatusCompleted:  func() error { return rec.Complete("https://example.com/index.m3u8", 10, 1024) },
	}
	order := []RecordingStatus{RecordingStatusActive, RecordingStatusProcessing, RecordingStatusCompleted}
	for _, s := range order {
		if rec.Status == status {
			return
		}
		if err := steps[s](); err != nil {
			t.Fatalf("advance to %s: %v", s, err)
		}
	}
	if rec.Status != status {
		t.Fatalf("could not advance to %s, at %s", status, rec.Status)
	}
}

func TestNewRecordingStartsInStarting(t *testing.T) {
	rec := newTestRecording(t)
	if rec.Status != RecordingStatusStarting {
		t.Fatalf("status = %s, want starting", rec.Status)
	}
	if rec.StartedAt != nil || rec.EndedAt != nil {
		t.Fatal("new recording should have no start or end timestamp")
	}
	if rec.ID == uuid.Nil {
		t.Fatal("new recording should have an ID")
	}
}

func TestRecordingHappyPath(t *testing.T) {
	rec := newTestRecording(t)

	if err := rec.Activate(); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	if rec.StartedAt == nil {
		t.Fatal("Activate should stamp StartedAt")
	}

	if err := rec.StartProcessing(); err != nil {
		t.Fatalf("StartProcessing: %v", err)
	}

	if err := rec.Complete("https://example.com/index.m3u8", 42, 2048); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if rec.Status != RecordingStatusCompleted {
		t.Fatalf("status = %s, want completed", rec.Status)
	}
	if rec.PlaylistURL != "https://example.com/index.m3u8" || rec.DurationSeconds != 42 || rec.FileSizeBytes != 2048 {
		t.Fatalf("outputs not recorded: %q %d %d", rec.PlaylistURL, rec.DurationSeconds, rec.FileSizeBytes)
	}
	if rec.EndedAt == nil {
		t.Fatal("Complete should stamp EndedAt")
	}
}

func TestRecordingInvalidTransitions(t *testing.T) {
	tests := []struct {
		name string
		from RecordingStatus
		call func(r *Recording) error
	}{
		{"starting to processing", RecordingStatusStarting, (*Recording).StartProcessing},
		{"starting to completed", RecordingStatusStarting, func(r *Recording) error { return r.Complete("u", 1, 1) }},
		{"active to completed", RecordingStatusActive, func(r *Recording) error { return r.Complete("u", 1, 1) }},
		{"active to active", RecordingStatusActive, (*Recording).Activate},
		{"processing to active", RecordingStatusProcessing, (*Recording).Activate},
		{"completed to processing", RecordingStatusCompleted, (*Recording).StartProcessing},
		{"completed to active", RecordingStatusCompleted, (*Recording).Activate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := newTestRecording(t)
			advanceTo(t, rec, tt.from)
			err := tt.call(rec)
			var invalid *InvalidTransitionError
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want InvalidTransitionError", err)
			}
			if invalid.From != tt.from {
				t.Fatalf("From = %s, want %s", invalid.From, tt.from)
			}
			if rec.Status != tt.from {
				t.Fatalf("status changed to %s on rejected transition", rec.Status)
			}
		})
	}
}

func TestRecordingFailFromAnyNonTerminal(t *testing.T) {
	for _, from := range []RecordingStatus{RecordingStatusStarting, RecordingStatusActive, RecordingStatusProcessing} {
		t.Run(string(from), func(t *testing.T) {
			rec := newTestRecording(t)
			advanceTo(t, rec, from)
			if err := rec.Fail("egress exploded"); err != nil {
				t.Fatalf("Fail from %s: %v", from, err)
			}
			if rec.Status != RecordingStatusFailed {
				t.Fatalf("status = %s, want failed", rec.Status)
			}
			if rec.ErrorMessage != "egress exploded" {
				t.Fatalf("error message = %q", rec.ErrorMessage)
			}
			if rec.EndedAt == nil {
				t.Fatal("Fail should stamp EndedAt")
			}
		})
	}
}

func TestRecordingFailOnTerminal(t *testing.T) {
	rec := newTestRecording(t)
	advanceTo(t, rec, RecordingStatusCompleted)
	err := rec.Fail("late failure")
	var terminal *AlreadyTerminalError
	if !errors.As(err, &terminal) {
		t.Fatalf("err = %v, want AlreadyTerminalError", err)
	}
	if rec.Status != RecordingStatusCompleted {
		t.Fatalf("status = %s, completed recording must not be overwritten", rec.Status)
	}
	if rec.ErrorMessage != "" {
		t.Fatalf("error message set on completed recording: %q", rec.ErrorMessage)
	}

	failed := newTestRecording(t)
	if err := failed.Fail("first"); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if err := failed.Fail("second"); !errors.As(err, &terminal) {
		t.Fatalf("err = %v, want AlreadyTerminalError", err)
	}
	if failed.ErrorMessage != "first" {
		t.Fatalf("error message = %q, want original preserved", failed.ErrorMessage)
	}
}

func TestRecordingIsTerminalIsActive(t *testing.T) {
	tests := []struct {
		status   RecordingStatus
		terminal bool
		active   bool
	}{
		{RecordingStatusStarting, false, true},
		{RecordingStatusActive, false, true},
		{RecordingStatusProcessing, false, false},
		{RecordingStatusCompleted, true, false},
		{RecordingStatusFailed, true, false},
	}
	for _, tt := range tests {
		rec := &Recording{Status: tt.status}
		if got := rec.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
		if got := rec.IsActive(); got != tt.active {
			t.Errorf("IsActive(%s) = %v, want %v", tt.status, got, tt.active)
		}
	}
}
