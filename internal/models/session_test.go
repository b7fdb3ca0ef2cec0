package models

import (
	"testing"
	"time"
)

func TestSessionLifecycle(t *testing.T) {
	s := NewSession("room-1", "user-1")
	if s.Status != SessionStatusPending {
		t.Fatalf("status = %s, want pending", s.Status)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Status != SessionStatusActive || s.StartedAt == nil {
		t.Fatalf("Start did not activate: %s", s.Status)
	}
	if err := s.Start(); err == nil {
		t.Fatal("second Start should fail")
	}

	if err := s.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if s.Status != SessionStatusCompleted || s.EndedAt == nil {
		t.Fatalf("Complete did not finish: %s", s.Status)
	}
	if err := s.Complete(); err == nil {
		t.Fatal("second Complete should fail")
	}
}

func TestSessionCompleteRequiresActive(t *testing.T) {
	s := NewSession("room-1", "user-1")
	if err := s.Complete(); err == nil {
		t.Fatal("Complete on pending session should fail")
	}
}

func TestSessionDurationSeconds(t *testing.T) {
	s := NewSession("room-1", "user-1")
	if got := s.DurationSeconds(); got != 0 {
		t.Fatalf("duration before start = %v, want 0", got)
	}

	start := time.Now().UTC().Add(-90 * time.Second)
	end := start.Add(60 * time.Second)
	s.StartedAt = &start
	s.EndedAt = &end
	if got := s.DurationSeconds(); got != 60 {
		t.Fatalf("duration = %v, want 60", got)
	}
}
