package egress

import (
	"encoding/json"
	"testing"
	"time"
)

func TestConvertStatus(t *testing.T) {
	tests := []struct {
		wire string
		want Status
	}{
		{"EGRESS_STARTING", StatusStarting},
		{"EGRESS_ACTIVE", StatusActive},
		{"EGRESS_ENDING", StatusEnding},
		{"EGRESS_COMPLETE", StatusComplete},
		{"EGRESS_FAILED", StatusFailed},
		{"EGRESS_ABORTED", StatusFailed},
		{"EGRESS_LIMIT_REACHED", StatusFailed},
		{"EGRESS_SOMETHING_NEW", StatusStarting},
		{"", StatusStarting},
	}
	for _, tt := range tests {
		if got := ConvertStatus(tt.wire); got != tt.want {
			t.Errorf("ConvertStatus(%q) = %s, want %s", tt.wire, got, tt.want)
		}
	}
}

func TestWireInt64Decoding(t *testing.T) {
	var payload struct {
		Quoted  wireInt64 `json:"quoted"`
		Plain   wireInt64 `json:"plain"`
		Missing wireInt64 `json:"missing"`
	}
	raw := `{"quoted":"1700000000000000000","plain":42}`
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.Quoted != 1700000000000000000 {
		t.Errorf("quoted = %d", payload.Quoted)
	}
	if payload.Plain != 42 {
		t.Errorf("plain = %d", payload.Plain)
	}
	if payload.Missing != 0 {
		t.Errorf("missing = %d, want 0", payload.Missing)
	}
}

func TestConvertInfoTimestamps(t *testing.T) {
	startedNs := int64(1700000000000000000)
	p := &InfoPayload{
		EgressID:  "EG_1",
		RoomName:  "room-1",
		Status:    "EGRESS_ACTIVE",
		StartedAt: wireInt64(startedNs),
	}
	info := ConvertInfo(p)
	if info.Status != StatusActive {
		t.Fatalf("status = %s", info.Status)
	}
	if info.StartedAt == nil || !info.StartedAt.Equal(time.Unix(0, startedNs).UTC()) {
		t.Fatalf("StartedAt = %v", info.StartedAt)
	}
	if info.EndedAt != nil {
		t.Fatalf("EndedAt = %v, want nil for zero timestamp", info.EndedAt)
	}
	if info.FileSizeBytes != nil {
		t.Fatal("FileSizeBytes should be nil without segment results")
	}
}

func TestConvertInfoSegments(t *testing.T) {
	p := &InfoPayload{
		EgressID: "EG_2",
		Status:   "EGRESS_COMPLETE",
		SegmentResults: []SegmentResult{
			{PlaylistLocation: "", Duration: 0, Size: 1000},
			{PlaylistLocation: "recordings/abc/index.m3u8", Duration: wireInt64(95 * int64(time.Second)), Size: 2500},
			{PlaylistLocation: "recordings/abc/other.m3u8", Duration: wireInt64(10 * int64(time.Second)), Size: 500},
		},
	}
	info := ConvertInfo(p)
	if info.FileSizeBytes == nil || *info.FileSizeBytes != 4000 {
		t.Fatalf("FileSizeBytes = %v, want sum 4000", info.FileSizeBytes)
	}
	if info.FilePath != "recordings/abc/index.m3u8" {
		t.Fatalf("FilePath = %q, want first non-empty playlist", info.FilePath)
	}
	if info.DurationSeconds != 95 {
		t.Fatalf("DurationSeconds = %d, want first non-zero duration", info.DurationSeconds)
	}
}

func TestConvertInfoZeroSizeSegments(t *testing.T) {
	p := &InfoPayload{
		EgressID:       "EG_3",
		Status:         "EGRESS_COMPLETE",
		SegmentResults: []SegmentResult{{PlaylistLocation: "recordings/x/index.m3u8"}},
	}
	info := ConvertInfo(p)
	if info.FileSizeBytes == nil || *info.FileSizeBytes != 0 {
		t.Fatalf("FileSizeBytes = %v, want explicit 0 when segments report no size", info.FileSizeBytes)
	}
}
