package egress

import (
	"bytes"
	"strconv"
	"time"
)

// LiveKit egress status codes as they appear on the wire (protojson encodes
// enum values by name).
const (
	wireStatusStarting     = "EGRESS_STARTING"
	wireStatusActive       = "EGRESS_ACTIVE"
	wireStatusEnding       = "EGRESS_ENDING"
	wireStatusComplete     = "EGRESS_COMPLETE"
	wireStatusFailed       = "EGRESS_FAILED"
	wireStatusAborted      = "EGRESS_ABORTED"
	wireStatusLimitReached = "EGRESS_LIMIT_REACHED"
)

// statusTable maps wire statuses onto the domain vocabulary. Aborted and
// limit-reached are both failures from the recording's point of view.
var statusTable = map[string]Status{
	wireStatusStarting:     StatusStarting,
	wireStatusActive:       StatusActive,
	wireStatusEnding:       StatusEnding,
	wireStatusComplete:     StatusComplete,
	wireStatusFailed:       StatusFailed,
	wireStatusAborted:      StatusFailed,
	wireStatusLimitReached: StatusFailed,
}

// ConvertStatus maps a wire status code to the domain status. Unknown codes
// map to starting: treat them as not yet actionable rather than guessing at
// a terminal meaning.
func ConvertStatus(wire string) Status {
	if s, ok := statusTable[wire]; ok {
		return s
	}
	return StatusStarting
}

// wireInt64 decodes protojson int64 fields, which arrive as JSON strings but
// show up as plain numbers from some senders.
type wireInt64 int64

func (w *wireInt64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*w = 0
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return err
	}
	*w = wireInt64(n)
	return nil
}

// SegmentResult is one HLS segment group in an egress payload.
type SegmentResult struct {
	PlaylistLocation string    `json:"playlistLocation"`
	Duration         wireInt64 `json:"duration"` // nanoseconds
	Size             wireInt64 `json:"size"`     // bytes
}

// InfoPayload is the egress info object as delivered by the LiveKit API and
// its webhooks.
type InfoPayload struct {
	EgressID       string          `json:"egressId"`
	RoomName       string          `json:"roomName"`
	Status         string          `json:"status"`
	StartedAt      wireInt64       `json:"startedAt"` // ns since epoch, 0 = unset
	EndedAt        wireInt64       `json:"endedAt"`   // ns since epoch, 0 = unset
	Error          string          `json:"error"`
	SegmentResults []SegmentResult `json:"segmentResults"`
}

// ConvertInfo translates a wire egress payload into the domain Info:
//   - nanosecond timestamps, 0 meaning unset
//   - total size as the sum of all segment sizes
//   - duration and playlist path from the first segment reporting one
//   - empty error normalized to absent
func ConvertInfo(p *InfoPayload) *Info {
	info := &Info{
		EgressID:  p.EgressID,
		RoomName:  p.RoomName,
		Status:    ConvertStatus(p.Status),
		StartedAt: nsToTime(int64(p.StartedAt)),
		EndedAt:   nsToTime(int64(p.EndedAt)),
		Error:     p.Error,
	}

	if len(p.SegmentResults) == 0 {
		return info
	}

	var total int64
	for _, seg := range p.SegmentResults {
		total += int64(seg.Size)
		if info.FilePath == "" && seg.PlaylistLocation != "" {
			info.FilePath = seg.PlaylistLocation
		}
		if info.DurationSeconds == 0 && seg.Duration > 0 {
			info.DurationSeconds = int(time.Duration(seg.Duration).Seconds())
		}
	}
	info.FileSizeBytes = &total
	return info
}

func nsToTime(ns int64) *time.Time {
	if ns == 0 {
		return nil
	}
	t := time.Unix(0, ns).UTC()
	return &t
}
