package recordings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/echo-sphere/backend/internal/egress"
	"github.com/echo-sphere/backend/internal/models"
)

const (
	testAPIKey    = "APIkey123"
	testAPISecret = "supersecret"
)

type fakeSink struct {
	infos []*egress.Info
	err   error
}

func (f *fakeSink) HandleEgressEvent(ctx context.Context, info *egress.Info) (*models.Recording, error) {
	f.infos = append(f.infos, info)
	return nil, f.err
}

func signBody(t *testing.T, body []byte, key, secret string) string {
	t.Helper()
	sum := sha256.Sum256(body)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":    key,
		"exp":    time.Now().Add(time.Minute).Unix(),
		"sha256": base64.StdEncoding.EncodeToString(sum[:]),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func postWebhook(t *testing.T, sink *fakeSink, body []byte, auth string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	h := NewWebhookHandler(testAPIKey, testAPISecret, sink, nil, nil)
	router.POST("/webhooks/livekit", h.Handle)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/livekit", bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestWebhookDispatchesEgressEvent(t *testing.T) {
	body := []byte(`{
		"id": "EV_1",
		"event": "egress_ended",
		"egressInfo": {
			"egressId": "EG_1",
			"roomName": "room-1",
			"status": "EGRESS_COMPLETE",
			"segmentResults": [{"playlistLocation": "recordings/x/index.m3u8", "duration": "95000000000", "size": "4096"}]
		}
	}`)
	sink := &fakeSink{}
	w := postWebhook(t, sink, body, signBody(t, body, testAPIKey, testAPISecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if len(sink.infos) != 1 {
		t.Fatalf("sink calls = %d, want 1", len(sink.infos))
	}
	info := sink.infos[0]
	if info.EgressID != "EG_1" || info.Status != egress.StatusComplete {
		t.Fatalf("info = %+v", info)
	}
	if info.FileSizeBytes == nil || *info.FileSizeBytes != 4096 {
		t.Fatalf("file size = %v", info.FileSizeBytes)
	}
	if info.DurationSeconds != 95 {
		t.Fatalf("duration = %d", info.DurationSeconds)
	}
}

func TestWebhookIgnoresUnrelatedEvents(t *testing.T) {
	body := []byte(`{"id": "EV_2", "event": "room_finished"}`)
	sink := &fakeSink{}
	w := postWebhook(t, sink, body, signBody(t, body, testAPIKey, testAPISecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 ack for unhandled event types", w.Code)
	}
	if len(sink.infos) != 0 {
		t.Fatal("non-egress events must not reach the sink")
	}
}

func TestWebhookRejectsBadSignatures(t *testing.T) {
	body := []byte(`{"id": "EV_3", "event": "egress_started", "egressInfo": {"egressId": "EG_1", "status": "EGRESS_ACTIVE"}}`)
	tests := []struct {
		name string
		auth string
	}{
		{"missing header", ""},
		{"wrong secret", signBody(t, body, testAPIKey, "wrong")},
		{"wrong issuer", signBody(t, body, "otherkey", testAPISecret)},
		{"body mismatch", signBody(t, []byte(`{"tampered":true}`), testAPIKey, testAPISecret)},
		{"garbage token", "not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &fakeSink{}
			w := postWebhook(t, sink, body, tt.auth)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			if len(sink.infos) != 0 {
				t.Fatal("unverified webhook must not reach the sink")
			}
		})
	}
}

func TestWebhookAcksWhenHandlingFails(t *testing.T) {
	// The delivery was valid and processed; a reconciliation error is not the
	// sender's problem and must not trigger redelivery.
	body := []byte(`{"id": "EV_4", "event": "egress_updated", "egressInfo": {"egressId": "EG_1", "status": "EGRESS_ACTIVE"}}`)
	sink := &fakeSink{err: context.DeadlineExceeded}
	w := postWebhook(t, sink, body, signBody(t, body, testAPIKey, testAPISecret))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestWebhookRejectsMissingEgressInfo(t *testing.T) {
	body := []byte(`{"id": "EV_5", "event": "egress_ended"}`)
	sink := &fakeSink{}
	w := postWebhook(t, sink, body, signBody(t, body, testAPIKey, testAPISecret))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
