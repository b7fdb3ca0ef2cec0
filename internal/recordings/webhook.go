package recordings

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/echo-sphere/backend/internal/egress"
	"github.com/echo-sphere/backend/internal/models"
	"github.com/echo-sphere/backend/pkg/response"
)

// dedupeTTL bounds how long processed webhook event IDs are remembered.
const dedupeTTL = 24 * time.Hour

// EventSink consumes translated egress events. Implemented by *Service.
type EventSink interface {
	HandleEgressEvent(ctx context.Context, info *egress.Info) (*models.Recording, error)
}

// webhookEvent is the LiveKit webhook envelope.
type webhookEvent struct {
	ID         string              `json:"id"`
	Event      string              `json:"event"`
	EgressInfo *egress.InfoPayload `json:"egressInfo"`
}

// WebhookHandler handles signed LiveKit webhooks. The Authorization header
// carries a JWT signed with the API secret whose sha256 claim commits to the
// request body.
type WebhookHandler struct {
	apiKey    string
	apiSecret string
	sink      EventSink
	rdb       *redis.Client // optional; nil disables event dedupe
	logger    *zap.Logger
}

// NewWebhookHandler creates a webhook handler.
func NewWebhookHandler(apiKey, apiSecret string, sink EventSink, rdb *redis.Client, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{apiKey: apiKey, apiSecret: apiSecret, sink: sink, rdb: rdb, logger: logger}
}

// Handle handles POST /webhooks/livekit. A verified webhook is always
// acknowledged with 200, even when the recording it refers to ends up
// failed: failure to record is not failure to process.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "failed to read body")
		return
	}
	if err := h.verify(body, c.GetHeader("Authorization")); err != nil {
		h.logger.Warn("webhook verification failed", zap.Error(err))
		response.Unauthorized(c, "invalid webhook signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.BadRequest(c, "invalid webhook payload")
		return
	}

	h.logger.Info("webhook received",
		zap.String("event", event.Event),
		zap.String("event_id", event.ID),
	)

	if h.seen(c.Request.Context(), event.ID) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	switch event.Event {
	case "egress_started", "egress_updated", "egress_ended":
		if event.EgressInfo == nil {
			response.BadRequest(c, "missing egressInfo")
			return
		}
		info := egress.ConvertInfo(event.EgressInfo)
		if _, err := h.sink.HandleEgressEvent(c.Request.Context(), info); err != nil {
			// Entity guard violation or store failure; surfaced in logs but
			// the delivery itself was processed.
			h.logger.Error("egress event handling failed",
				zap.Error(err),
				zap.String("egress_id", info.EgressID),
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// verify checks the webhook token: HS256 signature with the API secret,
// issuer matching the API key, and a sha256 claim committing to the body.
func (h *WebhookHandler) verify(body []byte, authHeader string) error {
	if authHeader == "" {
		return fmt.Errorf("missing authorization header")
	}
	token, err := jwt.Parse(authHeader, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(h.apiSecret), nil
	})
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("unexpected claims type")
	}
	if iss, _ := claims["iss"].(string); iss != h.apiKey {
		return fmt.Errorf("issuer mismatch")
	}
	claimed, _ := claims["sha256"].(string)
	sum := sha256.Sum256(body)
	expected := base64.StdEncoding.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(claimed), []byte(expected)) != 1 {
		return fmt.Errorf("body hash mismatch")
	}
	return nil
}

// seen records the event ID and reports whether it was already processed.
// Best effort: without redis, duplicate deliveries fall through to the state
// machine guards, which absorb them.
func (h *WebhookHandler) seen(ctx context.Context, eventID string) bool {
	if h.rdb == nil || eventID == "" {
		return false
	}
	fresh, err := h.rdb.SetNX(ctx, "webhook:event:"+eventID, 1, dedupeTTL).Result()
	if err != nil {
		h.logger.Warn("webhook dedupe unavailable", zap.Error(err))
		return false
	}
	if !fresh {
		h.logger.Info("duplicate webhook delivery", zap.String("event_id", eventID))
	}
	return !fresh
}
