package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	startEgressPath = "/twirp/livekit.Egress/StartRoomCompositeEgress"
	stopEgressPath  = "/twirp/livekit.Egress/StopEgress"
	listEgressPath  = "/twirp/livekit.Egress/ListEgress"

	tokenTTL = 10 * time.Minute
)

// LiveKitConfig holds connection settings for the LiveKit server.
type LiveKitConfig struct {
	// URL is the LiveKit server URL (ws:// or http:// scheme both accepted).
	URL       string
	APIKey    string
	APISecret string
	// S3 upload settings forwarded to egress when a custom endpoint (MinIO)
	// is in use.
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
}

// LiveKitClient implements Client against the LiveKit Egress HTTP API.
type LiveKitClient struct {
	cfg    LiveKitConfig
	base   string
	http   *http.Client
	logger *zap.Logger
}

// NewLiveKitClient creates an egress API client.
func NewLiveKitClient(cfg LiveKitConfig, logger *zap.Logger) *LiveKitClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.URL
	base = strings.Replace(base, "ws://", "http://", 1)
	base = strings.Replace(base, "wss://", "https://", 1)
	base = strings.TrimSuffix(base, "/")
	return &LiveKitClient{
		cfg:    cfg,
		base:   base,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type s3Upload struct {
	AccessKey string `json:"accessKey,omitempty"`
	Secret    string `json:"secret,omitempty"`
	Region    string `json:"region,omitempty"`
	Endpoint  string `json:"endpoint,omitempty"`
	ForcePath bool   `json:"forcePathStyle,omitempty"`
}

type segmentOutput struct {
	FilenamePrefix  string    `json:"filenamePrefix"`
	PlaylistName    string    `json:"playlistName"`
	SegmentDuration int       `json:"segmentDuration,omitempty"`
	S3              *s3Upload `json:"s3,omitempty"`
}

type startRoomCompositeRequest struct {
	RoomName       string          `json:"roomName"`
	SegmentOutputs []segmentOutput `json:"segmentOutputs"`
}

type stopEgressRequest struct {
	EgressID string `json:"egressId"`
}

type listEgressRequest struct {
	EgressID string `json:"egressId"`
}

type listEgressResponse struct {
	Items []InfoPayload `json:"items"`
}

type twirpError struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// StartRoomComposite starts an HLS room composite capture writing segments
// to the configured bucket and path.
func (c *LiveKitClient) StartRoomComposite(ctx context.Context, cfg Config) (*Info, error) {
	out := segmentOutput{
		FilenamePrefix:  fmt.Sprintf("s3://%s/%s", cfg.OutputBucket, cfg.OutputPath),
		PlaylistName:    "index.m3u8",
		SegmentDuration: cfg.SegmentDuration,
	}
	if c.cfg.S3Endpoint != "" {
		out.S3 = &s3Upload{
			AccessKey: c.cfg.S3AccessKey,
			Secret:    c.cfg.S3SecretKey,
			Region:    c.cfg.S3Region,
			Endpoint:  c.cfg.S3Endpoint,
			ForcePath: true,
		}
	}

	c.logger.Info("starting room composite egress",
		zap.String("room_name", cfg.RoomName),
		zap.String("bucket", cfg.OutputBucket),
		zap.String("path", cfg.OutputPath),
	)

	var payload InfoPayload
	req := startRoomCompositeRequest{RoomName: cfg.RoomName, SegmentOutputs: []segmentOutput{out}}
	if err := c.post(ctx, startEgressPath, req, &payload); err != nil {
		return nil, fmt.Errorf("start room composite for %s: %w", cfg.RoomName, err)
	}
	info := ConvertInfo(&payload)
	if info.RoomName == "" {
		info.RoomName = cfg.RoomName
	}
	return info, nil
}

// StopEgress stops a running capture job.
func (c *LiveKitClient) StopEgress(ctx context.Context, egressID string) (*Info, error) {
	c.logger.Info("stopping egress", zap.String("egress_id", egressID))

	var payload InfoPayload
	if err := c.post(ctx, stopEgressPath, stopEgressRequest{EgressID: egressID}, &payload); err != nil {
		return nil, fmt.Errorf("stop egress %s: %w", egressID, err)
	}
	return ConvertInfo(&payload), nil
}

// GetEgressInfo returns the current state of a capture job, or nil when the
// server no longer knows the egress ID.
func (c *LiveKitClient) GetEgressInfo(ctx context.Context, egressID string) (*Info, error) {
	var resp listEgressResponse
	if err := c.post(ctx, listEgressPath, listEgressRequest{EgressID: egressID}, &resp); err != nil {
		return nil, fmt.Errorf("list egress %s: %w", egressID, err)
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	return ConvertInfo(&resp.Items[0]), nil
}

func (c *LiveKitClient) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrEgress, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEgress, err)
	}
	token, err := c.accessToken()
	if err != nil {
		return fmt.Errorf("%w: sign token: %v", ErrEgress, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEgress, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrEgress, err)
	}
	if resp.StatusCode != http.StatusOK {
		var te twirpError
		if json.Unmarshal(data, &te) == nil && te.Code == "not_found" {
			return fmt.Errorf("%w: %s", ErrEgressNotFound, te.Msg)
		}
		return fmt.Errorf("%w: status %d: %s", ErrEgress, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrEgress, err)
	}
	return nil
}

// accessToken signs a short-lived API token with the recording grant.
func (c *LiveKitClient) accessToken() (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.cfg.APIKey,
		"nbf":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
		"video": map[string]any{"roomRecord": true},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.cfg.APISecret))
}
