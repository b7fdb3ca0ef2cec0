// Package storage provides S3-compatible object storage access for recording
// playback: presigned URLs and object metadata. Works against AWS S3 and
// MinIO (custom endpoint, path-style addressing).
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"
)

const (
	// FolderRecordings is the object key prefix for recording output.
	FolderRecordings = "recordings"
	// PlaylistName is the HLS index file egress writes at the storage path.
	PlaylistName = "index.m3u8"
)

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	EndpointURL          string // non-empty for MinIO/dev
	RecordingsBucket     string
	PresignExpireSeconds int
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Bucket       string
	Key          string
	SizeBytes    int64
	LastModified *time.Time
	ContentType  string
	ETag         string
}

// S3 provides object storage operations for recordings.
type S3 struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     S3Config
	logger  *zap.Logger
}

// NewS3 creates an S3 client. Credentials come from config when set,
// otherwise the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true // MinIO requires path-style addressing
		}
	})
	logger.Info("S3 client ready",
		zap.String("region", cfg.Region),
		zap.String("recordings_bucket", cfg.RecordingsBucket),
		zap.Bool("custom_endpoint", cfg.EndpointURL != ""),
	)
	return &S3{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// RecordingPath returns the storage path for a session's recording output:
// recordings/{session_id}.
func RecordingPath(sessionID string) string {
	return path.Join(FolderRecordings, sessionID)
}

// PlaylistKey returns the object key of the HLS playlist under a storage
// path.
func PlaylistKey(storagePath string) string {
	return path.Join(storagePath, PlaylistName)
}

// GeneratePresignedDownloadURL returns a pre-signed GET URL for an object.
func (s *S3) GeneratePresignedDownloadURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expires
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// GetObjectInfo returns object metadata, or nil if the object does not
// exist.
func (s *S3) GetObjectInfo(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("head object: %w", err)
	}
	info := &ObjectInfo{
		Bucket:       bucket,
		Key:          key,
		LastModified: out.LastModified,
	}
	if out.ContentLength != nil {
		info.SizeBytes = *out.ContentLength
	}
	if out.ContentType != nil {
		info.ContentType = *out.ContentType
	}
	if out.ETag != nil {
		info.ETag = *out.ETag
	}
	return info, nil
}

// ObjectExists reports whether an object is present.
func (s *S3) ObjectExists(ctx context.Context, bucket, key string) (bool, error) {
	info, err := s.GetObjectInfo(ctx, bucket, key)
	if err != nil {
		return false, err
	}
	return info != nil, nil
}

// DeleteObject removes an object.
func (s *S3) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// ListObjects returns metadata for objects under a prefix.
func (s *S3) ListObjects(ctx context.Context, bucket, prefix string, maxKeys int32) ([]ObjectInfo, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(maxKeys),
	})
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	infos := make([]ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		info := ObjectInfo{Bucket: bucket, LastModified: obj.LastModified}
		if obj.Key != nil {
			info.Key = *obj.Key
		}
		if obj.Size != nil {
			info.SizeBytes = *obj.Size
		}
		if obj.ETag != nil {
			info.ETag = *obj.ETag
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(s.cfg.PresignExpireSeconds) * time.Second
}

// RecordingsBucket returns the configured recordings bucket name.
func (s *S3) RecordingsBucket() string { return s.cfg.RecordingsBucket }

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "404"
	}
	return false
}
