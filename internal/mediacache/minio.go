package mediacache

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const objectPrefix = "media/"

// MinioConfig holds the object storage connection settings
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioCache keeps media in an S3-compatible bucket
type MinioCache struct {
	client *minio.Client
	bucket string
	log    *zap.Logger
}

// NewMinioCache connects and creates the bucket if it doesn't exist
func NewMinioCache(ctx context.Context, cfg MinioConfig, log *zap.Logger) (*MinioCache, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Info("media bucket created", zap.String("bucket", cfg.Bucket))
	}

	return &MinioCache{client: client, bucket: cfg.Bucket, log: log}, nil
}

func objectName(id string) string { return objectPrefix + id }

func (c *MinioCache) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	id := uuid.NewString()
	info, err := c.client.PutObject(ctx, c.bucket, objectName(id), r, -1, minio.PutObjectOptions{
		ContentType:  contentType(name),
		UserMetadata: map[string]string{"name": name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload media: %w", err)
	}
	c.log.Info("media uploaded",
		zap.String("id", id),
		zap.String("name", name),
		zap.Int64("size", info.Size))
	return id, nil
}

func (c *MinioCache) Get(ctx context.Context, id string) (*Media, error) {
	if err := validID(id); err != nil {
		return nil, err
	}
	info, err := c.client.StatObject(ctx, c.bucket, objectName(id), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: media %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get object info: %w", err)
	}
	obj, err := c.client.GetObject(ctx, c.bucket, objectName(id), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	return &Media{ID: id, Name: info.UserMetadata["Name"], Size: info.Size, Body: obj}, nil
}

func (c *MinioCache) Delete(ctx context.Context, id string) error {
	if err := validID(id); err != nil {
		return err
	}
	if _, err := c.client.StatObject(ctx, c.bucket, objectName(id), minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return fmt.Errorf("%w: media %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to get object info: %w", err)
	}
	if err := c.client.RemoveObject(ctx, c.bucket, objectName(id), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}
