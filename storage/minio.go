// Package storage is a thin MinIO wrapper for the original uploads and
// mixed outputs.
package storage

import (
	"context"
	"time"

	"vidscore/config"
	"vidscore/errs"

	miniosdk "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

type Client struct {
	mc      *miniosdk.Client
	bucket  string
	signTTL time.Duration
	log     *zap.Logger
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Client, error) {
	mc, err := miniosdk.New(cfg.MinioEndpoint, &miniosdk.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, &errs.StorageError{Op: "connect", Key: cfg.MinioEndpoint, Err: err}
	}

	exists, err := mc.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, &errs.StorageError{Op: "check bucket", Key: cfg.MinioBucket, Err: err}
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.MinioBucket, miniosdk.MakeBucketOptions{}); err != nil {
			return nil, &errs.StorageError{Op: "create bucket", Key: cfg.MinioBucket, Err: err}
		}
		log.Info("created bucket", zap.String("bucket", cfg.MinioBucket))
	}

	return &Client{
		mc:      mc,
		bucket:  cfg.MinioBucket,
		signTTL: cfg.SignTTL,
		log:     log,
	}, nil
}

// UploadFile stores a local file under the given object key.
func (c *Client) UploadFile(ctx context.Context, path, key string) error {
	_, err := c.mc.FPutObject(ctx, c.bucket, key, path, miniosdk.PutObjectOptions{})
	if err != nil {
		return &errs.StorageError{Op: "put", Key: key, Err: err}
	}
	c.log.Info("uploaded object", zap.String("key", key))
	return nil
}

// DownloadFile fetches an object into a local file.
func (c *Client) DownloadFile(ctx context.Context, key, path string) error {
	if err := c.mc.FGetObject(ctx, c.bucket, key, path, miniosdk.GetObjectOptions{}); err != nil {
		return &errs.StorageError{Op: "get", Key: key, Err: err}
	}
	return nil
}

// PresignedURL mints a time-limited read link for an object.
func (c *Client) PresignedURL(ctx context.Context, key string) (string, error) {
	u, err := c.mc.PresignedGetObject(ctx, c.bucket, key, c.signTTL, nil)
	if err != nil {
		return "", &errs.StorageError{Op: "presign", Key: key, Err: err}
	}
	return u.String(), nil
}
