// Package minio provides the S3-compatible object store used for exported
// report artifacts.
package minio

import (
	"bytes"
	"context"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/turtacn/RxDossier/internal/config"
	"github.com/turtacn/RxDossier/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/RxDossier/pkg/errors"
)

// Store wraps one bucket of an S3-compatible endpoint.
type Store struct {
	client *minio.Client
	bucket string
	logger logging.Logger
}

// NewStore connects to the endpoint.  The bucket is created on first use,
// not here, so construction works before the storage service is up.
func NewStore(cfg config.StorageConfig, logger logging.Logger) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to create object storage client")
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.Named("minio"),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check bucket existence")
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create bucket").
			WithDetail(s.bucket)
	}
	s.logger.Info("created artifact bucket", logging.String("bucket", s.bucket))
	return nil
}

// Put uploads one object and returns its key.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExportFailed, "failed to upload artifact").
			WithDetail(key)
	}
	s.logger.Debug("artifact stored",
		logging.String("key", key),
		logging.Int("bytes", len(data)),
	)
	return key, nil
}

// Get downloads one object.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to fetch artifact").
			WithDetail(key)
	}
	defer obj.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(obj); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to read artifact").
			WithDetail(key)
	}
	return buf.Bytes(), nil
}
