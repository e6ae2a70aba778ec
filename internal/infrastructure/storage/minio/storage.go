package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/luismhernandezs-crypto/doc-classifier/internal/core/domain"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

// Storage is the MinIO/S3 artifact store.
type Storage struct {
	client *minio.Client
	region string
	logger *slog.Logger
}

// New accepts the endpoint as host:port or as a URL; an explicit scheme
// overrides UseSSL.
func New(cfg Config, logger *slog.Logger) (*Storage, error) {
	host, secure := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if host == "" {
		return nil, domain.WrapError(domain.ErrFatalStartup, "minio", fmt.Errorf("endpoint is required"))
	}
	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrFatalStartup, "minio client", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{client: client, region: cfg.Region, logger: logger}, nil
}

func splitEndpoint(raw string, useSSL bool) (string, bool) {
	host := strings.TrimSpace(raw)
	lower := strings.ToLower(host)
	switch {
	case strings.HasPrefix(lower, "https://"):
		host, useSSL = host[len("https://"):], true
	case strings.HasPrefix(lower, "http://"):
		host, useSSL = host[len("http://"):], false
	}
	return strings.TrimRight(host, "/"), useSSL
}

func (s *Storage) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapGetError(bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapGetError(bucket, key, err)
	}
	return data, nil
}

func (s *Storage) mapGetError(bucket, key string, err error) error {
	if isNotFound(err) {
		return domain.WrapError(domain.ErrNotFound, "minio get", fmt.Errorf("%s/%s", bucket, key))
	}
	return fmt.Errorf("minio get %s/%s: %w", bucket, key, err)
}

func (s *Storage) Exists(ctx context.Context, bucket string) (bool, error) {
	ok, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return false, fmt.Errorf("minio bucket exists %s: %w", bucket, err)
	}
	return ok, nil
}

// EnsureBucket creates the bucket when missing. A concurrent creator winning
// the race is not an error.
func (s *Storage) EnsureBucket(ctx context.Context, bucket string) error {
	ok, err := s.Exists(ctx, bucket)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		code := minio.ToErrorResponse(err).Code
		if code == "BucketAlreadyOwnedByYou" || code == "BucketAlreadyExists" {
			return nil
		}
		return fmt.Errorf("minio make bucket %s: %w", bucket, err)
	}
	s.logger.Info("bucket_created", "bucket", bucket)
	return nil
}

func (s *Storage) List(ctx context.Context, bucket, prefix string) ([]domain.ObjectInfo, error) {
	out := make([]domain.ObjectInfo, 0)
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio list %s: %w", bucket, obj.Err)
		}
		out = append(out, domain.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified.UTC(),
		})
	}
	return out, nil
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return true
	default:
		return false
	}
}
