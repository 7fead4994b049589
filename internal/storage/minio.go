package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mymiscarriage/apiserver/config"
)

const minioNoSuchKey = "NoSuchKey"

// MinioClient talks to MinIO or any other S3-compatible endpoint with
// static keys.
type MinioClient struct {
	client *minio.Client
	bucket string
}

func NewMinioClient(cfg config.MinioConfig) (*MinioClient, error) {
	switch {
	case strings.TrimSpace(cfg.Endpoint) == "":
		return nil, errors.New("minio endpoint is required")
	case strings.TrimSpace(cfg.AccessKey) == "", strings.TrimSpace(cfg.SecretKey) == "":
		return nil, errors.New("minio access key and secret key are required")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("minio bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &MinioClient{client: client, bucket: cfg.Bucket}, nil
}

func (m *MinioClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil || exists {
		return err
	}
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

// Write uploads obj with caching disabled, since exports hold personal
// stories.
func (m *MinioClient) Write(ctx context.Context, obj Object) error {
	_, err := m.client.PutObject(ctx, m.bucket, obj.Key, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		CacheControl: "no-store",
		UserMetadata: obj.Metadata,
	})
	return err
}

func (m *MinioClient) Read(ctx context.Context, key string) (Object, error) {
	reader, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return Object{}, minioError(err)
	}
	defer reader.Close()

	info, err := reader.Stat()
	if err != nil {
		return Object{}, minioError(err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return Object{}, minioError(err)
	}
	return Object{
		Key:         key,
		Data:        data,
		ContentType: info.ContentType,
		Metadata:    info.UserMetadata,
	}, nil
}

func (m *MinioClient) Remove(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

func (m *MinioClient) Location(key string) string {
	return m.client.EndpointURL().JoinPath(m.bucket, key).String()
}

func minioError(err error) error {
	if minio.ToErrorResponse(err).Code == minioNoSuchKey {
		return ErrObjectNotFound
	}
	return err
}
