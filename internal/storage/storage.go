package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mymiscarriage/apiserver/config"
)

// ErrObjectNotFound is returned by Read when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

const defaultContentType = "application/octet-stream"

// Object is a stored blob. Metadata keys are lower-case on both write and
// read, whatever casing the backend uses on the wire.
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

// Backend is implemented once per provider.
type Backend interface {
	EnsureBucket(ctx context.Context) error
	Write(ctx context.Context, obj Object) error
	Read(ctx context.Context, key string) (Object, error)
	Remove(ctx context.Context, key string) error
	// Location renders key as a provider URI, e.g. gs://bucket/key.
	Location(key string) string
}

// Store normalises keys and metadata before handing objects to a Backend.
type Store struct {
	backend Backend
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Open builds the backend selected by cfg.Backend. It returns (nil, nil)
// when object storage is disabled.
func Open(ctx context.Context, cfg config.StorageConfig) (*Store, error) {
	var (
		backend Backend
		err     error
	)
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch name {
	case "", "none":
		return nil, nil
	case "minio":
		backend, err = NewMinioClient(cfg.Minio)
	case "gcs":
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case "s3":
		backend, err = NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return NewStore(backend), nil
}

func (s *Store) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Write stores obj, replacing any object under the same key.
func (s *Store) Write(ctx context.Context, obj Object) error {
	key, err := cleanKey(obj.Key)
	if err != nil {
		return err
	}
	obj.Key = key
	if strings.TrimSpace(obj.ContentType) == "" {
		obj.ContentType = defaultContentType
	}
	obj.Metadata = lowerKeys(obj.Metadata)
	if err := s.backend.Write(ctx, obj); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Read(ctx context.Context, key string) (Object, error) {
	key, err := cleanKey(key)
	if err != nil {
		return Object{}, err
	}
	obj, err := s.backend.Read(ctx, key)
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return Object{}, ErrObjectNotFound
		}
		return Object{}, fmt.Errorf("read %s: %w", key, err)
	}
	obj.Key = key
	obj.Metadata = lowerKeys(obj.Metadata)
	return obj, nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.backend.Remove(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (s *Store) Location(key string) string {
	return s.backend.Location(strings.TrimLeft(key, "/"))
}

func cleanKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("object key is required")
	}
	return key, nil
}

func lowerKeys(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for key, value := range in {
		out[strings.ToLower(key)] = value
	}
	return out
}
