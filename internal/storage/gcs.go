package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/mymiscarriage/apiserver/config"
	"google.golang.org/api/option"
)

// GCSClient stores objects in a Google Cloud Storage bucket. ProjectID is
// only needed when the bucket has to be created.
type GCSClient struct {
	bucket    *storage.BucketHandle
	name      string
	projectID string
}

func NewGCSClient(ctx context.Context, cfg config.GCSConfig) (*GCSClient, error) {
	name := strings.TrimSpace(cfg.Bucket)
	if name == "" {
		return nil, errors.New("gcs bucket is required")
	}

	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	return &GCSClient{
		bucket:    client.Bucket(name),
		name:      name,
		projectID: strings.TrimSpace(cfg.ProjectID),
	}, nil
}

func (g *GCSClient) EnsureBucket(ctx context.Context) error {
	_, err := g.bucket.Attrs(ctx)
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return err
	}
	if g.projectID == "" {
		return errors.New("gcs project id is required to create bucket")
	}
	return g.bucket.Create(ctx, g.projectID, nil)
}

func (g *GCSClient) Write(ctx context.Context, obj Object) error {
	w := g.bucket.Object(obj.Key).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.CacheControl = "no-store"
	w.Metadata = obj.Metadata
	if _, err := w.Write(obj.Data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Read fetches attributes first, since the object reader does not carry
// custom metadata.
func (g *GCSClient) Read(ctx context.Context, key string) (Object, error) {
	handle := g.bucket.Object(key)
	attrs, err := handle.Attrs(ctx)
	if err != nil {
		return Object{}, gcsError(err)
	}

	r, err := handle.Generation(attrs.Generation).NewReader(ctx)
	if err != nil {
		return Object{}, gcsError(err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return Object{}, err
	}
	return Object{
		Key:         key,
		Data:        data,
		ContentType: attrs.ContentType,
		Metadata:    attrs.Metadata,
	}, nil
}

func (g *GCSClient) Remove(ctx context.Context, key string) error {
	return gcsError(g.bucket.Object(key).Delete(ctx))
}

func (g *GCSClient) Location(key string) string {
	return "gs://" + g.name + "/" + key
}

func gcsError(err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}
