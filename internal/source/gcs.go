package source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"ancine-dash/internal/config"
)

var _ Bucket = (*gcsBucket)(nil)

// gcsBucket reads one Google Cloud Storage bucket.
type gcsBucket struct {
	client *storage.Client
	bucket string
}

func newGCSBucket(ctx context.Context, cfg config.StorageConfig, bucket string) (*gcsBucket, error) {
	var opts []option.ClientOption
	if cfg.GCSKeyFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFile))
	}
	if cfg.GCSEndpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.GCSEndpoint))
		if cfg.GCSKeyFile == "" {
			opts = append(opts, option.WithoutAuthentication())
		}
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &gcsBucket{client: client, bucket: bucket}, nil
}

func (b *gcsBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	it := b.client.Bucket(b.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", b.bucket, prefix, err)
		}
		out = append(out, Object{Key: attrs.Name, Size: attrs.Size})
	}
}

func (b *gcsBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", b.bucket, key, err)
	}
	return r, nil
}

func (b *gcsBucket) Close() error { return b.client.Close() }
