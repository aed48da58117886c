package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"fraud-lake/internal/config"
	"fraud-lake/internal/domain"
)

var _ domain.Stage = (*GCS)(nil)

// GCS is a stage in a Google Cloud Storage bucket under a key prefix.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCS creates a GCS stage authenticated with a service account key file.
func NewGCS(ctx context.Context, cfg config.StageConfig) (*GCS, error) {
	client, err := storage.NewClient(ctx, option.WithAuthCredentialsFile(option.ServiceAccount, cfg.GCSKeyFilePath))
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCS{client: client, bucket: cfg.GCSBucket, prefix: cfg.Location}, nil
}

// Kind implements domain.Stage.
func (g *GCS) Kind() string { return domain.StageKindGCS }

// URI implements domain.Stage.
func (g *GCS) URI(name string) string {
	return fmt.Sprintf("gs://%s/%s", g.bucket, objectKey(g.prefix, name))
}

// Put implements domain.Stage. Without overwrite the write is conditioned on
// the object not existing, so a concurrent writer cannot be clobbered either.
func (g *GCS) Put(ctx context.Context, localPath string, overwrite bool) (*domain.StagedObject, error) {
	src, name, size, err := openSource(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	obj := g.client.Bucket(g.bucket).Object(objectKey(g.prefix, name))
	if !overwrite {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "text/csv"
	if _, err := io.Copy(w, src); err != nil {
		w.Close()
		return nil, fmt.Errorf("upload %s: %w", g.URI(name), err)
	}
	if err := w.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
			return nil, domain.ErrConflict("staged object %q already exists", name)
		}
		return nil, fmt.Errorf("finalize %s: %w", g.URI(name), err)
	}

	staged := &domain.StagedObject{Name: name, URI: g.URI(name), Size: size}
	if attrs := w.Attrs(); attrs != nil {
		staged.Size = attrs.Size
		staged.LastModified = attrs.Updated
	}
	return staged, nil
}

// List implements domain.Stage.
func (g *GCS) List(ctx context.Context) ([]domain.StagedObject, error) {
	prefix := keyPrefix(g.prefix)
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var out []domain.StagedObject
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", g.bucket, prefix, err)
		}
		name := strings.TrimPrefix(attrs.Name, prefix)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		out = append(out, domain.StagedObject{
			Name:         name,
			URI:          g.URI(name),
			Size:         attrs.Size,
			LastModified: attrs.Updated,
		})
	}
	return out, nil
}

// Close releases the GCS client.
func (g *GCS) Close() error { return g.client.Close() }
