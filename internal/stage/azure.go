package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"fraud-lake/internal/config"
	"fraud-lake/internal/domain"
)

var _ domain.Stage = (*Azure)(nil)

// Azure is a stage in an Azure Blob Storage container under a key prefix.
type Azure struct {
	client    *azblob.Client
	container string
	prefix    string
}

// NewAzure creates an Azure stage authenticated with the account shared key.
func NewAzure(cfg config.StageConfig) (*Azure, error) {
	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("create shared key credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &Azure{client: client, container: cfg.AzureContainer, prefix: cfg.Location}, nil
}

// Kind implements domain.Stage.
func (a *Azure) Kind() string { return domain.StageKindAzure }

// URI implements domain.Stage. DuckDB's azure extension reads az:// paths.
func (a *Azure) URI(name string) string {
	return fmt.Sprintf("az://%s/%s", a.container, objectKey(a.prefix, name))
}

// Put implements domain.Stage.
func (a *Azure) Put(ctx context.Context, localPath string, overwrite bool) (*domain.StagedObject, error) {
	src, name, size, err := openSource(localPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	key := objectKey(a.prefix, name)
	if !overwrite {
		blob := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key)
		_, err := blob.GetProperties(ctx, nil)
		if err == nil {
			return nil, domain.ErrConflict("staged object %q already exists", name)
		}
		if !bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("check %s: %w", a.URI(name), err)
		}
	}

	resp, err := a.client.UploadFile(ctx, a.container, key, src, nil)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", a.URI(name), err)
	}
	staged := &domain.StagedObject{Name: name, URI: a.URI(name), Size: size}
	if resp.LastModified != nil {
		staged.LastModified = *resp.LastModified
	}
	return staged, nil
}

// List implements domain.Stage.
func (a *Azure) List(ctx context.Context) ([]domain.StagedObject, error) {
	prefix := keyPrefix(a.prefix)
	pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})

	var out []domain.StagedObject
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list az://%s/%s: %w", a.container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			name := strings.TrimPrefix(*item.Name, prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			obj := domain.StagedObject{Name: name, URI: a.URI(name)}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					obj.Size = *p.ContentLength
				}
				if p.LastModified != nil {
					obj.LastModified = *p.LastModified
				}
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

// Close implements domain.Stage.
func (a *Azure) Close() error { return nil }
