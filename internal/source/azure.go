package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"ancine-dash/internal/config"
)

var _ Bucket = (*azureBucket)(nil)

// azureBucket reads one Azure Blob Storage container.
type azureBucket struct {
	client    *azblob.Client
	container string
}

func newAzureBucket(cfg config.StorageConfig, container string) (*azureBucket, error) {
	serviceURL := strings.TrimRight(cfg.AzureEndpoint, "/")
	if serviceURL == "" {
		if cfg.AzureAccountName == "" {
			return nil, fmt.Errorf("AZURE_ACCOUNT_NAME or AZURE_ENDPOINT is required for az:// sources")
		}
		serviceURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AzureAccountName)
	}

	var (
		client *azblob.Client
		err    error
	)
	if cfg.AzureAccountKey != "" {
		cred, credErr := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
		if credErr != nil {
			return nil, fmt.Errorf("create shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		// Public containers and SAS-bearing endpoints.
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create Azure blob client: %w", err)
	}
	return &azureBucket{client: client, container: container}, nil
}

func (b *azureBucket) List(ctx context.Context, prefix string) ([]Object, error) {
	var out []Object
	pager := b.client.NewListBlobsFlatPager(b.container, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list az://%s/%s: %w", b.container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			obj := Object{Key: *item.Name}
			if item.Properties != nil && item.Properties.ContentLength != nil {
				obj.Size = *item.Properties.ContentLength
			}
			out = append(out, obj)
		}
	}
	return out, nil
}

func (b *azureBucket) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := b.client.DownloadStream(ctx, b.container, key, nil)
	if err != nil {
		return nil, fmt.Errorf("download az://%s/%s: %w", b.container, key, err)
	}
	return resp.Body, nil
}

func (b *azureBucket) Close() error { return nil }
