package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// BlobArchiver copies released uploads to long-term storage
type BlobArchiver interface {
	// Archive stores data under blobName and returns its location
	Archive(ctx context.Context, blobName string, data []byte) (string, error)
}

type azureArchiver struct {
	client    *azblob.Client
	container string
}

// NewAzureArchiver creates an archiver writing to one Azure blob container
func NewAzureArchiver(accountName, accountKey, container string) (BlobArchiver, error) {
	if accountName == "" || accountKey == "" || container == "" {
		return nil, fmt.Errorf("azure archiver needs account, key and container")
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net/", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("creating azure client: %w", err)
	}

	return &azureArchiver{client: client, container: container}, nil
}

func (a *azureArchiver) Archive(ctx context.Context, blobName string, data []byte) (string, error) {
	if _, err := a.client.UploadBuffer(ctx, a.container, blobName, data, nil); err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return strings.TrimSuffix(a.client.URL(), "/") + "/" + a.container + "/" + blobName, nil
}
