package objectstore

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
)

// AzureBlobStore signs shared-key SAS URLs for one container.
//
// Blob SAS tokens cannot pin the request content type, so PUT URLs are only
// bound to key and expiry. Clients must send x-ms-blob-type: BlockBlob.
type AzureBlobStore struct {
	client    *azblob.Client
	container string
	now       func() time.Time
}

// NewAzureBlobStore wraps a client built with a shared key credential; SAS
// generation fails on clients without one.
func NewAzureBlobStore(client *azblob.Client, container string) *AzureBlobStore {
	return &AzureBlobStore{client: client, container: container, now: time.Now}
}

func (s *AzureBlobStore) Name() string { return "azblob" }

func (s *AzureBlobStore) SignPut(_ context.Context, key, _ string, ttl time.Duration) (string, error) {
	return s.sign(key, sas.BlobPermissions{Create: true, Write: true}, ttl)
}

func (s *AzureBlobStore) SignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	return s.sign(key, sas.BlobPermissions{Read: true}, ttl)
}

func (s *AzureBlobStore) sign(key string, perms sas.BlobPermissions, ttl time.Duration) (string, error) {
	blobClient := s.client.ServiceClient().NewContainerClient(s.container).NewBlobClient(key)
	return blobClient.GetSASURL(perms, s.now().UTC().Add(ttl), nil)
}

func (s *AzureBlobStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteBlob(ctx, s.container, key, nil)
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil
	}
	return err
}
