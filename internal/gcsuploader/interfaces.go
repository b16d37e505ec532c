package gcsuploader

import (
	"context"
	"io"
)

// StorageService provides cloud object storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// Upload writes r to bucket/object.
	Upload(ctx context.Context, bucketName, objectName, contentType string, r io.Reader) error

	// UploadFile uploads a local file to a storage bucket under the given object name.
	UploadFile(ctx context.Context, bucketName, objectName, filePath string) error

	// FetchFromGCS downloads the object named by a gs:// URI.
	FetchFromGCS(ctx context.Context, gcsURI string) ([]byte, error)
}
