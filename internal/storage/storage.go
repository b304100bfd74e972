package storage

import (
	"context"
	"time"

	"alcyxob/video-catalog/internal/stream"
)

// Default expiry duration for presigned URLs
const DefaultPresignedURLExpiry = 15 * time.Minute

// ObjectStorage is an object-store backed media store. Besides ranged reads it
// can hand out temporary direct-download links so large files can bypass the API.
type ObjectStorage interface {
	stream.MediaStore

	// GeneratePresignedDownloadURL creates a temporary URL that allows GET requests
	// for downloading/viewing an object directly from the storage provider.
	GeneratePresignedDownloadURL(ctx context.Context, objectKey string, expires time.Duration) (string, error)
}
