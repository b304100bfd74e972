package repository

import (
	"context"
	"fmt"

	"alcyxob/video-catalog/internal/domain"
)

// Error constants for repository layer
var (
	ErrNotFound      = RepositoryError("not found")
	ErrAlreadyExists = RepositoryError("already exists")
	ErrUpstream      = RepositoryError("upstream store failure")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Upstream wraps a store client failure so callers can match it with
// errors.Is(err, ErrUpstream) while keeping the original cause.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstream, err)
}

// VideoDocumentStore is the write-of-record for videos.
// Reads are served by the search index; the only read-adjacent operation here
// is the atomic view counter.
type VideoDocumentStore interface {
	Insert(ctx context.Context, video *domain.Video) error
	// UpdateByID applies the patch and returns the document as stored afterwards.
	UpdateByID(ctx context.Context, id string, patch domain.VideoPatch) (*domain.Video, error)
	// DeleteByID removes the document and returns it as it was.
	DeleteByID(ctx context.Context, id string) (*domain.Video, error)
	AppendComment(ctx context.Context, id string, comment string) error
	IncrementViewCount(ctx context.Context, id string, delta int64) error
}

// VideoSearchIndex is the query-serving copy of the catalog.
type VideoSearchIndex interface {
	// Index adds a new document. An existing document with the same ID is
	// left untouched and ErrAlreadyExists is returned.
	Index(ctx context.Context, video *domain.Video) error
	Get(ctx context.Context, id string) (*domain.Video, error)
	All(ctx context.Context, limit int) ([]domain.Video, error)
	FindByTitle(ctx context.Context, title string) ([]domain.Video, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Video, error)
	Search(ctx context.Context, query string, limit int) ([]domain.Video, error)
	Update(ctx context.Context, id string, patch domain.VideoPatch) error
	AppendComment(ctx context.Context, id string, comment string) error
	Delete(ctx context.Context, id string) error
}
