package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"alcyxob/video-catalog/internal/cache"
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"

	"github.com/google/uuid"
)

const (
	defaultEntityTTL = 60 * time.Second
	// invalidateTimeout bounds best-effort cache cleanup after a write.
	invalidateTimeout = 2 * time.Second
)

// Uploader is the authenticated caller creating a video.
type Uploader struct {
	ID  string
	Age int
}

// CatalogService is the entity lookup and write path for videos. Reads go
// cache first, then the search index; writes go search index, then document
// store, then cache invalidation.
type CatalogService interface {
	FindAll(ctx context.Context) ([]domain.Video, error)
	FindByID(ctx context.Context, id string) (*domain.Video, error)
	FindByTitle(ctx context.Context, title string) (*domain.Video, error)
	FindByOwner(ctx context.Context, ownerID string) ([]domain.Video, error)
	Search(ctx context.Context, query string) ([]domain.Video, error)
	Create(ctx context.Context, video domain.Video, uploader Uploader) (*domain.Video, error)
	UpdateByID(ctx context.Context, id string, patch domain.VideoPatch) (*domain.Video, error)
	DeleteByTitle(ctx context.Context, title string) (*domain.Video, error)
	AddComment(ctx context.Context, id string, comment string) error
	IncrementViewCount(ctx context.Context, id string, delta int64) error
}

// CacheTTLs sets the expiry of cached entries. A zero AggregateTTL keeps list
// and query entries until a write invalidates them.
type CacheTTLs struct {
	Entity    time.Duration
	Aggregate time.Duration
}

// catalogService implements the CatalogService interface.
type catalogService struct {
	index repository.VideoSearchIndex
	docs  repository.VideoDocumentStore
	cache cache.Store
	ttls  CacheTTLs
	now   func() time.Time
}

// NewCatalogService creates a new instance of catalogService.
func NewCatalogService(index repository.VideoSearchIndex, docs repository.VideoDocumentStore, store cache.Store, ttls CacheTTLs) CatalogService {
	if ttls.Entity <= 0 {
		ttls.Entity = defaultEntityTTL
	}
	return &catalogService{
		index: index,
		docs:  docs,
		cache: store,
		ttls:  ttls,
		now:   time.Now,
	}
}

// --- Reads ---

func (s *catalogService) FindAll(ctx context.Context) ([]domain.Video, error) {
	return readThrough(ctx, s, cache.VideoListKey, s.ttls.Aggregate, false, func(ctx context.Context) ([]domain.Video, error) {
		return s.index.All(ctx, 0)
	})
}

func (s *catalogService) FindByID(ctx context.Context, id string) (*domain.Video, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: video ID is required", ErrValidationFailed)
	}
	return readThrough(ctx, s, cache.VideoKey(id), s.ttls.Entity, false, func(ctx context.Context) (*domain.Video, error) {
		return s.index.Get(ctx, id)
	})
}

// FindByTitle returns the first video whose title matches, ignoring case.
func (s *catalogService) FindByTitle(ctx context.Context, title string) (*domain.Video, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidationFailed)
	}
	return readThrough(ctx, s, cache.TitleKey(title), s.ttls.Aggregate, true, func(ctx context.Context) (*domain.Video, error) {
		return s.firstByTitle(ctx, title)
	})
}

func (s *catalogService) FindByOwner(ctx context.Context, ownerID string) ([]domain.Video, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrValidationFailed)
	}
	return readThrough(ctx, s, cache.OwnerKey(ownerID), s.ttls.Aggregate, false, func(ctx context.Context) ([]domain.Video, error) {
		return s.index.FindByOwner(ctx, ownerID)
	})
}

// Search runs a free-text query over titles and descriptions.
func (s *catalogService) Search(ctx context.Context, query string) ([]domain.Video, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: search query is required", ErrValidationFailed)
	}
	return readThrough(ctx, s, cache.QueryKey(query), s.ttls.Aggregate, true, func(ctx context.Context) ([]domain.Video, error) {
		return s.index.Search(ctx, query, 0)
	})
}

// readThrough serves key from the cache, or loads it and fills the cache.
// Cache outages degrade to a direct load; a corrupt entry is an error.
// Tracked keys are registered so writes can find them again.
func readThrough[T any](ctx context.Context, s *catalogService, key string, ttl time.Duration, tracked bool, load func(context.Context) (T, error)) (T, error) {
	var cached, zero T

	hit, err := s.cache.Get(ctx, key, &cached)
	switch {
	case err == nil && hit:
		return cached, nil
	case errors.Is(err, cache.ErrCorruptEntry):
		log.Printf("ERROR: Discarding corrupt cache entry %s: %v", key, err)
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			log.Printf("WARN: Failed to delete corrupt cache entry %s: %v", key, delErr)
		}
		return zero, fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
	case err != nil:
		log.Printf("WARN: Cache read failed for %s, falling back to search index: %v", key, err)
	}

	value, err := load(ctx)
	if err != nil {
		return zero, translate("read "+key, err)
	}

	if tracked {
		err = s.cache.SetTracked(ctx, cache.LookupRegistryKey, key, value, ttl)
	} else {
		err = s.cache.Set(ctx, key, value, ttl)
	}
	if err != nil {
		log.Printf("WARN: Failed to populate cache entry %s: %v", key, err)
	}
	return value, nil
}

func (s *catalogService) firstByTitle(ctx context.Context, title string) (*domain.Video, error) {
	videos, err := s.index.FindByTitle(ctx, title)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, ErrVideoNotFound
	}
	return &videos[0], nil
}

// --- Writes ---

// Create stores a new video. The uploader becomes the owner when none is set,
// and must be at least as old as the video's age constraint.
func (s *catalogService) Create(ctx context.Context, video domain.Video, uploader Uploader) (*domain.Video, error) {
	if video.OwnerID == "" {
		video.OwnerID = uploader.ID
	}
	if err := video.Validate(); err != nil {
		return nil, translate("create video", err)
	}
	if uploader.Age < video.AgeConstraint {
		return nil, ErrAgeRestricted
	}

	if video.ID == "" {
		video.ID = uuid.NewString()
	}
	now := s.now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	video.ViewCount = 0
	video.Comments = []string{}
	if video.Tags == nil {
		video.Tags = []string{}
	}

	// The index refuses a taken ID, so an existing video is never overwritten
	// and nothing below runs.
	if err := s.index.Index(ctx, &video); err != nil {
		return nil, translate("index new video", err)
	}
	// From here on the query path can see the video.
	defer s.invalidate(video.ID, video.OwnerID)

	if err := s.docs.Insert(ctx, &video); err != nil {
		log.Printf("ERROR: Video %s indexed but not stored: %v", video.ID, err)
		return nil, translate("store new video", err)
	}

	log.Printf("INFO: Video %s created by %s", video.ID, uploader.ID)
	return &video, nil
}

// UpdateByID applies the patch and returns the stored post-update video.
func (s *catalogService) UpdateByID(ctx context.Context, id string, patch domain.VideoPatch) (*domain.Video, error) {
	if patch.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidationFailed)
	}
	if err := patch.Validate(); err != nil {
		return nil, translate("update video", err)
	}
	patch.UpdatedAt = s.now().UTC()

	// The previous owner's listing also goes stale when the owner changes.
	before, err := s.index.Get(ctx, id)
	if err != nil {
		return nil, translate("load video "+id, err)
	}

	if err := s.index.Update(ctx, id, patch); err != nil {
		return nil, translate("update indexed video", err)
	}
	owners := []string{before.OwnerID}
	if patch.OwnerID != nil && *patch.OwnerID != before.OwnerID {
		owners = append(owners, *patch.OwnerID)
	}
	defer s.invalidate(id, owners...)

	updated, err := s.docs.UpdateByID(ctx, id, patch)
	if err != nil {
		log.Printf("ERROR: Video %s updated in search index but not in document store: %v", id, err)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: video %s missing from document store", ErrUpstreamFailure, id)
		}
		return nil, translate("update stored video", err)
	}
	return updated, nil
}

// DeleteByTitle removes the first video matching title from both stores.
func (s *catalogService) DeleteByTitle(ctx context.Context, title string) (*domain.Video, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidationFailed)
	}

	target, err := s.firstByTitle(ctx, title)
	if err != nil {
		return nil, translate("find video to delete", err)
	}

	if err := s.index.Delete(ctx, target.ID); err != nil {
		return nil, translate("delete indexed video", err)
	}
	defer s.invalidate(target.ID, target.OwnerID)

	deleted, err := s.docs.DeleteByID(ctx, target.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Already gone from the write-of-record; the index copy is all there was.
			log.Printf("WARN: Video %s deleted from search index but was absent from document store", target.ID)
			return target, nil
		}
		log.Printf("ERROR: Video %s deleted from search index but not from document store: %v", target.ID, err)
		return nil, translate("delete stored video", err)
	}
	log.Printf("INFO: Video %s (%q) deleted", deleted.ID, deleted.Title)
	return deleted, nil
}

// AddComment appends a comment to the video.
func (s *catalogService) AddComment(ctx context.Context, id string, comment string) error {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return fmt.Errorf("%w: comment cannot be empty", ErrValidationFailed)
	}

	current, err := s.index.Get(ctx, id)
	if err != nil {
		return translate("load video "+id, err)
	}

	if err := s.index.AppendComment(ctx, id, comment); err != nil {
		return translate("comment on indexed video", err)
	}
	defer s.invalidate(id, current.OwnerID)

	if err := s.docs.AppendComment(ctx, id, comment); err != nil {
		log.Printf("ERROR: Comment on video %s indexed but not stored: %v", id, err)
		return translate("comment on stored video", err)
	}
	return nil
}

// IncrementViewCount bumps the stored counter atomically. The search index
// copy of the count is not touched, so reads lag until the next reindex.
func (s *catalogService) IncrementViewCount(ctx context.Context, id string, delta int64) error {
	if delta <= 0 {
		return fmt.Errorf("%w: view increment must be positive", ErrValidationFailed)
	}
	return translate("increment view count", s.docs.IncrementViewCount(ctx, id, delta))
}

// invalidate drops every cached entry a write to id could have affected. It
// runs after the request may have been cancelled, so it uses its own deadline.
// Failures are logged and not retried.
func (s *catalogService) invalidate(id string, owners ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
	defer cancel()

	keys := []string{cache.VideoKey(id), cache.VideoListKey}
	for _, owner := range owners {
		if owner != "" {
			keys = append(keys, cache.OwnerKey(owner))
		}
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		log.Printf("WARN: Cache invalidation failed for video %s: %v", id, err)
	}
	if err := s.cache.DeleteTracked(ctx, cache.LookupRegistryKey); err != nil {
		log.Printf("WARN: Lookup cache invalidation failed after write to video %s: %v", id, err)
	}
}
