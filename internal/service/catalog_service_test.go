package service

import (
	"context"
	"testing"
	"time"

	"alcyxob/video-catalog/internal/cache"
	"alcyxob/video-catalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleVideo(id, title, owner string) domain.Video {
	return domain.Video{
		ID:          id,
		Title:       title,
		Description: "about " + title,
		StoragePath: id + ".mp4",
		OwnerID:     owner,
		Tags:        []string{"t"},
		Comments:    []string{},
	}
}

func strPtr(s string) *string { return &s }

func TestFindByIDIsServedFromCache(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	first, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	second, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.index.readCount(), "second read is a cache hit")
	assert.True(t, f.redis.Exists(cache.VideoKey("v1")))
}

func TestFindByIDNotFoundIsNotCached(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	_, err := f.svc.FindByID(ctx, "ghost")
	assert.ErrorIs(t, err, ErrVideoNotFound)
	assert.False(t, f.redis.Exists(cache.VideoKey("ghost")))

	_, err = f.svc.FindByID(ctx, " ")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestEntityEntriesExpire(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	_, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	f.redis.FastForward(61 * time.Second)

	_, err = f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.index.readCount())
}

func TestUpdateIsVisibleToNextGet(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	before, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, "Intro", before.Title)

	updated, err := f.svc.UpdateByID(ctx, "v1", domain.VideoPatch{Title: strPtr("Intro, revised")})
	require.NoError(t, err)
	assert.Equal(t, "Intro, revised", updated.Title)

	after, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Intro, revised", after.Title)

	stored, _ := f.docs.get("v1")
	assert.Equal(t, "Intro, revised", stored.Title)
}

func TestUpdateInvalidatesAggregates(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	_, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	_, err = f.svc.FindByOwner(ctx, "o1")
	require.NoError(t, err)
	_, err = f.svc.FindByTitle(ctx, "intro")
	require.NoError(t, err)
	_, err = f.svc.Search(ctx, "intro")
	require.NoError(t, err)

	_, err = f.svc.UpdateByID(ctx, "v1", domain.VideoPatch{OwnerID: strPtr("o2")})
	require.NoError(t, err)

	for _, key := range []string{
		cache.VideoListKey,
		cache.OwnerKey("o1"),
		cache.OwnerKey("o2"),
		cache.TitleKey("intro"),
		cache.QueryKey("intro"),
		cache.LookupRegistryKey,
	} {
		assert.False(t, f.redis.Exists(key), key)
	}

	old, err := f.svc.FindByOwner(ctx, "o1")
	require.NoError(t, err)
	assert.Empty(t, old)
	moved, err := f.svc.FindByOwner(ctx, "o2")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, "v1", moved[0].ID)
}

func TestUpdateRejections(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	_, err := f.svc.UpdateByID(ctx, "v1", domain.VideoPatch{})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.svc.UpdateByID(ctx, "v1", domain.VideoPatch{Title: strPtr("  ")})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = f.svc.UpdateByID(ctx, "ghost", domain.VideoPatch{Title: strPtr("x")})
	assert.ErrorIs(t, err, ErrVideoNotFound)
}

func TestUpdateDocumentStoreFailureIsSurfaced(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	_, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)

	f.docs.fail = true
	_, err = f.svc.UpdateByID(ctx, "v1", domain.VideoPatch{Title: strPtr("Half applied")})
	assert.ErrorIs(t, err, ErrUpstreamFailure)

	// No compensation: the index keeps the new title, and the cache does not
	// hide it.
	got, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Half applied", got.Title)
}

func TestUpdateSearchIndexFailureStopsTheWrite(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	f.index.failOn = "update"

	_, err := f.svc.UpdateByID(context.Background(), "v1", domain.VideoPatch{Title: strPtr("Never")})
	assert.ErrorIs(t, err, ErrUpstreamFailure)
	stored, _ := f.docs.get("v1")
	assert.Equal(t, "Intro", stored.Title)
}

func TestCreate(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	all, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	created, err := f.svc.Create(ctx, domain.Video{Title: "New", StoragePath: "new.mp4", AgeConstraint: 16}, Uploader{ID: "u1", Age: 30})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "u1", created.OwnerID)
	assert.Equal(t, int64(0), created.ViewCount)
	assert.False(t, created.CreatedAt.IsZero())

	_, inDocs := f.docs.get(created.ID)
	assert.True(t, inDocs)

	all, err = f.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "list cache was invalidated")
}

func TestCreateWithTakenIDKeepsExistingVideo(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()
	original := sampleVideo("v1", "Original", "owner-a")
	original.ViewCount = 42
	original.Comments = []string{"first"}
	f.seed(original)

	_, err := f.svc.Create(ctx, domain.Video{ID: "v1", Title: "Replacement", StoragePath: "other.mp4"}, Uploader{ID: "someone-else", Age: 30})
	assert.ErrorIs(t, err, ErrVideoExists)
	assert.NotErrorIs(t, err, ErrUpstreamFailure)

	got, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Original", got.Title)
	assert.Equal(t, "owner-a", got.OwnerID)
	assert.Equal(t, int64(42), got.ViewCount)
	assert.Equal(t, []string{"first"}, got.Comments)

	stored, _ := f.docs.get("v1")
	assert.Equal(t, "Original", stored.Title)
}

func TestUpdateStampsBothStoresAlike(t *testing.T) {
	f := newCatalogFixture(t)
	stamp := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	f.svc.(*catalogService).now = func() time.Time { return stamp }
	f.seed(sampleVideo("v1", "Intro", "o1"))

	updated, err := f.svc.UpdateByID(context.Background(), "v1", domain.VideoPatch{Title: strPtr("Intro 2")})
	require.NoError(t, err)
	assert.Equal(t, stamp, updated.UpdatedAt)

	indexed := f.index.docs["v1"]
	stored, _ := f.docs.get("v1")
	assert.Equal(t, stamp, indexed.UpdatedAt)
	assert.Equal(t, stamp, stored.UpdatedAt)
}

func TestCreateRejections(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		video    domain.Video
		uploader Uploader
		wantErr  error
	}{
		{"missing title", domain.Video{StoragePath: "a.mp4"}, Uploader{ID: "u1", Age: 40}, ErrValidationFailed},
		{"missing file", domain.Video{Title: "a"}, Uploader{ID: "u1", Age: 40}, ErrValidationFailed},
		{"missing owner", domain.Video{Title: "a", StoragePath: "a.mp4"}, Uploader{Age: 40}, ErrValidationFailed},
		{"negative age constraint", domain.Video{Title: "a", StoragePath: "a.mp4", AgeConstraint: -1}, Uploader{ID: "u1", Age: 40}, ErrValidationFailed},
		{"too young", domain.Video{Title: "a", StoragePath: "a.mp4", AgeConstraint: 18}, Uploader{ID: "u1", Age: 17}, ErrAgeRestricted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.video, tt.uploader)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
	assert.Empty(t, f.index.docs)
	assert.Empty(t, f.docs.docs)
}

func TestCreateIndexFailureLeavesDocumentStoreUntouched(t *testing.T) {
	f := newCatalogFixture(t)
	f.index.failOn = "index"

	_, err := f.svc.Create(context.Background(), sampleVideo("v1", "a", "o1"), Uploader{ID: "o1", Age: 30})
	assert.ErrorIs(t, err, ErrUpstreamFailure)
	assert.Empty(t, f.docs.docs)
}

func TestFindByTitleAndDeleteByTitle(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Go Tour", "o1"))
	ctx := context.Background()

	found, err := f.svc.FindByTitle(ctx, "go tour")
	require.NoError(t, err)
	assert.Equal(t, "v1", found.ID)
	assert.True(t, f.redis.Exists(cache.TitleKey("GO TOUR")))

	deleted, err := f.svc.DeleteByTitle(ctx, "GO TOUR")
	require.NoError(t, err)
	assert.Equal(t, "v1", deleted.ID)

	_, err = f.svc.FindByTitle(ctx, "go tour")
	assert.ErrorIs(t, err, ErrVideoNotFound, "title cache was invalidated")
	_, err = f.svc.FindByID(ctx, "v1")
	assert.ErrorIs(t, err, ErrVideoNotFound)

	_, err = f.svc.DeleteByTitle(ctx, "go tour")
	assert.ErrorIs(t, err, ErrVideoNotFound)
	_, err = f.svc.DeleteByTitle(ctx, "")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestDeleteTolerantOfDocumentStoreDrift(t *testing.T) {
	f := newCatalogFixture(t)
	v := sampleVideo("v1", "Only Indexed", "o1")
	f.index.docs[v.ID] = v

	deleted, err := f.svc.DeleteByTitle(context.Background(), "only indexed")
	require.NoError(t, err)
	assert.Equal(t, "v1", deleted.ID)
	assert.Empty(t, f.index.docs)
}

func TestAddComment(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	_, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)

	require.NoError(t, f.svc.AddComment(ctx, "v1", " nice one "))
	got, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"nice one"}, got.Comments)

	stored, _ := f.docs.get("v1")
	assert.Equal(t, []string{"nice one"}, stored.Comments)

	assert.ErrorIs(t, f.svc.AddComment(ctx, "v1", "   "), ErrValidationFailed)
	assert.ErrorIs(t, f.svc.AddComment(ctx, "ghost", "hi"), ErrVideoNotFound)
}

func TestIncrementViewCount(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	ctx := context.Background()

	require.NoError(t, f.svc.IncrementViewCount(ctx, "v1", 1))
	require.NoError(t, f.svc.IncrementViewCount(ctx, "v1", 2))
	stored, _ := f.docs.get("v1")
	assert.Equal(t, int64(3), stored.ViewCount)

	assert.ErrorIs(t, f.svc.IncrementViewCount(ctx, "v1", 0), ErrValidationFailed)
	assert.ErrorIs(t, f.svc.IncrementViewCount(ctx, "ghost", 1), ErrVideoNotFound)

	f.docs.fail = true
	assert.ErrorIs(t, f.svc.IncrementViewCount(ctx, "v1", 1), ErrUpstreamFailure)
}

func TestSearchCachesUntilNextWrite(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Cats", "o1"))
	ctx := context.Background()

	hits, err := f.svc.Search(ctx, "cats")
	require.NoError(t, err)
	assert.Len(t, hits, 1)

	_, err = f.svc.Create(ctx, sampleVideo("v2", "More cats", "o1"), Uploader{ID: "o1", Age: 30})
	require.NoError(t, err)

	hits, err = f.svc.Search(ctx, "  CATS ")
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	_, err = f.svc.Search(ctx, "")
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestReadsSurviveCacheOutage(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	f.redis.Close()
	ctx := context.Background()

	got, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Intro", got.Title)

	// Writes still succeed; only invalidation is lost.
	_, err = f.svc.UpdateByID(ctx, "v1", domain.VideoPatch{Title: strPtr("Offline edit")})
	require.NoError(t, err)
}

func TestCorruptCacheEntryIsAnError(t *testing.T) {
	f := newCatalogFixture(t)
	f.seed(sampleVideo("v1", "Intro", "o1"))
	require.NoError(t, f.redis.Set(cache.VideoKey("v1"), "{not json"))
	ctx := context.Background()

	_, err := f.svc.FindByID(ctx, "v1")
	assert.ErrorIs(t, err, cache.ErrCorruptEntry)
	assert.ErrorIs(t, err, ErrUpstreamFailure)

	// The bad entry is discarded, so the next read recovers.
	got, err := f.svc.FindByID(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Intro", got.Title)
}

func TestSearchIndexOutageOnRead(t *testing.T) {
	f := newCatalogFixture(t)
	f.index.fail = true

	_, err := f.svc.FindAll(context.Background())
	assert.ErrorIs(t, err, ErrUpstreamFailure)
}
