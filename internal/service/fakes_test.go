package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"alcyxob/video-catalog/internal/cache"
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

var errStoreDown = errors.New("connection refused")

// fakeIndex is an in-memory VideoSearchIndex with call counters.
type fakeIndex struct {
	mu     sync.Mutex
	docs   map[string]domain.Video
	reads  int
	fail   bool
	failOn string // operation name that fails
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{docs: make(map[string]domain.Video)}
}

func (f *fakeIndex) check(op string) error {
	if f.fail || f.failOn == op {
		return repository.Upstream("fake index "+op, errStoreDown)
	}
	return nil
}

func (f *fakeIndex) Index(_ context.Context, v *domain.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("index"); err != nil {
		return err
	}
	if _, taken := f.docs[v.ID]; taken {
		return repository.ErrAlreadyExists
	}
	f.docs[v.ID] = *v
	return nil
}

func (f *fakeIndex) Get(_ context.Context, id string) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.check("get"); err != nil {
		return nil, err
	}
	v, ok := f.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &v, nil
}

func (f *fakeIndex) list(match func(domain.Video) bool) []domain.Video {
	out := []domain.Video{}
	for _, v := range f.docs {
		if match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeIndex) All(_ context.Context, _ int) ([]domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.check("all"); err != nil {
		return nil, err
	}
	return f.list(func(domain.Video) bool { return true }), nil
}

func (f *fakeIndex) FindByTitle(_ context.Context, title string) ([]domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.check("title"); err != nil {
		return nil, err
	}
	return f.list(func(v domain.Video) bool { return strings.EqualFold(v.Title, strings.TrimSpace(title)) }), nil
}

func (f *fakeIndex) FindByOwner(_ context.Context, owner string) ([]domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.check("owner"); err != nil {
		return nil, err
	}
	return f.list(func(v domain.Video) bool { return v.OwnerID == owner }), nil
}

func (f *fakeIndex) Search(_ context.Context, q string, _ int) ([]domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.check("search"); err != nil {
		return nil, err
	}
	q = strings.ToLower(q)
	return f.list(func(v domain.Video) bool {
		return strings.Contains(strings.ToLower(v.Title), q) || strings.Contains(strings.ToLower(v.Description), q)
	}), nil
}

func (f *fakeIndex) Update(_ context.Context, id string, patch domain.VideoPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("update"); err != nil {
		return err
	}
	v, ok := f.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	f.docs[id] = patch.Apply(v)
	return nil
}

func (f *fakeIndex) AppendComment(_ context.Context, id string, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("comment"); err != nil {
		return err
	}
	v, ok := f.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	v.Comments = append(append([]string(nil), v.Comments...), comment)
	f.docs[id] = v
	return nil
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("delete"); err != nil {
		return err
	}
	if _, ok := f.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeIndex) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// fakeDocs is an in-memory VideoDocumentStore.
type fakeDocs struct {
	mu   sync.Mutex
	docs map[string]domain.Video
	fail bool
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[string]domain.Video)}
}

func (f *fakeDocs) Insert(_ context.Context, v *domain.Video) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return repository.Upstream("fake docs insert", errStoreDown)
	}
	if _, taken := f.docs[v.ID]; taken {
		return repository.ErrAlreadyExists
	}
	f.docs[v.ID] = *v
	return nil
}

func (f *fakeDocs) UpdateByID(_ context.Context, id string, patch domain.VideoPatch) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, repository.Upstream("fake docs update", errStoreDown)
	}
	v, ok := f.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	v = patch.Apply(v)
	f.docs[id] = v
	return &v, nil
}

func (f *fakeDocs) DeleteByID(_ context.Context, id string) (*domain.Video, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, repository.Upstream("fake docs delete", errStoreDown)
	}
	v, ok := f.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	delete(f.docs, id)
	return &v, nil
}

func (f *fakeDocs) AppendComment(_ context.Context, id string, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return repository.Upstream("fake docs comment", errStoreDown)
	}
	v, ok := f.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	v.Comments = append(v.Comments, comment)
	f.docs[id] = v
	return nil
}

func (f *fakeDocs) IncrementViewCount(_ context.Context, id string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return repository.Upstream("fake docs inc", errStoreDown)
	}
	v, ok := f.docs[id]
	if !ok {
		return repository.ErrNotFound
	}
	v.ViewCount += delta
	f.docs[id] = v
	return nil
}

func (f *fakeDocs) get(id string) (domain.Video, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.docs[id]
	return v, ok
}

type catalogFixture struct {
	svc   CatalogService
	index *fakeIndex
	docs  *fakeDocs
	redis *miniredis.Miniredis
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	index := newFakeIndex()
	docs := newFakeDocs()
	svc := NewCatalogService(index, docs, cache.NewRedisStore(rdb), CacheTTLs{})
	return &catalogFixture{svc: svc, index: index, docs: docs, redis: mr}
}

// seed stores v in both stores directly, bypassing the service.
func (f *catalogFixture) seed(v domain.Video) {
	f.index.docs[v.ID] = v
	f.docs.docs[v.ID] = v
}
