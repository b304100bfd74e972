package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"alcyxob/video-catalog/internal/config"
	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultIndexName  = "videos"
	defaultSearchSize = 10
	// MaxListSize caps match_all listings; Elasticsearch would otherwise return 10 hits.
	MaxListSize = 1000
)

// Writes wait for the refresh so the next search observes them.
const refreshPolicy = "wait_for"

// appendCommentScript tolerates documents indexed before comments existed.
const appendCommentScript = `if (ctx._source.comments == null) { ctx._source.comments = []; } ctx._source.comments.add(params.comment);`

// indexMapping keeps owner and tags as exact keywords and adds a lowercased
// keyword copy of the title for case-insensitive exact lookups.
const indexMapping = `{
  "settings": {
    "analysis": {
      "normalizer": {
        "lowercase_normalizer": { "type": "custom", "filter": ["lowercase"] }
      }
    }
  },
  "mappings": {
    "properties": {
      "id":            { "type": "keyword" },
      "title":         { "type": "text", "fields": { "exact": { "type": "keyword", "normalizer": "lowercase_normalizer" } } },
      "description":   { "type": "text" },
      "filePath":      { "type": "keyword", "index": false },
      "owner":         { "type": "keyword" },
      "tags":          { "type": "keyword" },
      "ageConstraint": { "type": "integer" },
      "comments":      { "type": "text" },
      "viewCount":     { "type": "long" },
      "createdAt":     { "type": "date" },
      "updatedAt":     { "type": "date" }
    }
  }
}`

// NewClient builds an Elasticsearch client from configuration.
func NewClient(cfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	return elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
}

// videoIndex implements repository.VideoSearchIndex
type videoIndex struct {
	es         *elasticsearch.Client
	index      string
	searchSize int
}

// NewVideoIndex creates a search index adapter over the given index name.
func NewVideoIndex(es *elasticsearch.Client, index string, searchSize int) repository.VideoSearchIndex {
	if index == "" {
		index = defaultIndexName
	}
	if searchSize <= 0 {
		searchSize = defaultSearchSize
	}
	return &videoIndex{es: es, index: index, searchSize: searchSize}
}

// EnsureIndex creates the index with its mapping when it does not exist yet.
func EnsureIndex(ctx context.Context, es *elasticsearch.Client, index string) error {
	if index == "" {
		index = defaultIndexName
	}
	res, err := es.Indices.Exists([]string{index}, es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return repository.Upstream("elasticsearch index exists", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = es.Indices.Create(index,
		es.Indices.Create.WithContext(ctx),
		es.Indices.Create.WithBody(strings.NewReader(indexMapping)),
	)
	if err != nil {
		return repository.Upstream("elasticsearch create index", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("elasticsearch create index", res)
	}
	log.Printf("INFO: Created Elasticsearch index %q", index)
	return nil
}

// Index creates the document under its ID. op_type=create makes Elasticsearch
// refuse an ID that is already taken instead of overwriting it.
func (x *videoIndex) Index(ctx context.Context, video *domain.Video) error {
	body, err := json.Marshal(video)
	if err != nil {
		return fmt.Errorf("encode video %s: %w", video.ID, err)
	}

	res, err := x.es.Index(x.index, bytes.NewReader(body),
		x.es.Index.WithContext(ctx),
		x.es.Index.WithDocumentID(video.ID),
		x.es.Index.WithOpType("create"),
		x.es.Index.WithRefresh(refreshPolicy),
	)
	if err != nil {
		return repository.Upstream("elasticsearch index video", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusConflict {
		return fmt.Errorf("video %s: %w", video.ID, repository.ErrAlreadyExists)
	}
	if res.IsError() {
		return responseError("elasticsearch index video", res)
	}
	return nil
}

// Get fetches a document by ID. Realtime: it sees writes before a refresh.
func (x *videoIndex) Get(ctx context.Context, id string) (*domain.Video, error) {
	res, err := x.es.Get(x.index, id, x.es.Get.WithContext(ctx))
	if err != nil {
		return nil, repository.Upstream("elasticsearch get video", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, repository.ErrNotFound
	}
	if res.IsError() {
		return nil, responseError("elasticsearch get video", res)
	}

	var doc struct {
		Found  bool         `json:"found"`
		Source domain.Video `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, repository.Upstream("elasticsearch decode video", err)
	}
	if !doc.Found {
		return nil, repository.ErrNotFound
	}
	return &doc.Source, nil
}

// All lists up to limit documents, newest first.
func (x *videoIndex) All(ctx context.Context, limit int) ([]domain.Video, error) {
	if limit <= 0 || limit > MaxListSize {
		limit = MaxListSize
	}
	return x.search(ctx, "list videos", map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"sort":  []interface{}{map[string]interface{}{"createdAt": map[string]interface{}{"order": "desc", "unmapped_type": "date"}}},
	}, limit)
}

// FindByTitle returns the videos whose title equals title, ignoring case.
func (x *videoIndex) FindByTitle(ctx context.Context, title string) ([]domain.Video, error) {
	return x.search(ctx, "find by title", map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"title.exact": strings.ToLower(strings.TrimSpace(title))},
		},
	}, x.searchSize)
}

// FindByOwner returns every video referencing the owner.
func (x *videoIndex) FindByOwner(ctx context.Context, ownerID string) ([]domain.Video, error) {
	return x.search(ctx, "find by owner", map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"owner": ownerID},
		},
	}, MaxListSize)
}

// Search runs a phrase query over title and description.
func (x *videoIndex) Search(ctx context.Context, query string, limit int) ([]domain.Video, error) {
	if limit <= 0 {
		limit = x.searchSize
	}
	return x.search(ctx, "search videos", map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title", "description"},
				"type":   "phrase",
			},
		},
	}, limit)
}

// Update merges the patched fields into the stored document.
func (x *videoIndex) Update(ctx context.Context, id string, patch domain.VideoPatch) error {
	return x.update(ctx, "update video", id, map[string]interface{}{"doc": patch.Fields()})
}

// AppendComment appends to the comments array with a painless script so
// concurrent appends are applied by Elasticsearch, not read-modify-written here.
func (x *videoIndex) AppendComment(ctx context.Context, id string, comment string) error {
	return x.update(ctx, "append comment", id, map[string]interface{}{
		"script": map[string]interface{}{
			"source": appendCommentScript,
			"lang":   "painless",
			"params": map[string]interface{}{"comment": comment},
		},
	})
}

// Delete removes the document. A missing document is reported as ErrNotFound.
func (x *videoIndex) Delete(ctx context.Context, id string) error {
	res, err := x.es.Delete(x.index, id,
		x.es.Delete.WithContext(ctx),
		x.es.Delete.WithRefresh(refreshPolicy),
	)
	if err != nil {
		return repository.Upstream("elasticsearch delete video", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return repository.ErrNotFound
	}
	if res.IsError() {
		return responseError("elasticsearch delete video", res)
	}
	return nil
}

func (x *videoIndex) update(ctx context.Context, op, id string, body map[string]interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", op, err)
	}

	res, err := x.es.Update(x.index, id, bytes.NewReader(payload),
		x.es.Update.WithContext(ctx),
		x.es.Update.WithRefresh(refreshPolicy),
		x.es.Update.WithRetryOnConflict(3),
	)
	if err != nil {
		return repository.Upstream("elasticsearch "+op, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return repository.ErrNotFound
	}
	if res.IsError() {
		return responseError("elasticsearch "+op, res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source domain.Video `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (x *videoIndex) search(ctx context.Context, op string, query map[string]interface{}, size int) ([]domain.Video, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, fmt.Errorf("encode %s query: %w", op, err)
	}

	res, err := x.es.Search(
		x.es.Search.WithContext(ctx),
		x.es.Search.WithIndex(x.index),
		x.es.Search.WithBody(&buf),
		x.es.Search.WithSize(size),
	)
	if err != nil {
		return nil, repository.Upstream("elasticsearch "+op, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		// Index not created yet: nothing indexed.
		return []domain.Video{}, nil
	}
	if res.IsError() {
		return nil, responseError("elasticsearch "+op, res)
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, repository.Upstream("elasticsearch decode "+op, err)
	}

	videos := make([]domain.Video, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		videos = append(videos, hit.Source)
	}
	return videos, nil
}

func responseError(op string, res *esapi.Response) error {
	detail, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return repository.Upstream(op, fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(detail))))
}
