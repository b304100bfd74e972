package mongo

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"alcyxob/video-catalog/internal/domain"
	"alcyxob/video-catalog/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const videoCollectionName = "videos"

// mongoVideoRepository implements repository.VideoDocumentStore
type mongoVideoRepository struct {
	collection *mongo.Collection
}

// NewMongoVideoRepository creates a new Video document store backed by MongoDB.
// An empty collection name falls back to "videos".
func NewMongoVideoRepository(db *mongo.Database, collection string) repository.VideoDocumentStore {
	if collection == "" {
		collection = videoCollectionName
	}
	return &mongoVideoRepository{
		collection: db.Collection(collection),
	}
}

// Insert stores a new video document. The caller assigns the ID; a duplicate
// ID is reported as ErrAlreadyExists.
func (r *mongoVideoRepository) Insert(ctx context.Context, video *domain.Video) error {
	if video.ID == "" {
		return errors.New("video ID is required for insert")
	}
	if video.CreatedAt.IsZero() {
		now := time.Now().UTC()
		video.CreatedAt = now
		video.UpdatedAt = now
	}
	if video.Tags == nil {
		video.Tags = []string{}
	}
	if video.Comments == nil {
		video.Comments = []string{}
	}

	if _, err := r.collection.InsertOne(ctx, video); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("video %s: %w", video.ID, repository.ErrAlreadyExists)
		}
		return repository.Upstream("mongo insert video", err)
	}
	return nil
}

// UpdateByID sets the patched fields and returns the post-update document.
func (r *mongoVideoRepository) UpdateByID(ctx context.Context, id string, patch domain.VideoPatch) (*domain.Video, error) {
	set := bson.M{}
	for field, value := range patch.Fields() {
		set[field] = value
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated domain.Video
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Upstream("mongo update video", err)
	}
	return &updated, nil
}

// DeleteByID removes a video and returns the deleted document.
func (r *mongoVideoRepository) DeleteByID(ctx context.Context, id string) (*domain.Video, error) {
	var deleted domain.Video
	err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&deleted)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, repository.Upstream("mongo delete video", err)
	}
	return &deleted, nil
}

// AppendComment pushes a comment onto the end of the comments array.
func (r *mongoVideoRepository) AppendComment(ctx context.Context, id string, comment string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$push": bson.M{"comments": comment}})
	if err != nil {
		return repository.Upstream("mongo append comment", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// IncrementViewCount bumps the counter server-side with $inc, so concurrent
// callers never lose increments.
func (r *mongoVideoRepository) IncrementViewCount(ctx context.Context, id string, delta int64) error {
	if delta <= 0 {
		return errors.New("view count increment must be positive")
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"viewCount": delta}})
	if err != nil {
		return repository.Upstream("mongo increment view count", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureVideoIndexes creates necessary indexes for the videos collection.
func EnsureVideoIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner", Value: 1}},
			Options: options.Index(),
		},
		{
			// Case-insensitive title lookups
			Keys:    bson.D{{Key: "title", Value: 1}},
			Options: options.Index().SetCollation(&options.Collation{Locale: "en", Strength: 2}),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
