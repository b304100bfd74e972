package events

import (
	"context"
	"errors"
	"log"
	"time"

	"alcyxob/video-catalog/internal/leaderboard"
)

// TypeVideoViewed is the event type published once per started stream.
const TypeVideoViewed = "video.viewed"

// Event is the wire form of a view notification.
type Event struct {
	Type       string    `json:"type"`
	VideoID    string    `json:"videoId"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ViewSink accepts "video viewed" notifications. Implementations must not
// block the caller on downstream I/O.
type ViewSink interface {
	NotifyViewed(ctx context.Context, videoID string)
}

// Recorder applies a batch of view increments somewhere: the counters
// directly, or a queue that a consumer drains later.
type Recorder interface {
	Record(ctx context.Context, views []leaderboard.Increment) error
}

// ViewCounter is the persistent per-video counter.
type ViewCounter interface {
	IncrementViewCount(ctx context.Context, videoID string, delta int64) error
}

// ViewRanker is the ranking side of a view.
type ViewRanker interface {
	RecordViews(ctx context.Context, views []leaderboard.Increment) error
}

// ViewRecorder updates the stored view count and the leaderboards for every
// increment. Failures are logged and returned joined; one failing video does
// not stop the others.
type ViewRecorder struct {
	counter ViewCounter
	ranker  ViewRanker
}

// NewViewRecorder creates a Recorder that updates counter and ranker in place.
func NewViewRecorder(counter ViewCounter, ranker ViewRanker) *ViewRecorder {
	return &ViewRecorder{counter: counter, ranker: ranker}
}

func (r *ViewRecorder) Record(ctx context.Context, views []leaderboard.Increment) error {
	if len(views) == 0 {
		return nil
	}

	var errs []error
	for _, v := range views {
		if err := r.counter.IncrementViewCount(ctx, v.VideoID, v.By); err != nil {
			log.Printf("WARN: Failed to increment view count for video %s: %v", v.VideoID, err)
			errs = append(errs, err)
		}
	}
	if err := r.ranker.RecordViews(ctx, views); err != nil {
		log.Printf("WARN: Failed to record %d view(s) on leaderboards: %v", len(views), err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Coalesce merges repeated video IDs into one increment each, keeping the
// order of first appearance.
func Coalesce(views []leaderboard.Increment) []leaderboard.Increment {
	index := make(map[string]int, len(views))
	out := make([]leaderboard.Increment, 0, len(views))
	for _, v := range views {
		if v.VideoID == "" || v.By <= 0 {
			continue
		}
		if i, ok := index[v.VideoID]; ok {
			out[i].By += v.By
			continue
		}
		index[v.VideoID] = len(out)
		out = append(out, v)
	}
	return out
}
