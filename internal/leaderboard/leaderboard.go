package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "leaderboard"
	defaultTopLimit  = 10
)

// Entry is one ranked video.
type Entry struct {
	VideoID   string `json:"videoId"`
	ViewCount int64  `json:"viewCount"`
}

// Increment is a pending score change for one video.
type Increment struct {
	VideoID string
	By      int64
}

// Retention describes which historical windows SweepExpired removes: daily
// windows between DailyFrom and DailyTo days old, and weekly windows between
// WeeklyFrom and WeeklyTo weeks old (lower bound inclusive, upper exclusive).
type Retention struct {
	DailyFrom  int
	DailyTo    int
	WeeklyFrom int
	WeeklyTo   int
}

// DefaultRetention sweeps daily windows 7-29 days old and weekly windows 8-19 weeks old.
var DefaultRetention = Retention{DailyFrom: 7, DailyTo: 30, WeeklyFrom: 8, WeeklyTo: 20}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	KeyPrefix string
	Retention *Retention
	Clock     func() time.Time
}

// Engine keeps view-count rankings in Redis sorted sets, one per window.
// All state lives in Redis; any number of instances can share it.
type Engine struct {
	rdb       redis.Cmdable
	prefix    string
	retention Retention
	now       func() time.Time
}

// NewEngine creates a leaderboard engine over rdb.
func NewEngine(rdb redis.Cmdable, opts Options) *Engine {
	e := &Engine{
		rdb:       rdb,
		prefix:    opts.KeyPrefix,
		retention: DefaultRetention,
		now:       opts.Clock,
	}
	if e.prefix == "" {
		e.prefix = defaultKeyPrefix
	}
	if opts.Retention != nil {
		e.retention = *opts.Retention
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Key returns the Redis key of a window.
func (e *Engine) Key(w Window) string {
	if w.Period == PeriodAll || w.Key == "" {
		return e.prefix
	}
	return e.prefix + ":" + string(w.Period) + ":" + w.Key
}

// CurrentWindows returns the four windows a view recorded at t lands in.
func (e *Engine) CurrentWindows(t time.Time) []Window {
	return []Window{
		AllTime(),
		{Period: PeriodDaily, Key: DailyKey(t)},
		{Period: PeriodWeekly, Key: WeeklyKey(t)},
		{Period: PeriodMonthly, Key: MonthlyKey(t)},
	}
}

// RecordView adds increment to the video's score in all four current windows,
// sent as one pipeline.
func (e *Engine) RecordView(ctx context.Context, videoID string, increment int64) error {
	return e.RecordViews(ctx, []Increment{{VideoID: videoID, By: increment}})
}

// RecordViews applies a batch of increments to every current window in a single pipeline.
func (e *Engine) RecordViews(ctx context.Context, increments []Increment) error {
	for _, inc := range increments {
		if inc.VideoID == "" {
			return errors.New("video ID is required")
		}
		if inc.By <= 0 {
			return fmt.Errorf("increment for %s must be positive, got %d", inc.VideoID, inc.By)
		}
	}
	if len(increments) == 0 {
		return nil
	}

	windows := e.CurrentWindows(e.now())
	_, err := e.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, inc := range increments {
			for _, w := range windows {
				pipe.ZIncrBy(ctx, e.Key(w), float64(inc.By), inc.VideoID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record views: %w", err)
	}
	return nil
}

// Top returns up to limit entries in descending score order. Equal scores come
// back in descending member order, as Redis ZREVRANGE orders them.
func (e *Engine) Top(ctx context.Context, w Window, limit int64) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	results, err := e.rdb.ZRevRangeWithScores(ctx, e.Key(w), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("top videos: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		entries = append(entries, Entry{VideoID: memberString(z.Member), ViewCount: int64(z.Score)})
	}
	return entries, nil
}

// RankOf returns the 1-based descending rank of the video, and false when it
// has no score in the window.
func (e *Engine) RankOf(ctx context.Context, w Window, videoID string) (int64, bool, error) {
	rank, err := e.rdb.ZRevRank(ctx, e.Key(w), videoID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("rank of %s: %w", videoID, err)
	}
	return rank + 1, true, nil
}

// ScoreOf returns the video's score in the window, 0 when absent.
func (e *Engine) ScoreOf(ctx context.Context, w Window, videoID string) (int64, error) {
	score, err := e.rdb.ZScore(ctx, e.Key(w), videoID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("score of %s: %w", videoID, err)
	}
	return int64(score), nil
}

// Size returns how many videos have a score in the window.
func (e *Engine) Size(ctx context.Context, w Window) (int64, error) {
	n, err := e.rdb.ZCard(ctx, e.Key(w)).Result()
	if err != nil {
		return 0, fmt.Errorf("leaderboard size: %w", err)
	}
	return n, nil
}

// ExpiredKeys lists the window keys that fall in the retention bands relative
// to reference. Each offset maps to its own historical date.
func (e *Engine) ExpiredKeys(reference time.Time) []string {
	var keys []string
	seen := make(map[string]bool)
	add := func(w Window) {
		k := e.Key(w)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	for days := e.retention.DailyFrom; days < e.retention.DailyTo; days++ {
		add(Window{Period: PeriodDaily, Key: DailyKey(reference.AddDate(0, 0, -days))})
	}
	for weeks := e.retention.WeeklyFrom; weeks < e.retention.WeeklyTo; weeks++ {
		add(Window{Period: PeriodWeekly, Key: WeeklyKey(reference.AddDate(0, 0, -7*weeks))})
	}
	return keys
}

// SweepExpired deletes the expired windows relative to now and returns how
// many existed.
func (e *Engine) SweepExpired(ctx context.Context) (int64, error) {
	keys := e.ExpiredKeys(e.now())
	if len(keys) == 0 {
		return 0, nil
	}

	cmds, err := e.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Del(ctx, k)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep leaderboards: %w", err)
	}

	var removed int64
	for _, cmd := range cmds {
		if del, ok := cmd.(*redis.IntCmd); ok {
			removed += del.Val()
		}
	}
	return removed, nil
}

func memberString(member interface{}) string {
	switch m := member.(type) {
	case string:
		return m
	case []byte:
		return string(m)
	case int64:
		return strconv.FormatInt(m, 10)
	}
	return fmt.Sprint(member)
}
