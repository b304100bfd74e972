package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, now time.Time) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewEngine(rdb, Options{Clock: func() time.Time { return now }}), mr
}

func TestRecordViewHitsAllFourWindows(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	engine, mr := newTestEngine(t, now)
	ctx := context.Background()

	require.NoError(t, engine.RecordView(ctx, "v2", 4))
	require.NoError(t, engine.RecordView(ctx, "v1", 1))

	for _, key := range []string{
		"leaderboard",
		"leaderboard:daily:2026-10-17",
		"leaderboard:weekly:2026-W42",
		"leaderboard:monthly:2026-10",
	} {
		score, err := mr.ZScore(key, "v1")
		require.NoError(t, err, key)
		assert.Equal(t, 1.0, score, key)

		other, err := mr.ZScore(key, "v2")
		require.NoError(t, err, key)
		assert.Equal(t, 4.0, other, "other ids untouched in %s", key)
	}

	for _, w := range engine.CurrentWindows(now) {
		score, err := engine.ScoreOf(ctx, w, "v1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), score)
	}
}

func TestRecordViewsRejectsBadIncrements(t *testing.T) {
	engine, mr := newTestEngine(t, time.Now())
	ctx := context.Background()

	assert.Error(t, engine.RecordView(ctx, "v1", 0))
	assert.Error(t, engine.RecordView(ctx, "v1", -2))
	assert.Error(t, engine.RecordView(ctx, "", 1))
	assert.Error(t, engine.RecordViews(ctx, []Increment{{VideoID: "ok", By: 1}, {VideoID: "bad", By: 0}}))
	assert.False(t, mr.Exists("leaderboard"), "a rejected batch writes nothing")
	assert.NoError(t, engine.RecordViews(ctx, nil))
}

func TestTopRankAndScore(t *testing.T) {
	engine, _ := newTestEngine(t, time.Now())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, engine.RecordView(ctx, "v1", 1))
	}
	require.NoError(t, engine.RecordViews(ctx, []Increment{{VideoID: "v2", By: 5}, {VideoID: "v3", By: 1}}))

	top, err := engine.Top(ctx, AllTime(), 2)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{VideoID: "v2", ViewCount: 5}, {VideoID: "v1", ViewCount: 3}}, top)

	all, err := engine.Top(ctx, AllTime(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	var last int64
	for i, id := range []string{"v2", "v1", "v3"} {
		rank, ok, err := engine.RankOf(ctx, AllTime(), id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, int64(i+1), rank)
		assert.Greater(t, rank, last)
		last = rank
	}

	_, ok, err := engine.RankOf(ctx, AllTime(), "never-viewed")
	require.NoError(t, err)
	assert.False(t, ok)

	score, err := engine.ScoreOf(ctx, AllTime(), "never-viewed")
	require.NoError(t, err)
	assert.Equal(t, int64(0), score)

	size, err := engine.Size(ctx, AllTime())
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
}

func TestTopTiesAreDeterministic(t *testing.T) {
	engine, _ := newTestEngine(t, time.Now())
	ctx := context.Background()

	require.NoError(t, engine.RecordViews(ctx, []Increment{
		{VideoID: "b", By: 2}, {VideoID: "a", By: 2}, {VideoID: "c", By: 2},
	}))

	first, err := engine.Top(ctx, AllTime(), 3)
	require.NoError(t, err)
	second, err := engine.Top(ctx, AllTime(), 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, []Entry{{"c", 2}, {"b", 2}, {"a", 2}}, first)
}

func TestTopOfHistoricalWindow(t *testing.T) {
	engine, _ := newTestEngine(t, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	require.NoError(t, engine.RecordView(ctx, "v1", 2))

	w, err := ParseWindow("daily", "2026-10-16", time.Now())
	require.NoError(t, err)
	top, err := engine.Top(ctx, w, 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	w, err = ParseWindow("weekly", "2026-W42", time.Now())
	require.NoError(t, err)
	top, err = engine.Top(ctx, w, 10)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"v1", 2}}, top)
}

func TestExpiredKeysUseHistoricalDates(t *testing.T) {
	ref := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	engine, _ := newTestEngine(t, ref)

	keys := engine.ExpiredKeys(ref)
	assert.Len(t, keys, 23+12)
	assert.Contains(t, keys, "leaderboard:daily:2026-10-10")
	assert.Contains(t, keys, "leaderboard:daily:2026-09-18")
	assert.NotContains(t, keys, "leaderboard:daily:2026-10-11")
	assert.NotContains(t, keys, "leaderboard:daily:2026-09-17")
	assert.Contains(t, keys, "leaderboard:weekly:2026-W34")
	assert.Contains(t, keys, "leaderboard:weekly:2026-W23")
	assert.NotContains(t, keys, "leaderboard:weekly:2026-W42", "the current week is never swept")
	assert.NotContains(t, keys, "leaderboard:weekly:2026-W35")
	assert.NotContains(t, keys, "leaderboard:weekly:2026-W22")
}

func TestSweepExpired(t *testing.T) {
	ref := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)
	engine, mr := newTestEngine(t, ref)
	ctx := context.Background()

	seed := func(key string) {
		_, err := mr.ZAdd(key, 1, "v1")
		require.NoError(t, err)
	}
	expired := []string{
		"leaderboard:daily:2026-10-10",
		"leaderboard:daily:2026-09-18",
		"leaderboard:weekly:2026-W34",
		"leaderboard:weekly:2026-W23",
	}
	kept := []string{
		"leaderboard",
		"leaderboard:daily:2026-10-17",
		"leaderboard:daily:2026-10-11",
		"leaderboard:daily:2026-09-17",
		"leaderboard:weekly:2026-W42",
		"leaderboard:weekly:2026-W35",
		"leaderboard:weekly:2026-W22",
		"leaderboard:monthly:2026-01",
	}
	for _, k := range append(append([]string{}, expired...), kept...) {
		seed(k)
	}

	removed, err := engine.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(expired)), removed)

	for _, k := range expired {
		assert.False(t, mr.Exists(k), k)
	}
	for _, k := range kept {
		assert.True(t, mr.Exists(k), k)
	}
}

func TestCustomPrefixAndRetention(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine := NewEngine(rdb, Options{KeyPrefix: "video:leaderboard", Retention: &Retention{DailyFrom: 1, DailyTo: 2}})
	ref := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "video:leaderboard", engine.Key(AllTime()))
	assert.Equal(t, []string{"video:leaderboard:daily:2026-10-16"}, engine.ExpiredKeys(ref))
}
