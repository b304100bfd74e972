package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"alcyxob/video-catalog/internal/leaderboard"

	"github.com/gin-gonic/gin"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// Rankings is the read side of the leaderboard engine.
type Rankings interface {
	Top(ctx context.Context, w leaderboard.Window, limit int64) ([]leaderboard.Entry, error)
	RankOf(ctx context.Context, w leaderboard.Window, videoID string) (int64, bool, error)
	ScoreOf(ctx context.Context, w leaderboard.Window, videoID string) (int64, error)
	Size(ctx context.Context, w leaderboard.Window) (int64, error)
}

// LeaderboardHandler serves view-count rankings.
type LeaderboardHandler struct {
	rankings Rankings
	now      func() time.Time
}

// NewLeaderboardHandler creates a new LeaderboardHandler.
func NewLeaderboardHandler(rankings Rankings) *LeaderboardHandler {
	return &LeaderboardHandler{rankings: rankings, now: time.Now}
}

// LeaderboardResponse is one window's top list.
type LeaderboardResponse struct {
	Period  leaderboard.Period  `json:"period"`
	Key     string              `json:"key,omitempty"`
	Size    int64               `json:"size"`
	Entries []leaderboard.Entry `json:"entries"`
}

// RankResponse is a single video's standing in a window. Rank is null when
// the video has no views there.
type RankResponse struct {
	VideoID string             `json:"videoId"`
	Period  leaderboard.Period `json:"period"`
	Key     string             `json:"key,omitempty"`
	Rank    *int64             `json:"rank"`
	Score   int64              `json:"score"`
}

// GetTop handles GET /videos/leaderboard and /videos/leaderboard/:period.
// Query: limit (default 10, max 100), date (a day, ISO week or month).
func (h *LeaderboardHandler) GetTop(c *gin.Context) {
	window, err := leaderboard.ParseWindow(c.Param("period"), c.Query("date"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	entries, err := h.rankings.Top(ctx, window, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	size, err := h.rankings.Size(ctx, window)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, LeaderboardResponse{Period: window.Period, Key: window.Key, Size: size, Entries: entries})
}

// GetRank handles GET /videos/:id/rank?period=&date=
func (h *LeaderboardHandler) GetRank(c *gin.Context) {
	window, err := leaderboard.ParseWindow(c.Query("period"), c.Query("date"), h.now())
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	videoID := c.Param("id")
	resp := RankResponse{VideoID: videoID, Period: window.Period, Key: window.Key}

	rank, found, err := h.rankings.RankOf(ctx, window, videoID)
	if err != nil {
		respondError(c, err)
		return
	}
	if found {
		resp.Rank = &rank
		if resp.Score, err = h.rankings.ScoreOf(ctx, window, videoID); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseLimit(c *gin.Context) (int64, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLeaderboardLimit, true
	}
	limit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || limit <= 0 {
		abortWithError(c, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}
	return limit, true
}
