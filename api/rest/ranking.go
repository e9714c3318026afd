package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/cache"
	"github.com/huddlelabs/huddle/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RankingHandler serves the per-community XP leaderboard. The sorted set in
// the cache is the fast path; the database is the fallback and the source the
// scheduler rebuilds from.
type RankingHandler struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *zap.Logger
}

// NewRankingHandler creates a RankingHandler.
func NewRankingHandler(db *gorm.DB, c cache.Cache, logger *zap.Logger) *RankingHandler {
	return &RankingHandler{db: db, cache: c, logger: logger}
}

const rankingTop = 100

func leaderboardKey(communityID int64) string {
	return fmt.Sprintf("leaderboard:xp:%d", communityID)
}

// RankEntry is one row in the leaderboard.
type RankEntry struct {
	Rank        int    `json:"rank"`
	MemberID    int64  `json:"member_id"`
	DisplayName string `json:"display_name"`
	Streak      int    `json:"streak"`
	XP          int64  `json:"xp"`
}

// Top returns the community's members sorted by XP.
// GET /api/communities/:cid/leaderboard?limit=20
func (h *RankingHandler) Top(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	limit := 20
	if l, err := strconv.Atoi(c.Query("limit")); err == nil && l > 0 && l <= rankingTop {
		limit = l
	}

	// Try cached ranking from the sorted set.
	ctx := c.Request.Context()
	key := leaderboardKey(cid)
	members, err := h.cache.ZRevRange(ctx, key, 0, int64(limit-1))
	if err == nil && len(members) > 0 {
		entries := make([]RankEntry, 0, len(members))
		for i, m := range members {
			memberID, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			score, _ := h.cache.ZScore(ctx, key, m)
			entries = append(entries, RankEntry{
				Rank:     i + 1,
				MemberID: memberID,
				XP:       int64(score),
			})
		}
		h.enrichNames(entries)
		ok(c, gin.H{"leaderboard": entries})
		return
	}

	// Fall back to a DB query and warm the cache on the way out.
	var rows []model.Member
	h.db.Select("id, display_name, streak, xp").
		Where("community_id = ?", cid).
		Order("xp DESC").
		Limit(limit).
		Find(&rows)

	entries := make([]RankEntry, len(rows))
	for i, m := range rows {
		entries[i] = RankEntry{
			Rank:        i + 1,
			MemberID:    m.ID,
			DisplayName: m.DisplayName,
			Streak:      m.Streak,
			XP:          m.XP,
		}
		_ = h.cache.ZAdd(ctx, key, float64(m.XP), strconv.FormatInt(m.ID, 10))
	}
	ok(c, gin.H{"leaderboard": entries})
}

// Refresh rebuilds one community's leaderboard sorted set from the DB.
// Exposed as POST /api/admin/communities/:cid/leaderboard/refresh and called
// periodically by the scheduler via RefreshAll.
func (h *RankingHandler) Refresh(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	n, err := h.refreshCommunity(c.Request.Context(), cid)
	if err != nil {
		fail(c, http.StatusInternalServerError, "db error")
		return
	}
	ok(c, gin.H{"refreshed": n})
}

// RefreshAll rebuilds the leaderboard of every community. Scheduler entry
// point; errors are logged, not propagated, so one bad community does not
// starve the rest.
func (h *RankingHandler) RefreshAll(ctx context.Context) {
	var ids []int64
	if err := h.db.Model(&model.Community{}).Pluck("id", &ids).Error; err != nil {
		h.logger.Error("leaderboard refresh: community list failed", zap.Error(err))
		return
	}
	for _, cid := range ids {
		if _, err := h.refreshCommunity(ctx, cid); err != nil {
			h.logger.Error("leaderboard refresh failed",
				zap.Int64("community_id", cid), zap.Error(err))
		}
	}
}

func (h *RankingHandler) refreshCommunity(ctx context.Context, cid int64) (int, error) {
	var rows []model.Member
	err := h.db.Select("id, xp").
		Where("community_id = ?", cid).
		Order("xp DESC").
		Limit(rankingTop).
		Find(&rows).Error
	if err != nil {
		return 0, err
	}
	key := leaderboardKey(cid)
	for _, m := range rows {
		_ = h.cache.ZAdd(ctx, key, float64(m.XP), strconv.FormatInt(m.ID, 10))
	}
	return len(rows), nil
}

func (h *RankingHandler) enrichNames(entries []RankEntry) {
	if len(entries) == 0 {
		return
	}
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.MemberID
	}
	var rows []model.Member
	h.db.Select("id, display_name, streak, xp").Where("id IN ?", ids).Find(&rows)
	byID := make(map[int64]model.Member, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	for i := range entries {
		if m, found := byID[entries[i].MemberID]; found {
			entries[i].DisplayName = m.DisplayName
			entries[i].Streak = m.Streak
			entries[i].XP = m.XP
		}
	}
}
