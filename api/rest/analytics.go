package rest

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/model"
	"gorm.io/gorm"
)

// AnalyticsHandler serves community engagement summaries. Elite tier only;
// the route group is gated with RequireFeature(FeatureAnalytics).
type AnalyticsHandler struct {
	db *gorm.DB
}

// NewAnalyticsHandler creates an AnalyticsHandler.
func NewAnalyticsHandler(db *gorm.DB) *AnalyticsHandler {
	return &AnalyticsHandler{db: db}
}

// Summary handles GET /api/communities/:cid/analytics: headline engagement
// numbers for the community.
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	cid := m.CommunityID

	var members int64
	h.db.Model(&model.Member{}).Where("community_id = ?", cid).Count(&members)

	var totalXP int64
	h.db.Model(&model.Member{}).Where("community_id = ?", cid).
		Select("COALESCE(SUM(xp), 0)").Scan(&totalXP)

	weekAgo := time.Now().UTC().AddDate(0, 0, -7)
	var recentEvents int64
	h.db.Model(&model.ActionEvent{}).
		Where("community_id = ? AND created_at >= ?", cid, weekAgo).
		Count(&recentEvents)

	var activeMembers int64
	h.db.Model(&model.ActionEvent{}).
		Where("community_id = ? AND created_at >= ?", cid, weekAgo).
		Distinct("member_id").Count(&activeMembers)

	var topStreak int
	h.db.Model(&model.Member{}).Where("community_id = ?", cid).
		Select("COALESCE(MAX(streak), 0)").Scan(&topStreak)

	ok(c, gin.H{
		"members":         members,
		"total_xp":        totalXP,
		"events_7d":       recentEvents,
		"active_7d":       activeMembers,
		"top_streak":      topStreak,
		"window_start_at": weekAgo,
	})
}
