package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/engine/tier"
	mw "github.com/huddlelabs/huddle/middleware"
	"github.com/huddlelabs/huddle/model"
	"gorm.io/gorm"
)

// MemberHandler handles community membership endpoints: joining and the
// member's own profile.
type MemberHandler struct {
	db  *gorm.DB
	eng *engine.Engine
}

// NewMemberHandler creates a MemberHandler.
func NewMemberHandler(db *gorm.DB, eng *engine.Engine) *MemberHandler {
	return &MemberHandler{db: db, eng: eng}
}

// communityID parses the :cid route param.
func communityID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("cid"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid community id")
		return 0, false
	}
	return id, true
}

// lookupMember resolves the authenticated account's member row in the
// community and rejects banned members. Writes the response itself on
// failure.
func lookupMember(c *gin.Context, db *gorm.DB) (*model.Member, bool) {
	cid, okID := communityID(c)
	if !okID {
		return nil, false
	}
	accountID := mw.GetAccountID(c)

	var m model.Member
	err := db.Where("account_id = ? AND community_id = ?", accountID, cid).First(&m).Error
	if err != nil {
		fail(c, http.StatusNotFound, "not a member of this community")
		return nil, false
	}
	if m.BannedUntil != nil && time.Now().Before(*m.BannedUntil) {
		fail(c, http.StatusForbidden, "member is banned")
		return nil, false
	}
	return &m, true
}

type joinRequest struct {
	DisplayName string `json:"display_name" binding:"required,min=1,max=64"`
}

// Join handles POST /api/communities/:cid/join. Creates the account's Member
// row in the community; joining twice returns the existing row.
func (h *MemberHandler) Join(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	var community model.Community
	if err := h.db.Where("id = ?", cid).First(&community).Error; err != nil {
		fail(c, http.StatusNotFound, "community not found")
		return
	}

	accountID := mw.GetAccountID(c)
	m := model.Member{
		AccountID:   accountID,
		CommunityID: cid,
		DisplayName: req.DisplayName,
		Role:        model.RoleMember,
	}
	if err := h.db.Create(&m).Error; err != nil {
		if !isUniqueViolation(err) {
			fail(c, http.StatusInternalServerError, "join failed")
			return
		}
		// Already a member: return the existing row.
		if err := h.db.Where("account_id = ? AND community_id = ?", accountID, cid).
			First(&m).Error; err != nil {
			fail(c, http.StatusInternalServerError, "join failed")
			return
		}
	}
	ok(c, gin.H{"member": m})
}

// Me handles GET /api/communities/:cid/me: the member's full profile with
// badges and currently active effects.
func (h *MemberHandler) Me(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	ctx := c.Request.Context()

	badges, err := h.eng.Badges.List(ctx, m.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "profile load failed")
		return
	}
	effects, err := h.eng.Effects.Active(ctx, m.ID, time.Now().UTC())
	if err != nil {
		fail(c, http.StatusInternalServerError, "profile load failed")
		return
	}

	ok(c, gin.H{
		"member":  m,
		"badges":  badges,
		"effects": effects,
	})
}

// Tier handles GET /api/communities/:cid/tier: the community's effective
// tier and feature switches, so clients can hide gated UI.
func (h *MemberHandler) Tier(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	var community model.Community
	if err := h.db.Where("id = ?", cid).First(&community).Error; err != nil {
		fail(c, http.StatusNotFound, "community not found")
		return
	}

	now := time.Now().UTC()
	features := gin.H{}
	for _, f := range []tier.Feature{
		tier.FeatureActions, tier.FeatureBadges, tier.FeatureQuests,
		tier.FeatureStore, tier.FeatureAnalytics, tier.FeatureWhiteLabel,
	} {
		features[f] = tier.IsEnabled(&community, f, now)
	}
	ok(c, gin.H{
		"tier":     tier.EffectiveTier(&community, now),
		"features": features,
	})
}
