package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/model"
	"gorm.io/gorm"
)

// BadgeHandler exposes badge definitions and the member's earned badges.
type BadgeHandler struct {
	db  *gorm.DB
	eng *engine.Engine
}

// NewBadgeHandler creates a BadgeHandler.
func NewBadgeHandler(db *gorm.DB, eng *engine.Engine) *BadgeHandler {
	return &BadgeHandler{db: db, eng: eng}
}

// List handles GET /api/communities/:cid/badges: every active badge in the
// community, with the member's earned ones flagged.
func (h *BadgeHandler) List(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}

	var defs []model.BadgeDefinition
	err := h.db.Where("community_id = ? AND is_active = ? AND is_archived = ?",
		m.CommunityID, true, false).
		Order("id ASC").
		Find(&defs).Error
	if err != nil {
		fail(c, http.StatusInternalServerError, "badge list failed")
		return
	}

	var held []model.MemberBadge
	if err := h.db.Where("member_id = ?", m.ID).Find(&held).Error; err != nil {
		fail(c, http.StatusInternalServerError, "badge list failed")
		return
	}
	earned := make(map[int64]bool, len(held))
	for _, mb := range held {
		earned[mb.BadgeID] = true
	}

	type badgeView struct {
		model.BadgeDefinition
		Earned bool `json:"earned"`
	}
	views := make([]badgeView, len(defs))
	for i, def := range defs {
		views[i] = badgeView{BadgeDefinition: def, Earned: earned[def.ID]}
	}
	ok(c, gin.H{"badges": views})
}
