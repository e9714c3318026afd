package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/model"
	"gorm.io/gorm"
)

// QuestHandler lists quests with the member's progress and claims rewards.
type QuestHandler struct {
	db  *gorm.DB
	eng *engine.Engine
}

// NewQuestHandler creates a QuestHandler.
func NewQuestHandler(db *gorm.DB, eng *engine.Engine) *QuestHandler {
	return &QuestHandler{db: db, eng: eng}
}

type questView struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	XPReward    int64             `json:"xp_reward"`
	BadgeReward string            `json:"badge_reward,omitempty"`
	Tasks       []model.QuestTask `json:"tasks"`
	Counts      map[string]int    `json:"counts"`
	Completed   bool              `json:"completed"`
	Claimed     bool              `json:"claimed"`
}

// List handles GET /api/communities/:cid/quests: active quests with the
// member's counters merged in. Quests without a progress row show zeros.
func (h *QuestHandler) List(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}

	var quests []model.Quest
	err := h.db.Where("community_id = ? AND is_active = ? AND is_archived = ?",
		m.CommunityID, true, false).
		Order("id ASC").
		Find(&quests).Error
	if err != nil {
		fail(c, http.StatusInternalServerError, "quest list failed")
		return
	}

	ids := make([]int64, len(quests))
	for i := range quests {
		ids[i] = quests[i].ID
	}
	progress, err := h.eng.Quests.ProgressFor(c.Request.Context(), m.ID, ids)
	if err != nil {
		fail(c, http.StatusInternalServerError, "quest list failed")
		return
	}

	views := make([]questView, 0, len(quests))
	for i := range quests {
		q := &quests[i]
		v := questView{
			ID:          q.ID,
			Title:       q.Title,
			Description: q.Description,
			XPReward:    q.XPReward,
			BadgeReward: q.BadgeReward,
			Counts:      map[string]int{},
		}
		_ = json.Unmarshal(q.Tasks, &v.Tasks)
		if qp, found := progress[q.ID]; found {
			_ = json.Unmarshal(qp.Counts, &v.Counts)
			v.Completed = qp.Completed
			v.Claimed = qp.Claimed
		}
		views = append(views, v)
	}
	ok(c, gin.H{"quests": views})
}

// Claim handles POST /api/communities/:cid/quests/:id/claim.
func (h *QuestHandler) Claim(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	questID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid quest id")
		return
	}

	res, err := h.eng.ClaimQuest(c.Request.Context(), m.ID, questID)
	if err != nil {
		failEngine(c, err)
		return
	}
	ok(c, gin.H{"reward": res})
}
