package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/model"
	"gorm.io/gorm"
)

// ActionHandler records tracked member actions.
type ActionHandler struct {
	db  *gorm.DB
	eng *engine.Engine
}

// NewActionHandler creates an ActionHandler.
func NewActionHandler(db *gorm.DB, eng *engine.Engine) *ActionHandler {
	return &ActionHandler{db: db, eng: eng}
}

type recordActionRequest struct {
	ActionType string `json:"action_type" binding:"required,min=1,max=64"`
	Source     string `json:"source"`
}

// Record handles POST /api/communities/:cid/actions. Runs the full pipeline:
// XP and streak commit, badge evaluation, quest counters, events.
func (h *ActionHandler) Record(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	var req recordActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	source := req.Source
	if source != model.SourceIntegration {
		source = model.SourceManual
	}

	res, err := h.eng.RecordAction(c.Request.Context(), m.ID, req.ActionType, source)
	if err != nil {
		failEngine(c, err)
		return
	}
	ok(c, gin.H{"result": res})
}

// History handles GET /api/communities/:cid/actions: the member's recent
// action events, newest first.
func (h *ActionHandler) History(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	limit := 50
	var events []model.ActionEvent
	err := h.db.Where("member_id = ?", m.ID).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		fail(c, http.StatusInternalServerError, "history load failed")
		return
	}
	ok(c, gin.H{"events": events})
}
