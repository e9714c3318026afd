package rest

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/engine/economy"
	"github.com/huddlelabs/huddle/model"
	"gorm.io/gorm"
)

// StoreHandler exposes the community store: browsing, spending XP, and
// managing the resulting inventory.
type StoreHandler struct {
	db  *gorm.DB
	eng *engine.Engine
}

// NewStoreHandler creates a StoreHandler.
func NewStoreHandler(db *gorm.DB, eng *engine.Engine) *StoreHandler {
	return &StoreHandler{db: db, eng: eng}
}

// List handles GET /api/communities/:cid/store.
func (h *StoreHandler) List(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	var items []model.StoreItem
	err := h.db.Where("community_id = ? AND is_active = ? AND is_archived = ?",
		m.CommunityID, true, false).
		Order("cost ASC").
		Find(&items).Error
	if err != nil {
		fail(c, http.StatusInternalServerError, "store list failed")
		return
	}
	ok(c, gin.H{"items": items, "xp": m.XP})
}

// Purchase handles POST /api/communities/:cid/store/:id/purchase.
func (h *StoreHandler) Purchase(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid item id")
		return
	}

	entry, err := h.eng.PurchaseItem(c.Request.Context(), m.ID, itemID)
	if err != nil {
		failEngine(c, err)
		return
	}
	ok(c, gin.H{"entry": entry})
}

// Inventory handles GET /api/communities/:cid/inventory.
func (h *StoreHandler) Inventory(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	owned, err := h.eng.Economy.Inventory(c.Request.Context(), m.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "inventory load failed")
		return
	}
	if owned == nil {
		owned = []economy.OwnedItem{}
	}
	ok(c, gin.H{"inventory": owned})
}

// Activate handles POST /api/communities/:cid/inventory/:id/activate.
func (h *StoreHandler) Activate(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	entryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid entry id")
		return
	}

	res, err := h.eng.ActivateItem(c.Request.Context(), m.ID, entryID)
	if err != nil {
		failEngine(c, err)
		return
	}
	ok(c, gin.H{"activation": res})
}

// Equip handles POST /api/communities/:cid/store/:id/equip.
func (h *StoreHandler) Equip(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid item id")
		return
	}

	slot, err := h.eng.EquipCosmetic(c.Request.Context(), m.ID, itemID)
	if err != nil {
		failEngine(c, err)
		return
	}
	ok(c, gin.H{"slot": slot})
}

type unequipRequest struct {
	Slot string `json:"slot" binding:"required"`
}

// Unequip handles POST /api/communities/:cid/store/unequip.
func (h *StoreHandler) Unequip(c *gin.Context) {
	m, okM := lookupMember(c, h.db)
	if !okM {
		return
	}
	var req unequipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.eng.UnequipCosmetic(c.Request.Context(), m.ID, economy.Slot(req.Slot)); err != nil {
		failEngine(c, err)
		return
	}
	ok(c, gin.H{"slot": req.Slot})
}
