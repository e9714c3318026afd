package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huddlelabs/huddle/engine"
	"github.com/huddlelabs/huddle/engine/economy"
	"github.com/huddlelabs/huddle/model"
	"github.com/huddlelabs/huddle/scheduler"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminHandler handles admin-only REST endpoints: reward, badge, quest and
// store item management, member moderation, and tier changes.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	db     *gorm.DB
	eng    *engine.Engine
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(db *gorm.DB, eng *engine.Engine, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, eng: eng, sched: sched, logger: logger}
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"success": false, "message": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				gin.H{"success": false, "message": "unauthorized"})
			return
		}
		c.Next()
	}
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

// ---- reward definitions ----

type rewardRequest struct {
	ActionType string `json:"action_type" binding:"required,min=1,max=64"`
	XP         int64  `json:"xp" binding:"required,min=1"`
	BadgeName  string `json:"badge_name"`
}

// CreateReward handles POST /api/admin/communities/:cid/rewards.
func (h *AdminHandler) CreateReward(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	var req rewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	def := model.RewardDefinition{
		CommunityID: cid,
		ActionType:  req.ActionType,
		XP:          req.XP,
		BadgeName:   req.BadgeName,
		IsActive:    true,
	}
	if err := h.db.Create(&def).Error; err != nil {
		if isUniqueViolation(err) {
			fail(c, http.StatusConflict, "action type already defined")
			return
		}
		fail(c, http.StatusInternalServerError, "create failed")
		return
	}
	ok(c, gin.H{"reward": def})
}

type rewardUpdateRequest struct {
	XP        *int64  `json:"xp"`
	BadgeName *string `json:"badge_name"`
	IsActive  *bool   `json:"is_active"`
}

// UpdateReward handles PUT /api/admin/rewards/:id. Edits apply to future
// actions only; logged ActionEvents keep the XP they were credited with.
func (h *AdminHandler) UpdateReward(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var req rewardUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	updates := map[string]interface{}{}
	if req.XP != nil {
		if *req.XP <= 0 {
			fail(c, http.StatusBadRequest, "xp must be positive")
			return
		}
		updates["xp"] = *req.XP
	}
	if req.BadgeName != nil {
		updates["badge_name"] = *req.BadgeName
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	h.applyUpdate(c, &model.RewardDefinition{}, id, updates, "reward")
}

// DeleteReward handles DELETE /api/admin/rewards/:id. Definitions with event
// history are archived, not deleted, so past events keep their referent.
func (h *AdminHandler) DeleteReward(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var def model.RewardDefinition
	if err := h.db.Where("id = ?", id).First(&def).Error; err != nil {
		fail(c, http.StatusNotFound, "reward not found")
		return
	}
	var history int64
	h.db.Model(&model.ActionEvent{}).
		Where("community_id = ? AND action_type = ?", def.CommunityID, def.ActionType).
		Count(&history)
	h.archiveOrDelete(c, &def, history > 0, "reward")
}

// ---- badge definitions ----

type badgeRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=64"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
}

// CreateBadge handles POST /api/admin/communities/:cid/badges.
func (h *AdminHandler) CreateBadge(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	var req badgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	def := model.BadgeDefinition{
		CommunityID: cid,
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Color:       req.Color,
		IsActive:    true,
	}
	if err := h.db.Create(&def).Error; err != nil {
		if isUniqueViolation(err) {
			fail(c, http.StatusConflict, "badge name already defined")
			return
		}
		fail(c, http.StatusInternalServerError, "create failed")
		return
	}
	ok(c, gin.H{"badge": def})
}

// DeleteBadge handles DELETE /api/admin/badges/:id. Badges already granted
// to members are archived instead.
func (h *AdminHandler) DeleteBadge(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var def model.BadgeDefinition
	if err := h.db.Where("id = ?", id).First(&def).Error; err != nil {
		fail(c, http.StatusNotFound, "badge not found")
		return
	}
	var grants int64
	h.db.Model(&model.MemberBadge{}).Where("badge_id = ?", id).Count(&grants)
	h.archiveOrDelete(c, &def, grants > 0, "badge")
}

// AwardBadge handles POST /api/admin/members/:id/badges {name}. Awarding a
// badge the member already holds reports granted=false, not an error.
func (h *AdminHandler) AwardBadge(c *gin.Context) {
	memberID, okID := idParam(c)
	if !okID {
		return
	}
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	granted, err := h.eng.AwardBadge(c.Request.Context(), memberID, req.Name)
	if err != nil {
		failEngine(c, err)
		return
	}
	ok(c, gin.H{"granted": granted})
}

// ---- quests ----

type questRequest struct {
	Title       string            `json:"title" binding:"required,min=1,max=128"`
	Description string            `json:"description"`
	XPReward    int64             `json:"xp_reward" binding:"required,min=1"`
	BadgeReward string            `json:"badge_reward"`
	Tasks       []model.QuestTask `json:"tasks" binding:"required,min=1,dive"`
}

// CreateQuest handles POST /api/admin/communities/:cid/quests.
func (h *AdminHandler) CreateQuest(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	var req questRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, task := range req.Tasks {
		if task.ActionType == "" || task.TargetCount <= 0 {
			fail(c, http.StatusBadRequest, "each task needs an action type and a positive target")
			return
		}
	}
	raw, _ := json.Marshal(req.Tasks)
	q := model.Quest{
		CommunityID: cid,
		Title:       req.Title,
		Description: req.Description,
		XPReward:    req.XPReward,
		BadgeReward: req.BadgeReward,
		Tasks:       datatypes.JSON(raw),
		IsActive:    true,
	}
	if err := h.db.Create(&q).Error; err != nil {
		fail(c, http.StatusInternalServerError, "create failed")
		return
	}
	ok(c, gin.H{"quest": q})
}

type questUpdateRequest struct {
	Title       *string           `json:"title"`
	Description *string           `json:"description"`
	XPReward    *int64            `json:"xp_reward"`
	Tasks       []model.QuestTask `json:"tasks"`
	IsActive    *bool             `json:"is_active"`
}

// UpdateQuest handles PUT /api/admin/quests/:id. Raising a task target does
// not revert anyone's completed flag; completion is monotonic.
func (h *AdminHandler) UpdateQuest(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var req questUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.XPReward != nil {
		if *req.XPReward <= 0 {
			fail(c, http.StatusBadRequest, "xp_reward must be positive")
			return
		}
		updates["xp_reward"] = *req.XPReward
	}
	if len(req.Tasks) > 0 {
		for _, task := range req.Tasks {
			if task.ActionType == "" || task.TargetCount <= 0 {
				fail(c, http.StatusBadRequest, "each task needs an action type and a positive target")
				return
			}
		}
		raw, _ := json.Marshal(req.Tasks)
		updates["tasks"] = datatypes.JSON(raw)
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	h.applyUpdate(c, &model.Quest{}, id, updates, "quest")
}

// DeleteQuest handles DELETE /api/admin/quests/:id. Quests with progress
// rows are archived.
func (h *AdminHandler) DeleteQuest(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var q model.Quest
	if err := h.db.Where("id = ?", id).First(&q).Error; err != nil {
		fail(c, http.StatusNotFound, "quest not found")
		return
	}
	var progress int64
	h.db.Model(&model.QuestProgress{}).Where("quest_id = ?", id).Count(&progress)
	h.archiveOrDelete(c, &q, progress > 0, "quest")
}

// ---- store items ----

type itemRequest struct {
	Name          string  `json:"name" binding:"required,min=1,max=128"`
	Description   string  `json:"description"`
	Cost          int64   `json:"cost" binding:"required,min=1"`
	Icon          string  `json:"icon"`
	ItemType      string  `json:"item_type" binding:"required"`
	DurationHours int     `json:"duration_hours"`
	Modifier      float64 `json:"modifier"`
	FreezeGrant   int     `json:"freeze_grant"`
	Color         string  `json:"color"`
	Text          string  `json:"text"`
	ImageURL      string  `json:"image_url"`
	TitlePosition string  `json:"title_position"`
}

// CreateItem handles POST /api/admin/communities/:cid/items. The payload
// columns are validated against the declared item type up front, so members
// can never purchase a malformed definition.
func (h *AdminHandler) CreateItem(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	item := model.StoreItem{
		CommunityID:   cid,
		Name:          req.Name,
		Description:   req.Description,
		Cost:          req.Cost,
		Icon:          req.Icon,
		ItemType:      req.ItemType,
		DurationHours: req.DurationHours,
		Modifier:      req.Modifier,
		FreezeGrant:   req.FreezeGrant,
		Color:         req.Color,
		Text:          req.Text,
		ImageURL:      req.ImageURL,
		TitlePosition: req.TitlePosition,
		IsActive:      true,
	}
	if _, err := economy.ResolvePayload(&item); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.db.Create(&item).Error; err != nil {
		fail(c, http.StatusInternalServerError, "create failed")
		return
	}
	ok(c, gin.H{"item": item})
}

type itemUpdateRequest struct {
	Cost     *int64 `json:"cost"`
	IsActive *bool  `json:"is_active"`
}

// UpdateItem handles PUT /api/admin/items/:id. Only price and availability
// change after creation; payload edits would retroactively change what
// members already bought.
func (h *AdminHandler) UpdateItem(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var req itemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	updates := map[string]interface{}{}
	if req.Cost != nil {
		if *req.Cost <= 0 {
			fail(c, http.StatusBadRequest, "cost must be positive")
			return
		}
		updates["cost"] = *req.Cost
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	h.applyUpdate(c, &model.StoreItem{}, id, updates, "item")
}

// DeleteItem handles DELETE /api/admin/items/:id. Items anyone purchased
// are archived so inventories keep resolving.
func (h *AdminHandler) DeleteItem(c *gin.Context) {
	id, okID := idParam(c)
	if !okID {
		return
	}
	var item model.StoreItem
	if err := h.db.Where("id = ?", id).First(&item).Error; err != nil {
		fail(c, http.StatusNotFound, "item not found")
		return
	}
	var purchases int64
	h.db.Model(&model.InventoryEntry{}).Where("item_id = ?", id).Count(&purchases)
	h.archiveOrDelete(c, &item, purchases > 0, "item")
}

// ---- moderation and tier ----

type banRequest struct {
	Hours int `json:"hours"` // 0 lifts the ban
}

// BanMember handles POST /api/admin/members/:id/ban.
func (h *AdminHandler) BanMember(c *gin.Context) {
	memberID, okID := idParam(c)
	if !okID {
		return
	}
	var req banRequest
	_ = c.ShouldBindJSON(&req)

	var until interface{}
	if req.Hours > 0 {
		until = time.Now().UTC().Add(time.Duration(req.Hours) * time.Hour)
	}
	res := h.db.Model(&model.Member{}).Where("id = ?", memberID).Update("banned_until", until)
	if res.Error != nil {
		fail(c, http.StatusInternalServerError, "db error")
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, "member not found")
		return
	}
	h.logger.Info("admin ban update",
		zap.Int64("member_id", memberID), zap.Int("hours", req.Hours))
	ok(c, gin.H{"banned_until": until})
}

type tierRequest struct {
	Tier              string     `json:"tier" binding:"required"`
	TrialEndsAt       *time.Time `json:"trial_ends_at"`
	TrialFallbackTier string     `json:"trial_fallback_tier"`
}

// SetTier handles PUT /api/admin/communities/:cid/tier. Setting tier=trial
// requires trial_ends_at; the fallback defaults to the community's current
// tier so expiry reverts rather than upgrades.
func (h *AdminHandler) SetTier(c *gin.Context) {
	cid, okID := communityID(c)
	if !okID {
		return
	}
	var req tierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Tier {
	case model.TierStarter, model.TierPro, model.TierElite, model.TierTrial:
	default:
		fail(c, http.StatusBadRequest, "unknown tier")
		return
	}

	var community model.Community
	if err := h.db.Where("id = ?", cid).First(&community).Error; err != nil {
		fail(c, http.StatusNotFound, "community not found")
		return
	}

	updates := map[string]interface{}{"tier": req.Tier}
	if req.Tier == model.TierTrial {
		if req.TrialEndsAt == nil {
			fail(c, http.StatusBadRequest, "trial requires trial_ends_at")
			return
		}
		fallback := req.TrialFallbackTier
		if fallback == "" {
			fallback = community.Tier
			if fallback == model.TierTrial {
				fallback = model.TierStarter
			}
		}
		updates["trial_ends_at"] = *req.TrialEndsAt
		updates["trial_fallback_tier"] = fallback
	}
	if err := h.db.Model(&community).Updates(updates).Error; err != nil {
		fail(c, http.StatusInternalServerError, "db error")
		return
	}
	ok(c, gin.H{"tier": req.Tier})
}

// CreateCommunity handles POST /api/admin/communities.
func (h *AdminHandler) CreateCommunity(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required,min=1,max=64"`
		Tier string `json:"tier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.Tier == "" {
		req.Tier = model.TierStarter
	}
	community := model.Community{Name: req.Name, Tier: req.Tier, TrialFallbackTier: model.TierStarter}
	if err := h.db.Create(&community).Error; err != nil {
		if isUniqueViolation(err) {
			fail(c, http.StatusConflict, "community name taken")
			return
		}
		fail(c, http.StatusInternalServerError, "create failed")
		return
	}
	ok(c, gin.H{"community": community})
}

// Metrics handles GET /api/admin/metrics.
func (h *AdminHandler) Metrics(c *gin.Context) {
	counts := gin.H{}
	for name, m := range map[string]interface{}{
		"communities": &model.Community{},
		"members":     &model.Member{},
		"events":      &model.ActionEvent{},
		"purchases":   &model.InventoryEntry{},
	} {
		var n int64
		h.db.Model(m).Count(&n)
		counts[name] = n
	}
	ok(c, gin.H{
		"counts":          counts,
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// ListSchedulerTasks handles GET /api/admin/scheduler.
func (h *AdminHandler) ListSchedulerTasks(c *gin.Context) {
	ok(c, gin.H{"tasks": h.sched.ListTickers()})
}

// ---- shared helpers ----

func (h *AdminHandler) applyUpdate(c *gin.Context, m interface{}, id int64, updates map[string]interface{}, kind string) {
	if len(updates) == 0 {
		fail(c, http.StatusBadRequest, "nothing to update")
		return
	}
	res := h.db.Model(m).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		fail(c, http.StatusInternalServerError, "db error")
		return
	}
	if res.RowsAffected == 0 {
		fail(c, http.StatusNotFound, kind+" not found")
		return
	}
	ok(c, gin.H{"updated": id})
}

func (h *AdminHandler) archiveOrDelete(c *gin.Context, record interface{}, referenced bool, kind string) {
	if referenced {
		err := h.db.Model(record).Updates(map[string]interface{}{
			"is_archived": true,
			"is_active":   false,
		}).Error
		if err != nil {
			fail(c, http.StatusInternalServerError, "archive failed")
			return
		}
		ok(c, gin.H{"archived": true})
		return
	}
	if err := h.db.Delete(record).Error; err != nil {
		fail(c, http.StatusInternalServerError, "delete failed")
		return
	}
	ok(c, gin.H{"deleted": true})
}
