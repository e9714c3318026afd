package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huddlelabs/huddle/cache"
	"github.com/huddlelabs/huddle/engine/badge"
	"github.com/huddlelabs/huddle/engine/economy"
	"github.com/huddlelabs/huddle/engine/effect"
	"github.com/huddlelabs/huddle/engine/ledger"
	"github.com/huddlelabs/huddle/engine/quest"
	"github.com/huddlelabs/huddle/engine/tier"
	"github.com/huddlelabs/huddle/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EventChannel returns the pub/sub channel carrying a community's engine
// events, consumed by the SSE layer.
func EventChannel(communityID int64) string {
	return fmt.Sprintf("events:community:%d", communityID)
}

// Event is one engine occurrence worth telling clients about.
type Event struct {
	Type     string      `json:"type"` // badge_granted | quest_completed | quest_claimed
	MemberID int64       `json:"member_id"`
	Payload  interface{} `json:"payload,omitempty"`
}

// ActionResult is the caller-facing outcome of RecordAction.
type ActionResult struct {
	XPGained       int64          `json:"xp_gained"`
	NewXP          int64          `json:"new_xp"`
	NewStreak      int            `json:"new_streak"`
	FreezeConsumed bool           `json:"freeze_consumed"`
	BadgesGranted  []badge.Grant  `json:"badges_granted,omitempty"`
	QuestUpdates   []quest.Update `json:"quest_updates,omitempty"`
}

// Engine wires the ledger, badge evaluator, quest tracker, economy and
// effect resolver into the operation contract the HTTP layer calls.
type Engine struct {
	db      *gorm.DB
	Ledger  *ledger.Service
	Badges  *badge.Evaluator
	Quests  *quest.Tracker
	Economy *economy.Service
	Effects *effect.Resolver
	pubsub  cache.PubSub
	logger  *zap.Logger
}

// New assembles an Engine. pubsub may be nil; events are then dropped.
func New(db *gorm.DB, casRetries int, milestones []badge.Milestone, ps cache.PubSub, logger *zap.Logger) *Engine {
	effects := effect.NewResolver(db, logger)
	badges := badge.NewEvaluator(db, milestones, logger)
	return &Engine{
		db:      db,
		Ledger:  ledger.NewService(db, effects, casRetries, logger),
		Badges:  badges,
		Quests:  quest.NewTracker(db, badges, logger),
		Economy: economy.NewService(db, logger),
		Effects: effects,
		pubsub:  ps,
		logger:  logger,
	}
}

// RecordAction runs the full action pipeline: the ledger commits XP, streak
// and the event atomically; the badge evaluator and quest tracker then run
// against the new state. Their writes are individually guarded (unique
// index, counter CAS), so re-running them after a crash is harmless.
func (e *Engine) RecordAction(ctx context.Context, memberID int64, actionType, source string) (*ActionResult, error) {
	m, err := e.member(ctx, memberID)
	if err != nil {
		return nil, err
	}

	res, err := e.Ledger.ApplyAction(ctx, memberID, actionType, source)
	if err != nil {
		return nil, err
	}

	grants, err := e.Badges.Evaluate(ctx, m.CommunityID, memberID, res.XPBefore, res.NewXP, res.LinkedBadge)
	if err != nil {
		e.logger.Error("badge evaluation failed", zap.Int64("member_id", memberID), zap.Error(err))
	}
	for _, g := range grants {
		e.publish(ctx, m.CommunityID, Event{Type: "badge_granted", MemberID: memberID, Payload: g})
	}

	updates, err := e.Quests.OnAction(ctx, m.CommunityID, memberID, actionType, 1)
	if err != nil {
		e.logger.Error("quest tracking failed", zap.Int64("member_id", memberID), zap.Error(err))
	}
	for _, u := range updates {
		if u.NewlyCompleted {
			e.publish(ctx, m.CommunityID, Event{Type: "quest_completed", MemberID: memberID, Payload: u})
		}
	}

	return &ActionResult{
		XPGained:       res.XPGained,
		NewXP:          res.NewXP,
		NewStreak:      res.NewStreak,
		FreezeConsumed: res.FreezeConsumed,
		BadgesGranted:  grants,
		QuestUpdates:   updates,
	}, nil
}

// AwardBadge grants a badge directly (admin and integration path).
// Granted=false with nil error means the member already held it.
func (e *Engine) AwardBadge(ctx context.Context, memberID int64, badgeName string) (bool, error) {
	m, err := e.member(ctx, memberID)
	if err != nil {
		return false, err
	}
	granted, err := e.Badges.Grant(ctx, m.CommunityID, memberID, badgeName)
	if err != nil {
		return false, err
	}
	if granted {
		e.publish(ctx, m.CommunityID, Event{Type: "badge_granted", MemberID: memberID,
			Payload: badge.Grant{BadgeName: badgeName}})
	}
	return granted, nil
}

// ClaimQuest disburses a completed quest's reward exactly once.
func (e *Engine) ClaimQuest(ctx context.Context, memberID, questID int64) (*quest.ClaimResult, error) {
	m, err := e.member(ctx, memberID)
	if err != nil {
		return nil, err
	}
	res, err := e.Quests.Claim(ctx, memberID, questID)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, m.CommunityID, Event{Type: "quest_claimed", MemberID: memberID, Payload: res})

	// Quest XP crosses milestones the same way action XP does. Grants are
	// idempotent, so evaluating after the claim committed is safe even if
	// a concurrent action already covered the interval.
	grants, err := e.Badges.Evaluate(ctx, m.CommunityID, memberID, m.XP, m.XP+res.XPAwarded, "")
	if err != nil {
		e.logger.Error("badge evaluation failed", zap.Int64("member_id", memberID), zap.Error(err))
	}
	for _, g := range grants {
		e.publish(ctx, m.CommunityID, Event{Type: "badge_granted", MemberID: memberID, Payload: g})
	}
	return res, nil
}

// PurchaseItem spends XP on a store item.
func (e *Engine) PurchaseItem(ctx context.Context, memberID, itemID int64) (*model.InventoryEntry, error) {
	return e.Economy.Purchase(ctx, memberID, itemID)
}

// ActivateItem consumes one inventory entry.
func (e *Engine) ActivateItem(ctx context.Context, memberID, entryID int64) (*economy.ActivationResult, error) {
	return e.Economy.Activate(ctx, memberID, entryID)
}

// EquipCosmetic places an owned cosmetic in its slot.
func (e *Engine) EquipCosmetic(ctx context.Context, memberID, itemID int64) (economy.Slot, error) {
	return e.Economy.Equip(ctx, memberID, itemID)
}

// UnequipCosmetic clears a slot.
func (e *Engine) UnequipCosmetic(ctx context.Context, memberID int64, slot economy.Slot) error {
	return e.Economy.Unequip(ctx, memberID, slot)
}

// IsFeatureEnabled answers the tier gate for a community.
func (e *Engine) IsFeatureEnabled(ctx context.Context, communityID int64, feature tier.Feature) (bool, error) {
	var c model.Community
	err := e.db.WithContext(ctx).Where("id = ?", communityID).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return tier.IsEnabled(&c, feature, time.Now().UTC()), nil
}

func (e *Engine) member(ctx context.Context, memberID int64) (*model.Member, error) {
	var m model.Member
	if err := e.db.WithContext(ctx).Where("id = ?", memberID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrMemberNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (e *Engine) publish(ctx context.Context, communityID int64, ev Event) {
	if e.pubsub == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := e.pubsub.Publish(ctx, EventChannel(communityID), string(payload)); err != nil {
		e.logger.Warn("event publish failed", zap.Error(err))
	}
}
