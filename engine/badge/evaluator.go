package badge

import (
	"context"
	"errors"
	"strings"

	"github.com/huddlelabs/huddle/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrUnknownBadge means the badge name does not resolve to an active
// definition in the community. Distinct from the duplicate-grant case,
// which is a silent no-op.
var ErrUnknownBadge = errors.New("badge does not exist")

// Milestone maps an XP threshold to the badge granted on crossing it.
type Milestone struct {
	XP    int64
	Badge string
}

// DefaultMilestones is the ascending XP milestone ladder. Communities seed
// matching badge definitions; milestones whose badge is missing are skipped
// at evaluation time.
var DefaultMilestones = []Milestone{
	{XP: 100, Badge: "First Steps"},
	{XP: 500, Badge: "Regular"},
	{XP: 1000, Badge: "Dedicated"},
	{XP: 5000, Badge: "Veteran"},
	{XP: 10000, Badge: "Legend"},
}

// Grant is one badge newly awarded by an evaluation.
type Grant struct {
	BadgeID   int64  `json:"badge_id"`
	BadgeName string `json:"badge_name"`
}

// Evaluator decides which badges unlock when a member's XP moves, and owns
// the idempotent grant primitive.
type Evaluator struct {
	db         *gorm.DB
	milestones []Milestone
	logger     *zap.Logger
}

// NewEvaluator creates an Evaluator. Pass nil milestones to use the default
// ladder.
func NewEvaluator(db *gorm.DB, milestones []Milestone, logger *zap.Logger) *Evaluator {
	if milestones == nil {
		milestones = DefaultMilestones
	}
	return &Evaluator{db: db, milestones: milestones, logger: logger}
}

// Evaluate grants every badge unlocked by an XP move from xpBefore to
// xpAfter: the action-linked badge (if any) plus every milestone in
// (xpBefore, xpAfter]. A single action crossing several milestones grants
// all of them. Already-held badges and milestones without a matching
// definition are skipped silently.
func (ev *Evaluator) Evaluate(ctx context.Context, communityID, memberID int64, xpBefore, xpAfter int64, linkedBadge string) ([]Grant, error) {
	var names []string
	if strings.TrimSpace(linkedBadge) != "" {
		names = append(names, linkedBadge)
	}
	for _, ms := range ev.milestones {
		if ms.XP > xpBefore && ms.XP <= xpAfter {
			names = append(names, ms.Badge)
		}
	}

	var grants []Grant
	for _, name := range names {
		granted, badgeID, err := ev.grant(ev.db.WithContext(ctx), communityID, memberID, name)
		if errors.Is(err, ErrUnknownBadge) {
			continue
		}
		if err != nil {
			return grants, err
		}
		if granted {
			grants = append(grants, Grant{BadgeID: badgeID, BadgeName: name})
		}
	}
	return grants, nil
}

// Grant awards the named badge to the member. Returns false with no error
// when the member already holds it: the unique (member, badge) index is the
// authoritative guard, so a concurrent duplicate insert is a success, not a
// failure. Returns ErrUnknownBadge when the name resolves to nothing.
func (ev *Evaluator) Grant(ctx context.Context, communityID, memberID int64, badgeName string) (bool, error) {
	granted, _, err := ev.grant(ev.db.WithContext(ctx), communityID, memberID, badgeName)
	return granted, err
}

// GrantIn is Grant on an existing transaction, used by the quest claim path
// so the badge lands atomically with the claim flag and XP credit.
func (ev *Evaluator) GrantIn(tx *gorm.DB, communityID, memberID int64, badgeName string) (bool, error) {
	granted, _, err := ev.grant(tx, communityID, memberID, badgeName)
	return granted, err
}

func (ev *Evaluator) grant(db *gorm.DB, communityID, memberID int64, badgeName string) (bool, int64, error) {
	var def model.BadgeDefinition
	err := db.Where("community_id = ? AND name = ? AND is_active = ? AND is_archived = ?",
		communityID, badgeName, true, false).First(&def).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, 0, ErrUnknownBadge
		}
		return false, 0, err
	}

	mb := &model.MemberBadge{MemberID: memberID, BadgeID: def.ID}
	if err := db.Create(mb).Error; err != nil {
		if isDuplicate(err) {
			return false, def.ID, nil
		}
		return false, 0, err
	}
	ev.logger.Info("badge granted",
		zap.Int64("member_id", memberID),
		zap.String("badge", badgeName))
	return true, def.ID, nil
}

// List returns the member's badges with their definitions, newest first.
func (ev *Evaluator) List(ctx context.Context, memberID int64) ([]model.BadgeDefinition, error) {
	var defs []model.BadgeDefinition
	err := ev.db.WithContext(ctx).
		Joins("JOIN member_badges ON member_badges.badge_id = badge_definitions.id").
		Where("member_badges.member_id = ?", memberID).
		Order("member_badges.granted_at DESC").
		Find(&defs).Error
	return defs, err
}

// isDuplicate detects unique-constraint violations across drivers.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
