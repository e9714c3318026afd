package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/huddlelabs/huddle/engine/effect"
	"github.com/huddlelabs/huddle/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrUnknownAction means no active reward definition exists for the
	// action type in the member's community.
	ErrUnknownAction = errors.New("unknown action type")
	// ErrMemberNotFound means the member row does not exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrConflict means the optimistic update on the member row lost the
	// race too many times; callers may retry the whole operation.
	ErrConflict = errors.New("concurrent update conflict")
)

// Result is the outcome of one applied action.
type Result struct {
	XPGained  int64
	XPBefore  int64
	NewXP     int64
	NewStreak int
	// FreezeConsumed is true when a streak freeze bridged a missed day.
	FreezeConsumed bool
	// LinkedBadge carries the reward definition's badge name, if any, for
	// the badge evaluator.
	LinkedBadge string
}

// Service is the streak & XP ledger: the single mutation path that turns a
// raw action into XP and streak state. XP only ever increases here; spending
// happens in the economy service.
type Service struct {
	db      *gorm.DB
	effects *effect.Resolver
	retries int
	logger  *zap.Logger
}

// NewService creates a ledger Service. retries bounds the optimistic-update
// loop on the member row; 0 means a single attempt.
func NewService(db *gorm.DB, effects *effect.Resolver, retries int, logger *zap.Logger) *Service {
	if retries < 0 {
		retries = 0
	}
	return &Service{db: db, effects: effects, retries: retries, logger: logger}
}

// ApplyAction credits the reward for actionType to the member, advances the
// streak, and appends the ActionEvent in one transaction. The member
// update uses a version CAS so concurrent actions on the same member never
// lose an update; losers retry up to the configured bound.
func (svc *Service) ApplyAction(ctx context.Context, memberID int64, actionType, source string) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt <= svc.retries; attempt++ {
		res, err := svc.tryApply(ctx, memberID, actionType, source, time.Now().UTC())
		if errors.Is(err, ErrConflict) {
			lastErr = err
			continue
		}
		return res, err
	}
	return nil, lastErr
}

func (svc *Service) tryApply(ctx context.Context, memberID int64, actionType, source string, now time.Time) (*Result, error) {
	var result *Result
	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m model.Member
		if err := tx.Where("id = ?", memberID).First(&m).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}

		var def model.RewardDefinition
		err := tx.Where("community_id = ? AND action_type = ? AND is_active = ? AND is_archived = ?",
			m.CommunityID, actionType, true, false).First(&def).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUnknownAction
			}
			return err
		}

		mod, err := svc.effects.ModifierForTx(tx, memberID, now)
		if err != nil {
			return err
		}
		// Rounding rule: floor. 10 XP at ×1.5 credits 15; at ×1.25 credits 12.
		gained := int64(math.Floor(float64(def.XP) * mod))

		today := dateOf(now)
		streak, freezes, froze := nextStreak(&m, today)

		updates := map[string]interface{}{
			"xp":               gorm.Expr("xp + ?", gained),
			"streak":           streak,
			"streak_freezes":   freezes,
			"last_action_date": today,
			"version":          gorm.Expr("version + ?", 1),
		}
		res := tx.Model(&model.Member{}).
			Where("id = ? AND version = ?", m.ID, m.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		event := &model.ActionEvent{
			MemberID:    m.ID,
			CommunityID: m.CommunityID,
			ActionType:  actionType,
			XPGained:    gained,
			Source:      source,
		}
		if err := tx.Create(event).Error; err != nil {
			return err
		}

		result = &Result{
			XPGained:       gained,
			XPBefore:       m.XP,
			NewXP:          m.XP + gained,
			NewStreak:      streak,
			FreezeConsumed: froze,
			LinkedBadge:    def.BadgeName,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	svc.logger.Debug("action applied",
		zap.Int64("member_id", memberID),
		zap.String("action_type", actionType),
		zap.Int64("xp_gained", result.XPGained),
		zap.Int("streak", result.NewStreak))
	return result, nil
}

// CreditXP atomically adds a reward disbursement to the member's balance on
// an existing transaction. No ActionEvent is written: this path is for quest
// rewards, not tracked actions.
func CreditXP(tx *gorm.DB, memberID int64, amount int64) error {
	res := tx.Model(&model.Member{}).
		Where("id = ?", memberID).
		Updates(map[string]interface{}{
			"xp":      gorm.Expr("xp + ?", amount),
			"version": gorm.Expr("version + ?", 1),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMemberNotFound
	}
	return nil
}

// nextStreak computes the streak transition for an action on day `today`
// (UTC midnight). Rules:
//   - first ever action: streak 1
//   - same day: unchanged (no streak farming via repeated actions)
//   - consecutive day: +1
//   - one missed day with a freeze available: +1, freeze consumed
//   - anything longer: reset to 1
func nextStreak(m *model.Member, today time.Time) (streak, freezes int, froze bool) {
	freezes = m.StreakFreezes
	if m.LastActionDate == nil {
		return 1, freezes, false
	}
	switch daysBetween(dateOf(*m.LastActionDate), today) {
	case 0:
		return m.Streak, freezes, false
	case 1:
		return m.Streak + 1, freezes, false
	case 2:
		if freezes > 0 {
			return m.Streak + 1, freezes - 1, true
		}
		return 1, freezes, false
	default:
		return 1, freezes, false
	}
}

// dateOf truncates t to its UTC calendar day.
func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
