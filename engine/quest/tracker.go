package quest

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/huddlelabs/huddle/engine/badge"
	"github.com/huddlelabs/huddle/engine/ledger"
	"github.com/huddlelabs/huddle/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrQuestNotFound means the quest does not exist in the community.
	ErrQuestNotFound = errors.New("quest not found")
	// ErrNotCompleted means the quest's tasks are not all satisfied yet.
	ErrNotCompleted = errors.New("quest not completed")
	// ErrAlreadyClaimed means the reward was already disbursed. Unlike a
	// duplicate badge grant this is surfaced to the caller: a silent second
	// XP credit would be a real bug.
	ErrAlreadyClaimed = errors.New("reward already claimed")
)

// Update describes one quest whose progress moved on an action.
type Update struct {
	QuestID        int64          `json:"quest_id"`
	Title          string         `json:"title"`
	Counts         map[string]int `json:"counts"`
	Completed      bool           `json:"completed"`
	NewlyCompleted bool           `json:"newly_completed"`
}

// ClaimResult is the outcome of a successful reward claim.
type ClaimResult struct {
	XPAwarded    int64  `json:"xp_awarded"`
	BadgeAwarded string `json:"badge_awarded,omitempty"`
}

// Tracker advances per-quest task counters on actions and owns the one-shot
// reward claim.
type Tracker struct {
	db     *gorm.DB
	badges *badge.Evaluator
	logger *zap.Logger
}

// NewTracker creates a Tracker.
func NewTracker(db *gorm.DB, badges *badge.Evaluator, logger *zap.Logger) *Tracker {
	return &Tracker{db: db, badges: badges, logger: logger}
}

// OnAction advances counters for every active quest in the community that
// has a task matching actionType. Progress rows are created lazily on the
// first matching action, counters cap at the task target, and `completed`
// only ever flips false→true. Rewards are NOT granted here; that is Claim's
// job.
func (tr *Tracker) OnAction(ctx context.Context, communityID, memberID int64, actionType string, count int) ([]Update, error) {
	if count <= 0 {
		count = 1
	}
	var quests []model.Quest
	err := tr.db.WithContext(ctx).
		Where("community_id = ? AND is_active = ? AND is_archived = ?", communityID, true, false).
		Find(&quests).Error
	if err != nil {
		return nil, err
	}

	var updates []Update
	for i := range quests {
		q := &quests[i]
		tasks, err := decodeTasks(q.Tasks)
		if err != nil {
			tr.logger.Warn("skipping quest with malformed tasks",
				zap.Int64("quest_id", q.ID), zap.Error(err))
			continue
		}
		if !questTracksAction(tasks, actionType) {
			continue
		}
		upd, err := tr.advance(ctx, q, tasks, memberID, actionType, count)
		if err != nil {
			return updates, err
		}
		if upd != nil {
			updates = append(updates, *upd)
		}
	}
	return updates, nil
}

// advance applies the capped increment under a counts-equality CAS so two
// concurrent actions for the same member never lose a count. The loser
// rereads and retries; the counter cap keeps retries convergent.
func (tr *Tracker) advance(ctx context.Context, q *model.Quest, tasks []model.QuestTask, memberID int64, actionType string, count int) (*Update, error) {
	const casAttempts = 5
	for attempt := 0; attempt < casAttempts; attempt++ {
		qp, err := tr.loadOrCreateProgress(ctx, memberID, q.ID)
		if err != nil {
			return nil, err
		}

		counts := map[string]int{}
		if len(qp.Counts) > 0 {
			if err := json.Unmarshal(qp.Counts, &counts); err != nil {
				return nil, err
			}
		}

		target := targetFor(tasks, actionType)
		current := counts[actionType]
		next := current + count
		if next > target {
			next = target
		}
		if next == current && qp.Completed {
			// Already capped and complete; nothing to write.
			return nil, nil
		}
		counts[actionType] = next

		completed := qp.Completed || allSatisfied(tasks, counts)
		newCounts, _ := json.Marshal(counts)

		res := tr.db.WithContext(ctx).Model(&model.QuestProgress{}).
			Where("id = ? AND counts = ?", qp.ID, qp.Counts).
			Updates(map[string]interface{}{
				"counts":    datatypes.JSON(newCounts),
				"completed": completed,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			continue // lost the race, reread and retry
		}
		return &Update{
			QuestID:        q.ID,
			Title:          q.Title,
			Counts:         counts,
			Completed:      completed,
			NewlyCompleted: completed && !qp.Completed,
		}, nil
	}
	return nil, ledger.ErrConflict
}

func (tr *Tracker) loadOrCreateProgress(ctx context.Context, memberID, questID int64) (*model.QuestProgress, error) {
	var qp model.QuestProgress
	err := tr.db.WithContext(ctx).
		Where("member_id = ? AND quest_id = ?", memberID, questID).
		First(&qp).Error
	if err == nil {
		return &qp, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	empty, _ := json.Marshal(map[string]int{})
	qp = model.QuestProgress{
		MemberID: memberID,
		QuestID:  questID,
		Counts:   datatypes.JSON(empty),
	}
	if createErr := tr.db.WithContext(ctx).Create(&qp).Error; createErr != nil {
		// Concurrent creation: the unique (member, quest) index makes the
		// second insert fail; reread the winner.
		var existing model.QuestProgress
		if err := tr.db.WithContext(ctx).
			Where("member_id = ? AND quest_id = ?", memberID, questID).
			First(&existing).Error; err != nil {
			return nil, createErr
		}
		return &existing, nil
	}
	return &qp, nil
}

// Claim disburses the quest reward exactly once. The claimed flag's
// false→true conditional update is the concurrency guard: of two concurrent
// claims one wins and one observes ErrAlreadyClaimed. Claim flag, XP credit
// and badge grant commit or roll back as a unit.
func (tr *Tracker) Claim(ctx context.Context, memberID, questID int64) (*ClaimResult, error) {
	var result *ClaimResult
	err := tr.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q model.Quest
		if err := tx.Where("id = ?", questID).First(&q).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrQuestNotFound
			}
			return err
		}

		var qp model.QuestProgress
		err := tx.Where("member_id = ? AND quest_id = ?", memberID, questID).First(&qp).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotCompleted
			}
			return err
		}
		if !qp.Completed {
			return ErrNotCompleted
		}

		res := tx.Model(&model.QuestProgress{}).
			Where("id = ? AND claimed = ?", qp.ID, false).
			Update("claimed", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}

		if err := ledger.CreditXP(tx, memberID, q.XPReward); err != nil {
			return err
		}

		result = &ClaimResult{XPAwarded: q.XPReward}
		if q.BadgeReward != "" {
			// A duplicate grant is fine (idempotent); an unknown badge name
			// rolls the whole claim back rather than half-applying it.
			granted, err := tr.badges.GrantIn(tx, q.CommunityID, memberID, q.BadgeReward)
			if err != nil {
				return err
			}
			if granted {
				result.BadgeAwarded = q.BadgeReward
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	tr.logger.Info("quest claimed",
		zap.Int64("member_id", memberID),
		zap.Int64("quest_id", questID),
		zap.Int64("xp", result.XPAwarded))
	return result, nil
}

// ProgressFor returns the member's progress rows for the given quests,
// keyed by quest ID. Quests without a row simply have no entry.
func (tr *Tracker) ProgressFor(ctx context.Context, memberID int64, questIDs []int64) (map[int64]*model.QuestProgress, error) {
	out := make(map[int64]*model.QuestProgress)
	if len(questIDs) == 0 {
		return out, nil
	}
	var rows []model.QuestProgress
	err := tr.db.WithContext(ctx).
		Where("member_id = ? AND quest_id IN ?", memberID, questIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].QuestID] = &rows[i]
	}
	return out, nil
}

func decodeTasks(raw datatypes.JSON) ([]model.QuestTask, error) {
	var tasks []model.QuestTask
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, errors.New("quest has no tasks")
	}
	return tasks, nil
}

func questTracksAction(tasks []model.QuestTask, actionType string) bool {
	for _, t := range tasks {
		if t.ActionType == actionType {
			return true
		}
	}
	return false
}

func targetFor(tasks []model.QuestTask, actionType string) int {
	target := 0
	for _, t := range tasks {
		if t.ActionType == actionType && t.TargetCount > target {
			target = t.TargetCount
		}
	}
	return target
}

func allSatisfied(tasks []model.QuestTask, counts map[string]int) bool {
	for _, t := range tasks {
		if counts[t.ActionType] < t.TargetCount {
			return false
		}
	}
	return true
}
