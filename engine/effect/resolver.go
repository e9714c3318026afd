package effect

import (
	"context"
	"time"

	"github.com/huddlelabs/huddle/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Resolver answers "what XP multiplier applies to this member right now".
// Expiry is evaluated lazily by comparing expires_at against now; rows are
// never required to be deleted for correctness.
type Resolver struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(db *gorm.DB, logger *zap.Logger) *Resolver {
	return &Resolver{db: db, logger: logger}
}

// ModifierFor returns the multiplier to apply to XP gains for the member.
// When several effects overlap the highest modifier wins; effects do not
// stack multiplicatively. Returns 1 when nothing is active.
func (r *Resolver) ModifierFor(ctx context.Context, memberID int64, now time.Time) (float64, error) {
	return modifierFor(r.db.WithContext(ctx), memberID, now)
}

// ModifierForTx is ModifierFor evaluated on an existing transaction, so the
// ledger reads the multiplier and writes XP under the same snapshot.
func (r *Resolver) ModifierForTx(tx *gorm.DB, memberID int64, now time.Time) (float64, error) {
	return modifierFor(tx, memberID, now)
}

func modifierFor(db *gorm.DB, memberID int64, now time.Time) (float64, error) {
	var effects []model.ActiveEffect
	if err := db.Where("member_id = ? AND expires_at > ?", memberID, now).
		Find(&effects).Error; err != nil {
		return 1, err
	}
	mod := 1.0
	for _, e := range effects {
		if e.Modifier > mod {
			mod = e.Modifier
		}
	}
	return mod, nil
}

// Active returns the member's non-expired effects, soonest expiry first.
func (r *Resolver) Active(ctx context.Context, memberID int64, now time.Time) ([]model.ActiveEffect, error) {
	var effects []model.ActiveEffect
	err := r.db.WithContext(ctx).
		Where("member_id = ? AND expires_at > ?", memberID, now).
		Order("expires_at ASC").
		Find(&effects).Error
	return effects, err
}

// Prune deletes effect rows that expired before the cutoff. Storage hygiene
// only; reads already exclude expired rows.
func (r *Resolver) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&model.ActiveEffect{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.logger.Debug("pruned expired effects", zap.Int64("rows", res.RowsAffected))
	}
	return res.RowsAffected, nil
}
