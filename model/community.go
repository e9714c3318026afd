package model

import "time"

// Tier values, lowest to highest. TierTrial ranks highest while
// trial_ends_at is in the future, then falls back to the stored tier.
const (
	TierStarter = "starter"
	TierPro     = "pro"
	TierElite   = "elite"
	TierTrial   = "trial"
)

// Community is one tenant. The tier gates which engine features are active.
type Community struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string     `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Tier        string     `gorm:"size:16;default:starter" json:"tier"`
	TrialEndsAt *time.Time `json:"trial_ends_at"`
	// TrialFallbackTier is the tier the community reverts to once a trial
	// window closes.
	TrialFallbackTier string    `gorm:"size:16;default:starter" json:"trial_fallback_tier"`
	WhiteLabelEnabled bool      `gorm:"default:false" json:"white_label_enabled"`
	CreatedAt         time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
