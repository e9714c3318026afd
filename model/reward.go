package model

import "time"

// RewardDefinition maps an action type to the XP it earns.
// Once a definition has ActionEvent history it is archived, never deleted.
type RewardDefinition struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CommunityID int64  `gorm:"uniqueIndex:idx_reward_community_action;not null" json:"community_id"`
	ActionType  string `gorm:"uniqueIndex:idx_reward_community_action;size:64;not null" json:"action_type"`
	XP          int64  `gorm:"not null" json:"xp"`
	// BadgeName optionally links a badge granted the first time this action
	// is performed.
	BadgeName  string    `gorm:"size:64" json:"badge_name"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	IsArchived bool      `gorm:"default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
