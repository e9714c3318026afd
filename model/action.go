package model

import "time"

// ActionSource records who reported an action.
type ActionSource = string

const (
	SourceManual      ActionSource = "manual"
	SourceIntegration ActionSource = "integration"
)

// ActionEvent is an append-only record of one tracked member action.
// XPGained is the amount actually credited, multipliers included.
type ActionEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID    int64     `gorm:"index:idx_event_member;not null" json:"member_id"`
	CommunityID int64     `gorm:"index:idx_event_community;not null" json:"community_id"`
	ActionType  string    `gorm:"size:64;not null" json:"action_type"`
	XPGained    int64     `gorm:"not null" json:"xp_gained"`
	Source      string    `gorm:"size:16;default:manual" json:"source"`
	CreatedAt   time.Time `gorm:"index:idx_event_created;autoCreateTime" json:"created_at"`
}
