package model

import (
	"time"

	"gorm.io/datatypes"
)

// QuestTask is one requirement inside a quest's Tasks JSON column.
type QuestTask struct {
	ActionType  string `json:"action_type"`
	TargetCount int    `json:"target_count"`
	Description string `json:"description,omitempty"`
}

// Quest is a multi-task objective with a one-time XP (and optional badge)
// reward. Tasks is a JSON-encoded []QuestTask; a valid quest has at least one.
type Quest struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CommunityID int64          `gorm:"index:idx_quest_community;not null" json:"community_id"`
	Title       string         `gorm:"size:128;not null" json:"title"`
	Description string         `gorm:"size:512" json:"description"`
	XPReward    int64          `gorm:"not null" json:"xp_reward"`
	BadgeReward string         `gorm:"size:64" json:"badge_reward"`
	Tasks       datatypes.JSON `gorm:"not null" json:"tasks"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	IsArchived  bool           `gorm:"default:false" json:"is_archived"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

// QuestProgress tracks one member's counters for one quest.
// Counts maps action type → accumulated count, capped at the task target.
// Completed is monotonic; Claimed flips false→true exactly once and is the
// concurrency guard for reward disbursement.
type QuestProgress struct {
	ID        int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  int64          `gorm:"uniqueIndex:idx_member_quest;not null" json:"member_id"`
	QuestID   int64          `gorm:"uniqueIndex:idx_member_quest;not null" json:"quest_id"`
	Counts    datatypes.JSON `json:"counts"`
	Completed bool           `gorm:"default:false" json:"completed"`
	Claimed   bool           `gorm:"default:false" json:"claimed"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}
