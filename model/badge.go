package model

import "time"

// BadgeDefinition describes an achievement badge within a community.
type BadgeDefinition struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CommunityID int64     `gorm:"uniqueIndex:idx_badge_community_name;not null" json:"community_id"`
	Name        string    `gorm:"uniqueIndex:idx_badge_community_name;size:64;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	Icon        string    `gorm:"size:64" json:"icon"`
	Color       string    `gorm:"size:16" json:"color"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	IsArchived  bool      `gorm:"default:false" json:"is_archived"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MemberBadge is the member↔badge join. The unique index on
// (member_id, badge_id) is the authoritative guard against double grants:
// a duplicate-key insert is treated as an idempotent success upstream.
type MemberBadge struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  int64     `gorm:"uniqueIndex:idx_member_badge;not null" json:"member_id"`
	BadgeID   int64     `gorm:"uniqueIndex:idx_member_badge;not null" json:"badge_id"`
	GrantedAt time.Time `gorm:"autoCreateTime" json:"granted_at"`
}
