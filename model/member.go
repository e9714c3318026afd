package model

import "time"

// MemberRole distinguishes ordinary members from community admins.
type MemberRole = string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
)

// Member is one account's identity inside a single community.
// XP, streak and cosmetic slots all live here; the row is never hard-deleted.
type Member struct {
	ID            int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	AccountID     int64  `gorm:"uniqueIndex:idx_member_account_community;not null" json:"account_id"`
	CommunityID   int64  `gorm:"uniqueIndex:idx_member_account_community;index:idx_member_community;not null" json:"community_id"`
	DisplayName   string `gorm:"size:64" json:"display_name"`
	Role          string `gorm:"size:16;default:member" json:"role"`
	XP            int64  `gorm:"default:0" json:"xp"`
	Streak        int    `gorm:"default:0" json:"streak"`
	StreakFreezes int    `gorm:"default:0" json:"streak_freezes"`
	// LastActionDate holds the UTC calendar day of the most recent tracked
	// action, truncated to midnight. Nil until the first action.
	LastActionDate *time.Time `json:"last_action_date"`
	BannedUntil    *time.Time `json:"banned_until"`

	// Equipped cosmetic slots. Empty string means nothing equipped.
	NameColor        string `gorm:"size:16" json:"name_color"`
	Title            string `gorm:"size:64" json:"title"`
	BannerURL        string `gorm:"size:255" json:"banner_url"`
	AvatarPulseColor string `gorm:"size:16" json:"avatar_pulse_color"`
	FrameURL         string `gorm:"size:255" json:"frame_url"`

	// Version guards optimistic concurrency on streak arithmetic.
	Version   int64     `gorm:"default:0" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
