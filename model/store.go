package model

import "time"

// ItemType enumerates the store item variants.
type ItemType = string

const (
	ItemInstant     ItemType = "INSTANT"
	ItemTimedEffect ItemType = "TIMED_EFFECT"
	ItemNameColor   ItemType = "NAME_COLOR"
	ItemTitle       ItemType = "TITLE"
	ItemBanner      ItemType = "BANNER"
	ItemAvatarPulse ItemType = "AVATAR_PULSE"
	ItemFrame       ItemType = "FRAME"
)

// StoreItem is a purchasable entry in the community store. ItemType selects
// which payload columns are meaningful; the engine resolves the variant once
// at the boundary (economy.ResolvePayload) rather than re-checking strings.
type StoreItem struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CommunityID int64  `gorm:"index:idx_item_community;not null" json:"community_id"`
	Name        string `gorm:"size:128;not null" json:"name"`
	Description string `gorm:"size:512" json:"description"`
	Cost        int64  `gorm:"not null" json:"cost"`
	Icon        string `gorm:"size:64" json:"icon"`
	ItemType    string `gorm:"size:24;not null" json:"item_type"`

	// TIMED_EFFECT payload.
	DurationHours int     `json:"duration_hours"`
	Modifier      float64 `json:"modifier"`

	// INSTANT payload: streak freezes granted on activation.
	FreezeGrant int `json:"freeze_grant"`

	// Cosmetic payloads.
	Color         string `gorm:"size:16" json:"color"`
	Text          string `gorm:"size:64" json:"text"`
	ImageURL      string `gorm:"size:255" json:"image_url"`
	TitlePosition string `gorm:"size:16" json:"title_position"`

	IsActive   bool      `gorm:"default:true" json:"is_active"`
	IsArchived bool      `gorm:"default:false" json:"is_archived"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// InventoryEntry is one purchased unit. Identical consumables are separate
// rows (grouped only for display). Activated flips false→true exactly once
// for INSTANT/TIMED_EFFECT items.
type InventoryEntry struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID    int64      `gorm:"index:idx_inventory_member;not null" json:"member_id"`
	ItemID      int64      `gorm:"index:idx_inventory_item;not null" json:"item_id"`
	Activated   bool       `gorm:"default:false" json:"activated"`
	ActivatedAt *time.Time `json:"activated_at"`
	PurchasedAt time.Time  `gorm:"autoCreateTime" json:"purchased_at"`
}

// ActiveEffect is a time-boxed XP multiplier. Rows are ignored once
// expires_at passes; deletion is scheduler hygiene, never correctness.
type ActiveEffect struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MemberID  int64     `gorm:"index:idx_effect_member;not null" json:"member_id"`
	ItemID    int64     `gorm:"not null" json:"item_id"`
	Modifier  float64   `gorm:"not null" json:"modifier"`
	ExpiresAt time.Time `gorm:"index:idx_effect_expires;not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}
