package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records engine mutations (actions, purchases, claims, grants)
// and admin changes for after-the-fact review.
type AuditLog struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID     string         `gorm:"index:idx_audit_trace;size:36;not null" json:"trace_id"`
	MemberID    *int64         `gorm:"index:idx_audit_member" json:"member_id"`
	AccountID   *int64         `json:"account_id"`
	CommunityID int64          `json:"community_id"`
	Operation   string         `gorm:"size:64;not null" json:"operation"`
	Request     datatypes.JSON `json:"request"`
	Response    datatypes.JSON `json:"response"`
	Error       string         `gorm:"type:text" json:"error"`
	IP          string         `gorm:"size:45" json:"ip"`
	DurationMs  int            `json:"duration_ms"`
	CreatedAt   time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}
