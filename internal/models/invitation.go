package models

import (
	"time"

	"gorm.io/gorm"
)

// InvitationStatus represents the lifecycle state of a share link
type InvitationStatus string

const (
	InvitationStatusActive  InvitationStatus = "active"
	InvitationStatusRevoked InvitationStatus = "revoked"
)

// KoudenInvitation is a share link granting access to a ledger. The
// token is a UUID embedded in the invitation URL.
type KoudenInvitation struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	KoudenID  uint             `gorm:"index" json:"kouden_id"`
	Token     string           `gorm:"type:varchar(36);uniqueIndex" json:"token"`
	Role      MemberRole       `gorm:"type:varchar(20);default:'viewer'" json:"role"`
	CreatedBy uint             `json:"created_by"`
	ExpiresAt time.Time        `json:"expires_at"`
	MaxUses   int              `gorm:"default:1" json:"max_uses"`
	UsedCount int              `gorm:"default:0" json:"used_count"`
	Status    InvitationStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	// When set, only the account with this email may accept.
	Email string `gorm:"type:varchar(255)" json:"email,omitempty"`

	// Relationships
	Kouden Kouden `gorm:"foreignKey:KoudenID" json:"kouden,omitempty"`
}

// IsUsable reports whether the invitation can still be accepted.
func (i KoudenInvitation) IsUsable(now time.Time) bool {
	if i.Status != InvitationStatusActive {
		return false
	}
	if now.After(i.ExpiresAt) {
		return false
	}
	if i.MaxUses > 0 && i.UsedCount >= i.MaxUses {
		return false
	}
	return true
}
