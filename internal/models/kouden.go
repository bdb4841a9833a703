package models

import (
	"time"

	"gorm.io/gorm"
)

// KoudenStatus represents the lifecycle state of a ledger
type KoudenStatus string

const (
	KoudenStatusActive   KoudenStatus = "active"
	KoudenStatusArchived KoudenStatus = "archived"
)

// Kouden represents one condolence-gift ledger (one funeral event)
type Kouden struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Title       string       `gorm:"type:varchar(255)" json:"title"`
	Description string       `gorm:"type:text" json:"description"`
	OwnerID     uint         `gorm:"index" json:"owner_id"`
	Status      KoudenStatus `gorm:"type:varchar(20);default:'active'" json:"status"`
	PlanID      *uint        `json:"plan_id"`

	// Relationships
	Owner     User               `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Plan      *Plan              `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Members   []KoudenMember     `gorm:"foreignKey:KoudenID" json:"members,omitempty"`
	Entries   []KoudenEntry      `gorm:"foreignKey:KoudenID" json:"entries,omitempty"`
	Offerings []Offering         `gorm:"foreignKey:KoudenID" json:"offerings,omitempty"`
	Telegrams []Telegram         `gorm:"foreignKey:KoudenID" json:"telegrams,omitempty"`
	Invites   []KoudenInvitation `gorm:"foreignKey:KoudenID" json:"invites,omitempty"`
}

// MemberRole represents the per-ledger role of a member
type MemberRole string

const (
	MemberRoleOwner  MemberRole = "owner"
	MemberRoleEditor MemberRole = "editor"
	MemberRoleViewer MemberRole = "viewer"
)

// Rank returns the privilege level of a role. Higher rank implies all
// capabilities of lower ranks.
func (r MemberRole) Rank() int {
	switch r {
	case MemberRoleOwner:
		return 3
	case MemberRoleEditor:
		return 2
	case MemberRoleViewer:
		return 1
	}
	return 0
}

// KoudenMember links a User to a Kouden with a role
type KoudenMember struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	KoudenID uint       `gorm:"uniqueIndex:idx_kouden_members_pair" json:"kouden_id"`
	UserID   uint       `gorm:"uniqueIndex:idx_kouden_members_pair" json:"user_id"`
	Role     MemberRole `gorm:"type:varchar(20);default:'viewer'" json:"role"`

	// Relationships
	Kouden Kouden `gorm:"foreignKey:KoudenID" json:"kouden,omitempty"`
	User   User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
