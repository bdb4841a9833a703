package models

import (
	"time"

	"gorm.io/gorm"
)

// Telegram records a condolence telegram received for a funeral event.
// It may optionally be linked to the ledger entry of the same sender.
type Telegram struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	KoudenID           uint   `gorm:"index" json:"kouden_id"`
	SenderName         string `gorm:"type:varchar(255)" json:"sender_name"`
	SenderOrganization string `gorm:"type:varchar(255)" json:"sender_organization"`
	SenderPosition     string `gorm:"type:varchar(255)" json:"sender_position"`
	Message            string `gorm:"type:text" json:"message"`
	Notes              string `gorm:"type:text" json:"notes"`
	KoudenEntryID      *uint  `gorm:"index" json:"kouden_entry_id"`

	// Relationships
	Kouden      Kouden       `gorm:"foreignKey:KoudenID" json:"kouden,omitempty"`
	KoudenEntry *KoudenEntry `gorm:"foreignKey:KoudenEntryID" json:"kouden_entry,omitempty"`
}
