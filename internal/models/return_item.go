package models

import (
	"time"

	"gorm.io/gorm"
)

// DeliveryMethod represents how a return gift is delivered
type DeliveryMethod string

const (
	DeliveryMethodShipping DeliveryMethod = "shipping"
	DeliveryMethodHandover DeliveryMethod = "handover"
)

// ReturnItem is one return gift prepared for a ledger entry. Price is
// in whole yen.
type ReturnItem struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	KoudenEntryID  uint           `gorm:"index" json:"kouden_entry_id"`
	Name           string         `gorm:"type:varchar(255)" json:"name"`
	Price          int64          `gorm:"type:bigint" json:"price"`
	Quantity       int            `gorm:"default:1" json:"quantity"`
	DeliveryMethod DeliveryMethod `gorm:"type:varchar(20);default:'shipping'" json:"delivery_method"`
	IsSent         bool           `gorm:"default:false" json:"is_sent"`
	SentAt         *time.Time     `json:"sent_at"`
	Notes          string         `gorm:"type:text" json:"notes"`

	// Relationships
	KoudenEntry KoudenEntry `gorm:"foreignKey:KoudenEntryID" json:"kouden_entry,omitempty"`
}
