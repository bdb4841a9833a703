package models

import (
	"time"

	"gorm.io/gorm"
)

// OfferingType represents the kind of gift
type OfferingType string

const (
	OfferingTypeFlower  OfferingType = "flower"
	OfferingTypeFood    OfferingType = "food"
	OfferingTypeIncense OfferingType = "incense"
	OfferingTypeMoney   OfferingType = "money"
	OfferingTypeOther   OfferingType = "other"
)

// AllocationMethod represents how an offering's value is split across
// ledger entries
type AllocationMethod string

const (
	AllocationMethodEqual  AllocationMethod = "equal"
	AllocationMethodManual AllocationMethod = "manual"
	// Reserved. Declared in the API surface but not yet implemented.
	AllocationMethodWeighted AllocationMethod = "weighted"
)

// Offering is a gift (monetary or physical) recorded against a ledger.
// Price is in whole yen.
type Offering struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	KoudenID     uint         `gorm:"index" json:"kouden_id"`
	Type         OfferingType `gorm:"type:varchar(20);default:'other'" json:"type"`
	Description  string       `gorm:"type:text" json:"description"`
	Price        int64        `gorm:"type:bigint" json:"price"`
	ProviderName string       `gorm:"type:varchar(255)" json:"provider_name"`
	Quantity     int          `gorm:"default:1" json:"quantity"`
	Notes        string       `gorm:"type:text" json:"notes"`
	CreatedBy    uint         `json:"created_by"`

	// Relationships
	Kouden      Kouden               `gorm:"foreignKey:KoudenID" json:"kouden,omitempty"`
	Allocations []OfferingAllocation `gorm:"foreignKey:OfferingID;constraint:OnDelete:CASCADE" json:"allocations,omitempty"`
}

// OfferingAllocation apportions part of an offering's value to one
// ledger entry. For a given offering the allocated amounts are meant to
// sum to the offering price; the integrity check verifies this after
// the fact, it is not guaranteed transactionally for manual splits.
type OfferingAllocation struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	OfferingID           uint             `gorm:"uniqueIndex:idx_offering_allocations_pair" json:"offering_id"`
	KoudenEntryID        uint             `gorm:"uniqueIndex:idx_offering_allocations_pair" json:"kouden_entry_id"`
	AllocatedAmount      int64            `gorm:"type:bigint" json:"allocated_amount"`
	AllocationRatio      float64          `json:"allocation_ratio"`
	IsPrimaryContributor bool             `gorm:"default:false" json:"is_primary_contributor"`
	Method               AllocationMethod `gorm:"type:varchar(20)" json:"method"`

	// Relationships
	Offering    Offering    `gorm:"foreignKey:OfferingID" json:"offering,omitempty"`
	KoudenEntry KoudenEntry `gorm:"foreignKey:KoudenEntryID" json:"kouden_entry,omitempty"`
}
