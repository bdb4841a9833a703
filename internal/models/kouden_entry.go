package models

import (
	"time"

	"gorm.io/gorm"
)

// AttendanceType represents how the contributor attended
type AttendanceType string

const (
	AttendanceFuneral         AttendanceType = "funeral"
	AttendanceCondolenceVisit AttendanceType = "condolence_visit"
	AttendanceAbsent          AttendanceType = "absent"
)

// ReturnStatus represents the return-gift fulfillment state of an entry
type ReturnStatus string

const (
	ReturnStatusPending     ReturnStatus = "pending"
	ReturnStatusPartial     ReturnStatus = "partial"
	ReturnStatusCompleted   ReturnStatus = "completed"
	ReturnStatusNotRequired ReturnStatus = "not_required"
)

// KoudenEntry is one contributor row in a ledger. Amount is the cash
// gift value in whole yen.
type KoudenEntry struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	KoudenID     uint           `gorm:"index" json:"kouden_id"`
	Name         string         `gorm:"type:varchar(255)" json:"name"`
	Organization string         `gorm:"type:varchar(255)" json:"organization"`
	Position     string         `gorm:"type:varchar(255)" json:"position"`
	Amount       int64          `gorm:"type:bigint" json:"amount"`
	PostalCode   string         `gorm:"type:varchar(8)" json:"postal_code"`
	Address      string         `gorm:"type:text" json:"address"`
	PhoneNumber  string         `gorm:"type:varchar(50)" json:"phone_number"`
	Attendance   AttendanceType `gorm:"type:varchar(30);default:'funeral'" json:"attendance"`
	HasOffering  bool           `gorm:"default:false" json:"has_offering"`
	ReturnStatus ReturnStatus   `gorm:"type:varchar(20);default:'pending'" json:"return_status"`
	Notes        string         `gorm:"type:text" json:"notes"`

	// Version is bumped on every update. Writes are last-write-wins;
	// the counter is recorded for display, not enforced.
	Version        int  `gorm:"default:1" json:"version"`
	LastModifiedBy uint `json:"last_modified_by"`

	// Relationships
	Kouden      Kouden               `gorm:"foreignKey:KoudenID" json:"kouden,omitempty"`
	Allocations []OfferingAllocation `gorm:"foreignKey:KoudenEntryID" json:"allocations,omitempty"`
	ReturnItems []ReturnItem         `gorm:"foreignKey:KoudenEntryID" json:"return_items,omitempty"`
}
