package models

import (
	"time"

	"github.com/teambition/rrule-go"
	"gorm.io/gorm"
)

// BillingType represents how a plan is charged
type BillingType string

const (
	BillingTypeOneTime   BillingType = "onetime"
	BillingTypeRecurring BillingType = "recurring"
)

// Plan represents a purchasable service tier (free, basic, premium).
// Price is in whole yen.
type Plan struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Code        string      `gorm:"type:varchar(50);uniqueIndex" json:"code"`
	Name        string      `gorm:"type:varchar(255)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Price       int64       `gorm:"type:bigint" json:"price"`
	BillingType BillingType `gorm:"type:varchar(20);default:'onetime'" json:"billing_type"`
	// RFC 5545 RRULE string for recurring billing cycles
	BillingInterval *string `gorm:"type:text" json:"billing_interval"`
	MaxEntries      int     `gorm:"default:0" json:"max_entries"` // 0 = unlimited
	IsActive        bool    `gorm:"default:true" json:"is_active"`
}

// NextBillingDate calculates the next charge date after the given
// period start. Falls back to the period start when the plan has no
// usable recurrence rule.
func (p Plan) NextBillingDate(periodStart time.Time) time.Time {
	if p.BillingType == BillingTypeOneTime {
		return periodStart
	}

	if p.BillingInterval != nil && *p.BillingInterval != "" {
		rule, err := rrule.StrToRRule(*p.BillingInterval)
		if err == nil {
			rule.DTStart(periodStart)
			next := rule.After(time.Now(), true)
			if !next.IsZero() {
				return next
			}
		}
	}
	return periodStart
}

// SubscriptionStatus represents the state of a user's subscription
type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusExpired  SubscriptionStatus = "expired"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription links a user to a purchased plan
type Subscription struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	UserID      uint               `gorm:"index" json:"user_id"`
	PlanID      uint               `gorm:"index" json:"plan_id"`
	Status      SubscriptionStatus `gorm:"type:varchar(20);default:'pending'" json:"status"`
	StartedAt   *time.Time         `json:"started_at"`
	RenewsAt    *time.Time         `json:"renews_at"`
	CancelledAt *time.Time         `json:"cancelled_at"`

	// Relationships
	User User `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Plan Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}
