package models

import (
	"time"
)

// EntryLockTTL is how long an edit lock stays valid without release.
const EntryLockTTL = 5 * time.Minute

// EntryLock is an advisory edit lock on a ledger entry. It signals
// "someone is editing this row" to other members; it does not prevent
// concurrent writes, which remain last-write-wins.
type EntryLock struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	KoudenEntryID uint      `gorm:"uniqueIndex" json:"kouden_entry_id"`
	UserID        uint      `gorm:"index" json:"user_id"`
	LockedAt      time.Time `json:"locked_at"`
	ExpiresAt     time.Time `gorm:"index" json:"expires_at"`

	// Relationships
	KoudenEntry KoudenEntry `gorm:"foreignKey:KoudenEntryID;constraint:OnDelete:CASCADE" json:"kouden_entry,omitempty"`
	User        User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// IsExpired reports whether the lock has passed its expiry.
func (l EntryLock) IsExpired() bool {
	return l.IsExpiredAt(time.Now())
}

// IsExpiredAt reports whether the lock is expired at the given instant.
func (l EntryLock) IsExpiredAt(now time.Time) bool {
	return now.After(l.ExpiresAt)
}
