package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kouden_app/internal/models"
)

// ErrEntryLocked is returned when another member holds an unexpired
// lock on the entry.
var ErrEntryLocked = errors.New("entry is locked by another user")

// EntryLockService manages advisory edit locks on ledger entries.
// Locks are UI signaling only: writes stay last-write-wins, and a lock
// silently lapses after its TTL if the holder never releases it.
type EntryLockService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewEntryLockService(db *gorm.DB) *EntryLockService {
	return &EntryLockService{db: db, now: time.Now}
}

// Acquire takes the edit lock on an entry for a user. Re-acquiring
// one's own lock refreshes its expiry; an expired lock left by a
// vanished editor is removed in passing.
func (s *EntryLockService) Acquire(entryID, userID uint) (*models.EntryLock, error) {
	now := s.now()
	var acquired models.EntryLock

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.EntryLock
		err := tx.Where("kouden_entry_id = ?", entryID).First(&existing).Error
		if err == nil {
			if existing.UserID != userID && !existing.IsExpiredAt(now) {
				return fmt.Errorf("%w (user %d)", ErrEntryLocked, existing.UserID)
			}
			// Expired or held by us: take it over with a fresh expiry.
			existing.UserID = userID
			existing.LockedAt = now
			existing.ExpiresAt = now.Add(models.EntryLockTTL)
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("failed to refresh lock: %w", err)
			}
			acquired = existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check lock: %w", err)
		}

		lock := models.EntryLock{
			KoudenEntryID: entryID,
			UserID:        userID,
			LockedAt:      now,
			ExpiresAt:     now.Add(models.EntryLockTTL),
		}
		if err := tx.Create(&lock).Error; err != nil {
			// Two first-time acquirers can both pass the existence
			// check; the loser hits the unique index on the entry id.
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEntryLocked
			}
			return fmt.Errorf("failed to create lock: %w", err)
		}
		acquired = lock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &acquired, nil
}

// Release drops the lock held by the given user. Releasing a lock that
// is not held (or held by someone else) is a no-op.
func (s *EntryLockService) Release(entryID, userID uint) error {
	err := s.db.Where("kouden_entry_id = ? AND user_id = ?", entryID, userID).
		Delete(&models.EntryLock{}).Error
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Status returns the current unexpired lock on an entry, or nil when
// the entry is free.
func (s *EntryLockService) Status(entryID uint) (*models.EntryLock, error) {
	var lock models.EntryLock
	err := s.db.Preload("User").Where("kouden_entry_id = ?", entryID).First(&lock).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch lock: %w", err)
	}
	if lock.IsExpiredAt(s.now()) {
		return nil, nil
	}
	return &lock, nil
}

// ActiveLocks returns all unexpired locks in a ledger, keyed by entry
// id, for the "who is editing what" panel.
func (s *EntryLockService) ActiveLocks(koudenID uint) (map[uint]models.EntryLock, error) {
	var locks []models.EntryLock
	err := s.db.Preload("User").
		Joins("JOIN kouden_entries ON kouden_entries.id = entry_locks.kouden_entry_id").
		Where("kouden_entries.kouden_id = ? AND entry_locks.expires_at > ?", koudenID, s.now()).
		Find(&locks).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch locks: %w", err)
	}

	result := make(map[uint]models.EntryLock, len(locks))
	for _, l := range locks {
		result[l.KoudenEntryID] = l
	}
	return result, nil
}

// PurgeExpired deletes lock rows past their expiry and returns how
// many were removed. Run periodically by the worker so a crashed
// browser session cannot show an entry as "being edited" forever.
func (s *EntryLockService) PurgeExpired() (int64, error) {
	result := s.db.Where("expires_at <= ?", s.now()).Delete(&models.EntryLock{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge locks: %w", result.Error)
	}
	return result.RowsAffected, nil
}
