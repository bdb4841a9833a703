package services

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"kouden_app/internal/models"
)

func TestEntryLockIsExpiredAt(t *testing.T) {
	lockedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	lock := models.EntryLock{
		KoudenEntryID: 1,
		UserID:        2,
		LockedAt:      lockedAt,
		ExpiresAt:     lockedAt.Add(models.EntryLockTTL),
	}

	tests := []struct {
		name    string
		at      time.Time
		expired bool
	}{
		{"just locked", lockedAt, false},
		{"one second before expiry", lockedAt.Add(models.EntryLockTTL - time.Second), false},
		{"exactly at expiry", lockedAt.Add(models.EntryLockTTL), false},
		{"one second past expiry", lockedAt.Add(models.EntryLockTTL + time.Second), true},
		{"long after expiry", lockedAt.Add(time.Hour), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lock.IsExpiredAt(tt.at); got != tt.expired {
				t.Errorf("IsExpiredAt(%v) = %v; want %v", tt.at, got, tt.expired)
			}
		})
	}
}

func TestEntryLockTTL(t *testing.T) {
	// The advisory lock window is five minutes; a longer edit session
	// silently loses its lock.
	if models.EntryLockTTL != 5*time.Minute {
		t.Errorf("EntryLockTTL = %v; want 5m", models.EntryLockTTL)
	}
}

func TestAcquireContention(t *testing.T) {
	db := newTestDB(t)
	_, entries := seedLedger(t, db, 1)
	svc := NewEntryLockService(db)

	if _, err := svc.Acquire(entries[0].ID, 1); err != nil {
		t.Fatalf("first Acquire returned error: %v", err)
	}

	if _, err := svc.Acquire(entries[0].ID, 2); !errors.Is(err, ErrEntryLocked) {
		t.Errorf("competing Acquire err = %v; want ErrEntryLocked", err)
	}

	// The holder may re-acquire to refresh the expiry.
	if _, err := svc.Acquire(entries[0].ID, 1); err != nil {
		t.Errorf("holder re-acquire returned error: %v", err)
	}

	if err := svc.Release(entries[0].ID, 1); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if _, err := svc.Acquire(entries[0].ID, 2); err != nil {
		t.Errorf("Acquire after release returned error: %v", err)
	}
}

func TestAcquireTakesOverExpiredLock(t *testing.T) {
	db := newTestDB(t)
	_, entries := seedLedger(t, db, 1)

	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc := &EntryLockService{db: db, now: func() time.Time { return current }}

	if _, err := svc.Acquire(entries[0].ID, 1); err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}

	current = current.Add(models.EntryLockTTL + time.Second)

	lock, err := svc.Acquire(entries[0].ID, 2)
	if err != nil {
		t.Fatalf("Acquire over expired lock returned error: %v", err)
	}
	if lock.UserID != 2 {
		t.Errorf("lock holder = %d; want 2", lock.UserID)
	}

	if got, err := svc.Status(entries[0].ID); err != nil || got == nil || got.UserID != 2 {
		t.Errorf("Status = %+v, %v; want holder 2", got, err)
	}
}

// A second lock row for the same entry must be rejected by the unique
// index and surface as the translated duplicate-key error. Acquire maps
// that onto ErrEntryLocked when two first-time acquirers race.
func TestEntryLockUniquePerEntry(t *testing.T) {
	db := newTestDB(t)
	_, entries := seedLedger(t, db, 1)

	now := time.Now()
	first := models.EntryLock{KoudenEntryID: entries[0].ID, UserID: 1, LockedAt: now, ExpiresAt: now.Add(models.EntryLockTTL)}
	if err := db.Create(&first).Error; err != nil {
		t.Fatalf("failed to create lock: %v", err)
	}

	second := models.EntryLock{KoudenEntryID: entries[0].ID, UserID: 2, LockedAt: now, ExpiresAt: now.Add(models.EntryLockTTL)}
	if err := db.Create(&second).Error; !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("duplicate lock insert err = %v; want gorm.ErrDuplicatedKey", err)
	}
}
