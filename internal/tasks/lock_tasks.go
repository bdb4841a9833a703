package tasks

import (
	"context"
	"log"

	"gorm.io/gorm"

	"kouden_app/internal/models"
	"kouden_app/internal/services"
)

// PurgeEntryLocksTaskDef removes advisory edit locks past their
// expiry. Without it a crashed browser session would leave its entry
// marked as "being edited" indefinitely.
type PurgeEntryLocksTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *PurgeEntryLocksTaskDef) TaskID() string {
	return "purge_entry_locks"
}

// CreateTask builds the recurring ScheduledTask record for this task
func (t *PurgeEntryLocksTaskDef) CreateTask() (*models.ScheduledTask, error) {
	// Every 10 minutes; twice the lock TTL is more than fresh enough
	// for an advisory signal.
	interval := "FREQ=MINUTELY;INTERVAL=10"
	task, err := BuildScheduledTask(t.TaskID(), map[string]interface{}{}, timeNow(), &interval, models.ScheduledTaskTypeRecurring, 1)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// HandleExecution deletes all expired lock rows
func (t *PurgeEntryLocksTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	purged, err := services.NewEntryLockService(db).PurgeExpired()
	if err != nil {
		return nil, err
	}

	if purged > 0 {
		log.Printf("[Task: purge_entry_locks] Removed %d expired locks", purged)
	}

	return map[string]interface{}{
		"status": "success",
		"purged": purged,
	}, nil
}

// PurgeEntryLocksTask is the singleton instance of PurgeEntryLocksTaskDef
var PurgeEntryLocksTask = &PurgeEntryLocksTaskDef{}
