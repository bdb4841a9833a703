package tasks

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"kouden_app/internal/models"
	"kouden_app/internal/services"
)

// SendReturnReminderArgs defines the arguments for a reminder task
type SendReturnReminderArgs struct {
	KoudenID uint `json:"kouden_id"`
}

// SendReturnReminderTaskDef emails a ledger's owner the entries whose
// return gifts are still outstanding.
type SendReturnReminderTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendReturnReminderTaskDef) TaskID() string {
	return "send_return_reminder"
}

// CreateTask builds a ScheduledTask record for this task
func (t *SendReturnReminderTaskDef) CreateTask(args SendReturnReminderArgs, due time.Time, recurringInterval *string) (*models.ScheduledTask, error) {
	taskType := models.ScheduledTaskTypeOneTime
	if recurringInterval != nil {
		taskType = models.ScheduledTaskTypeRecurring
	}
	return BuildScheduledTask(t.TaskID(), args, due, recurringInterval, taskType, 3)
}

// HandleExecution collects pending-return entries and mails the owner
func (t *SendReturnReminderTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	koudenID, ok := uintArg(task.Arguments, "kouden_id")
	if !ok {
		return nil, fmt.Errorf("kouden_id not provided or invalid")
	}

	var kouden models.Kouden
	if err := db.Preload("Owner").First(&kouden, koudenID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch kouden: %w", err)
	}

	var pending []models.KoudenEntry
	err := db.Where("kouden_id = ? AND return_status IN ?", koudenID,
		[]models.ReturnStatus{models.ReturnStatusPending, models.ReturnStatusPartial}).
		Order("amount desc").
		Find(&pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending entries: %w", err)
	}

	if len(pending) == 0 {
		return map[string]interface{}{"status": "skipped", "message": "No pending returns"}, nil
	}

	if kouden.Owner.Email == "" {
		log.Printf("Skipping return reminder for kouden %d: owner has no email", koudenID)
		return map[string]interface{}{"status": "skipped", "message": "Owner has no email"}, nil
	}

	var lines []string
	for _, e := range pending {
		lines = append(lines, fmt.Sprintf("・%s (%d円, %s)", e.Name, e.Amount, e.ReturnStatus))
	}

	subject := fmt.Sprintf("「%s」返礼品の未対応一覧 (%d件)", kouden.Title, len(pending))
	body := fmt.Sprintf("香典帳「%s」で返礼品が未対応の記帳が%d件あります。\n\n%s\n", kouden.Title, len(pending), strings.Join(lines, "\n"))

	if err := services.NewEmailService().SendEmail([]string{kouden.Owner.Email}, subject, body); err != nil {
		return nil, fmt.Errorf("failed to send reminder: %w", err)
	}

	return map[string]interface{}{
		"status":        "success",
		"pending_count": len(pending),
		"recipient":     kouden.Owner.Email,
	}, nil
}

// SendReturnReminderTask is the singleton instance of SendReturnReminderTaskDef
var SendReturnReminderTask = &SendReturnReminderTaskDef{}
