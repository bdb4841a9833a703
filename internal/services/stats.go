package services

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kouden_app/internal/models"
)

// KoudenSummary is the dashboard aggregate for one ledger. Total is
// the plain ledger sum; TotalWithAllocations additionally folds in the
// offering shares allocated to each entry.
type KoudenSummary struct {
	KoudenID             uint             `json:"kouden_id"`
	EntryCount           int64            `json:"entry_count"`
	OfferingCount        int64            `json:"offering_count"`
	TelegramCount        int64            `json:"telegram_count"`
	TotalAmount          int64            `json:"total_amount"`
	AllocatedTotal       int64            `json:"allocated_total"`
	TotalWithAllocations int64            `json:"total_with_allocations"`
	AttendanceBreakdown  map[string]int64 `json:"attendance_breakdown"`
	ReturnBreakdown      map[string]int64 `json:"return_breakdown"`
}

// StatsService computes ledger aggregates. Summaries are cached
// briefly in Redis since the dashboard polls them.
type StatsService struct {
	db    *gorm.DB
	cache *RedisCache
}

func NewStatsService(db *gorm.DB, cache *RedisCache) *StatsService {
	return &StatsService{db: db, cache: cache}
}

const summaryCacheTTL = time.Minute

// Summary computes the dashboard aggregate for a ledger. Allocation
// totals are summed in one grouped query rather than one round trip
// per entry.
func (s *StatsService) Summary(ctx context.Context, koudenID uint) (*KoudenSummary, error) {
	if s.cache == nil {
		return s.computeSummary(koudenID)
	}

	key := fmt.Sprintf("kouden:summary:%d", koudenID)
	summary, err := GetOrSet(s.cache, ctx, key, summaryCacheTTL, func() (*KoudenSummary, error) {
		return s.computeSummary(koudenID)
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// InvalidateSummary drops the cached summary after a write.
func (s *StatsService) InvalidateSummary(ctx context.Context, koudenID uint) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, fmt.Sprintf("kouden:summary:%d", koudenID))
}

func (s *StatsService) computeSummary(koudenID uint) (*KoudenSummary, error) {
	summary := &KoudenSummary{
		KoudenID:            koudenID,
		AttendanceBreakdown: make(map[string]int64),
		ReturnBreakdown:     make(map[string]int64),
	}

	if err := s.db.Model(&models.KoudenEntry{}).Where("kouden_id = ?", koudenID).Count(&summary.EntryCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}
	if err := s.db.Model(&models.KoudenEntry{}).Where("kouden_id = ?", koudenID).
		Select("COALESCE(SUM(amount), 0)").Scan(&summary.TotalAmount).Error; err != nil {
		return nil, fmt.Errorf("failed to sum entry amounts: %w", err)
	}

	err := s.db.Model(&models.OfferingAllocation{}).
		Joins("JOIN kouden_entries ON kouden_entries.id = offering_allocations.kouden_entry_id").
		Where("kouden_entries.kouden_id = ? AND kouden_entries.deleted_at IS NULL", koudenID).
		Select("COALESCE(SUM(offering_allocations.allocated_amount), 0)").
		Scan(&summary.AllocatedTotal).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum allocations: %w", err)
	}
	summary.TotalWithAllocations = summary.TotalAmount + summary.AllocatedTotal

	if err := s.db.Model(&models.Offering{}).Where("kouden_id = ?", koudenID).Count(&summary.OfferingCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count offerings: %w", err)
	}
	if err := s.db.Model(&models.Telegram{}).Where("kouden_id = ?", koudenID).Count(&summary.TelegramCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count telegrams: %w", err)
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var attendance []bucket
	err = s.db.Model(&models.KoudenEntry{}).
		Where("kouden_id = ?", koudenID).
		Select("attendance as key, COUNT(*) as count").
		Group("attendance").
		Scan(&attendance).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group attendance: %w", err)
	}
	for _, b := range attendance {
		summary.AttendanceBreakdown[b.Key] = b.Count
	}

	var returns []bucket
	err = s.db.Model(&models.KoudenEntry{}).
		Where("kouden_id = ?", koudenID).
		Select("return_status as key, COUNT(*) as count").
		Group("return_status").
		Scan(&returns).Error
	if err != nil {
		return nil, fmt.Errorf("failed to group return status: %w", err)
	}
	for _, b := range returns {
		summary.ReturnBreakdown[b.Key] = b.Count
	}

	return summary, nil
}
