package services

import (
	"errors"
	"fmt"
	"math"

	"gorm.io/gorm"

	"kouden_app/internal/models"
)

var (
	// ErrNoTargetEntries is returned when an allocation request names no entries.
	ErrNoTargetEntries = errors.New("allocation requires at least one target entry")
	// ErrMethodNotSupported is returned for the reserved weighted method.
	ErrMethodNotSupported = errors.New("allocation method not supported")
	// ErrManualAmountsMismatch is returned when manual amounts don't align with entries.
	ErrManualAmountsMismatch = errors.New("manual amounts must align with target entries")
)

// Tolerances for the integrity check. Amounts are whole yen, so one
// unit of drift is accepted; ratios accumulate float error.
const (
	amountTolerance = 1
	ratioTolerance  = 0.01
)

// AllocateRequest describes one allocation save. Entry order matters:
// the equal split hands remainder yen to the leading entries, and the
// first entry becomes primary contributor unless one is named.
type AllocateRequest struct {
	OfferingID           uint                    `json:"offering_id"`
	KoudenEntryIDs       []uint                  `json:"kouden_entry_ids"`
	Method               models.AllocationMethod `json:"method"`
	ManualAmounts        []int64                 `json:"manual_amounts,omitempty"`
	PrimaryContributorID *uint                   `json:"primary_contributor_id,omitempty"`
}

// EntryTotal is the aggregate view of one entry's value.
type EntryTotal struct {
	EntryAmount     int64 `json:"entry_amount"`
	OfferingTotal   int64 `json:"offering_total"`
	CalculatedTotal int64 `json:"calculated_total"`
}

// IntegrityReport is the result of a post-hoc allocation check. It is
// diagnostic only; drift must be corrected by re-saving the allocation.
type IntegrityReport struct {
	OfferingID           uint    `json:"offering_id"`
	IsValid              bool    `json:"is_valid"`
	AllocationDifference int64   `json:"allocation_difference"`
	RatioSum             float64 `json:"ratio_sum"`
}

// SplitEqual divides price into n whole-yen shares. The remainder of
// the floor division goes one yen at a time to the leading positions,
// so the shares always sum to exactly price and no two shares differ
// by more than one yen.
func SplitEqual(price int64, n int) []int64 {
	if n <= 0 {
		return nil
	}
	base := price / int64(n)
	remainder := price % int64(n)

	shares := make([]int64, n)
	for i := range shares {
		shares[i] = base
		if int64(i) < remainder {
			shares[i]++
		}
	}
	return shares
}

// BuildAllocations computes the allocation rows for an offering
// without touching the database.
func BuildAllocations(offering models.Offering, req AllocateRequest) ([]models.OfferingAllocation, error) {
	if len(req.KoudenEntryIDs) == 0 {
		return nil, ErrNoTargetEntries
	}

	var amounts []int64
	switch req.Method {
	case models.AllocationMethodEqual:
		amounts = SplitEqual(offering.Price, len(req.KoudenEntryIDs))
	case models.AllocationMethodManual:
		// Manual amounts are persisted as given. The caller owns the
		// sum; the integrity check reports any drift afterwards.
		if len(req.ManualAmounts) != len(req.KoudenEntryIDs) {
			return nil, ErrManualAmountsMismatch
		}
		amounts = req.ManualAmounts
	case models.AllocationMethodWeighted:
		return nil, fmt.Errorf("%w: weighted", ErrMethodNotSupported)
	default:
		return nil, fmt.Errorf("%w: %s", ErrMethodNotSupported, req.Method)
	}

	primaryID := req.KoudenEntryIDs[0]
	if req.PrimaryContributorID != nil {
		for _, id := range req.KoudenEntryIDs {
			if id == *req.PrimaryContributorID {
				primaryID = id
				break
			}
		}
	}

	allocations := make([]models.OfferingAllocation, 0, len(req.KoudenEntryIDs))
	for i, entryID := range req.KoudenEntryIDs {
		ratio := 0.0
		if offering.Price > 0 {
			ratio = float64(amounts[i]) / float64(offering.Price)
		}
		allocations = append(allocations, models.OfferingAllocation{
			OfferingID:           offering.ID,
			KoudenEntryID:        entryID,
			AllocatedAmount:      amounts[i],
			AllocationRatio:      ratio,
			IsPrimaryContributor: entryID == primaryID,
			Method:               req.Method,
		})
	}
	return allocations, nil
}

// AllocationService persists and reads offering allocations.
type AllocationService struct {
	db *gorm.DB
}

func NewAllocationService(db *gorm.DB) *AllocationService {
	return &AllocationService{db: db}
}

// Allocate replaces the allocation set for an offering. A save is a
// full replace, not an incremental update: stale rows from a previous
// entry selection must not survive.
func (s *AllocationService) Allocate(req AllocateRequest) error {
	var offering models.Offering
	if err := s.db.First(&offering, req.OfferingID).Error; err != nil {
		return fmt.Errorf("failed to fetch offering: %w", err)
	}

	allocations, err := BuildAllocations(offering, req)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("offering_id = ?", offering.ID).Delete(&models.OfferingAllocation{}).Error; err != nil {
			return fmt.Errorf("failed to clear previous allocations: %w", err)
		}
		if err := tx.Create(&allocations).Error; err != nil {
			return fmt.Errorf("failed to create allocations: %w", err)
		}
		return nil
	})
}

// Recalculate reapplies a method over the entries currently associated
// with the offering, in ascending entry-id order. Useful after the
// entry membership of a ledger changed.
func (s *AllocationService) Recalculate(offeringID uint, method models.AllocationMethod, manualAmounts []int64) error {
	var existing []models.OfferingAllocation
	if err := s.db.Where("offering_id = ?", offeringID).Order("kouden_entry_id asc").Find(&existing).Error; err != nil {
		return fmt.Errorf("failed to fetch allocations: %w", err)
	}
	if len(existing) == 0 {
		return ErrNoTargetEntries
	}

	req := AllocateRequest{
		OfferingID:     offeringID,
		KoudenEntryIDs: make([]uint, 0, len(existing)),
		Method:         method,
		ManualAmounts:  manualAmounts,
	}
	for _, a := range existing {
		req.KoudenEntryIDs = append(req.KoudenEntryIDs, a.KoudenEntryID)
		if a.IsPrimaryContributor {
			id := a.KoudenEntryID
			req.PrimaryContributorID = &id
		}
	}

	return s.Allocate(req)
}

// GetOfferingAllocations returns the persisted allocation rows for an
// offering with their entries preloaded.
func (s *AllocationService) GetOfferingAllocations(offeringID uint) ([]models.OfferingAllocation, error) {
	var allocations []models.OfferingAllocation
	err := s.db.Preload("KoudenEntry").
		Where("offering_id = ?", offeringID).
		Order("kouden_entry_id asc").
		Find(&allocations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch allocations: %w", err)
	}
	return allocations, nil
}

// EntryTotalAmount returns the entry's ledger amount plus the sum of
// offering shares allocated to it. The entry must belong to the given
// ledger.
func (s *AllocationService) EntryTotalAmount(koudenID, entryID uint) (*EntryTotal, error) {
	var entry models.KoudenEntry
	if err := s.db.Where("kouden_id = ?", koudenID).First(&entry, entryID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch entry: %w", err)
	}

	var offeringTotal int64
	err := s.db.Model(&models.OfferingAllocation{}).
		Where("kouden_entry_id = ?", entryID).
		Select("COALESCE(SUM(allocated_amount), 0)").
		Scan(&offeringTotal).Error
	if err != nil {
		return nil, fmt.Errorf("failed to sum allocations: %w", err)
	}

	return &EntryTotal{
		EntryAmount:     entry.Amount,
		OfferingTotal:   offeringTotal,
		CalculatedTotal: entry.Amount + offeringTotal,
	}, nil
}

// CheckIntegrity verifies that the persisted allocation amounts sum to
// the offering price and the ratios sum to 1. It never repairs drift.
func (s *AllocationService) CheckIntegrity(offeringID uint) (*IntegrityReport, error) {
	var offering models.Offering
	if err := s.db.First(&offering, offeringID).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch offering: %w", err)
	}

	var allocations []models.OfferingAllocation
	if err := s.db.Where("offering_id = ?", offeringID).Find(&allocations).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch allocations: %w", err)
	}

	return VerifyAllocations(offering, allocations), nil
}

// VerifyAllocations is the pure form of the integrity check.
func VerifyAllocations(offering models.Offering, allocations []models.OfferingAllocation) *IntegrityReport {
	var allocatedSum int64
	var ratioSum float64
	for _, a := range allocations {
		allocatedSum += a.AllocatedAmount
		ratioSum += a.AllocationRatio
	}

	diff := offering.Price - allocatedSum

	valid := diff >= -amountTolerance && diff <= amountTolerance &&
		math.Abs(ratioSum-1.0) <= ratioTolerance
	// An offering with no allocations at all is not "drifted", it is
	// simply unallocated.
	if len(allocations) == 0 {
		valid = offering.Price == 0
	}

	return &IntegrityReport{
		OfferingID:           offering.ID,
		IsValid:              valid,
		AllocationDifference: diff,
		RatioSum:             ratioSum,
	}
}
