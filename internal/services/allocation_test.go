package services

import (
	"errors"
	"testing"

	"kouden_app/internal/models"
)

func TestSplitEqual(t *testing.T) {
	tests := []struct {
		name     string
		price    int64
		n        int
		expected []int64
	}{
		{
			name:     "thousand across three",
			price:    1000,
			n:        3,
			expected: []int64{334, 333, 333},
		},
		{
			name:     "exact division",
			price:    1000,
			n:        4,
			expected: []int64{250, 250, 250, 250},
		},
		{
			name:     "single entry",
			price:    5000,
			n:        1,
			expected: []int64{5000},
		},
		{
			name:     "zero price",
			price:    0,
			n:        3,
			expected: []int64{0, 0, 0},
		},
		{
			name:     "price below count",
			price:    2,
			n:        5,
			expected: []int64{1, 1, 0, 0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares := SplitEqual(tt.price, tt.n)
			if len(shares) != len(tt.expected) {
				t.Fatalf("SplitEqual(%d, %d) returned %d shares; want %d", tt.price, tt.n, len(shares), len(tt.expected))
			}
			for i, s := range shares {
				if s != tt.expected[i] {
					t.Errorf("share[%d] = %d; want %d", i, s, tt.expected[i])
				}
			}
		})
	}
}

// The equal split must be exact for any price and entry count: shares
// sum to the price and differ pairwise by at most one yen.
func TestSplitEqualExactness(t *testing.T) {
	for price := int64(0); price <= 200; price++ {
		for n := 1; n <= 13; n++ {
			shares := SplitEqual(price, n)

			var sum, min, max int64
			min, max = shares[0], shares[0]
			for _, s := range shares {
				sum += s
				if s < min {
					min = s
				}
				if s > max {
					max = s
				}
			}

			if sum != price {
				t.Fatalf("SplitEqual(%d, %d): sum = %d; want %d", price, n, sum, price)
			}
			if max-min > 1 {
				t.Fatalf("SplitEqual(%d, %d): share spread = %d; want <= 1", price, n, max-min)
			}
		}
	}
}

func TestSplitEqualInvalidCount(t *testing.T) {
	if shares := SplitEqual(1000, 0); shares != nil {
		t.Errorf("SplitEqual(1000, 0) = %v; want nil", shares)
	}
	if shares := SplitEqual(1000, -2); shares != nil {
		t.Errorf("SplitEqual(1000, -2) = %v; want nil", shares)
	}
}

func TestBuildAllocationsEqual(t *testing.T) {
	offering := models.Offering{ID: 7, Price: 1000}
	req := AllocateRequest{
		OfferingID:     7,
		KoudenEntryIDs: []uint{11, 12, 13},
		Method:         models.AllocationMethodEqual,
	}

	allocations, err := BuildAllocations(offering, req)
	if err != nil {
		t.Fatalf("BuildAllocations returned error: %v", err)
	}
	if len(allocations) != 3 {
		t.Fatalf("got %d allocations; want 3", len(allocations))
	}

	var sum int64
	for _, a := range allocations {
		sum += a.AllocatedAmount
		if a.OfferingID != 7 {
			t.Errorf("allocation offering_id = %d; want 7", a.OfferingID)
		}
		if a.Method != models.AllocationMethodEqual {
			t.Errorf("allocation method = %s; want equal", a.Method)
		}
	}
	if sum != 1000 {
		t.Errorf("allocated sum = %d; want 1000", sum)
	}
	if allocations[0].AllocatedAmount != 334 {
		t.Errorf("first share = %d; want 334 (remainder goes to leading entries)", allocations[0].AllocatedAmount)
	}
}

func TestBuildAllocationsManualPassThrough(t *testing.T) {
	offering := models.Offering{ID: 3, Price: 1000}
	req := AllocateRequest{
		OfferingID:     3,
		KoudenEntryIDs: []uint{21, 22},
		Method:         models.AllocationMethodManual,
		ManualAmounts:  []int64{500, 500},
	}

	allocations, err := BuildAllocations(offering, req)
	if err != nil {
		t.Fatalf("BuildAllocations returned error: %v", err)
	}
	for i, want := range []int64{500, 500} {
		if allocations[i].AllocatedAmount != want {
			t.Errorf("allocation[%d] = %d; want %d (manual amounts are persisted verbatim)", i, allocations[i].AllocatedAmount, want)
		}
	}
}

// Manual amounts are not validated against the offering price; the
// mismatch surfaces later through the integrity check.
func TestBuildAllocationsManualMismatchedSumAccepted(t *testing.T) {
	offering := models.Offering{ID: 3, Price: 1000}
	req := AllocateRequest{
		OfferingID:     3,
		KoudenEntryIDs: []uint{21, 22},
		Method:         models.AllocationMethodManual,
		ManualAmounts:  []int64{400, 500},
	}

	allocations, err := BuildAllocations(offering, req)
	if err != nil {
		t.Fatalf("BuildAllocations returned error: %v", err)
	}

	report := VerifyAllocations(offering, allocations)
	if report.IsValid {
		t.Error("integrity report valid for drifted manual split; want invalid")
	}
	if report.AllocationDifference != 100 {
		t.Errorf("allocation_difference = %d; want 100", report.AllocationDifference)
	}
}

func TestBuildAllocationsManualLengthMismatch(t *testing.T) {
	offering := models.Offering{ID: 3, Price: 1000}
	req := AllocateRequest{
		OfferingID:     3,
		KoudenEntryIDs: []uint{21, 22, 23},
		Method:         models.AllocationMethodManual,
		ManualAmounts:  []int64{500, 500},
	}

	if _, err := BuildAllocations(offering, req); !errors.Is(err, ErrManualAmountsMismatch) {
		t.Errorf("err = %v; want ErrManualAmountsMismatch", err)
	}
}

func TestBuildAllocationsEmptyEntries(t *testing.T) {
	offering := models.Offering{ID: 3, Price: 1000}
	req := AllocateRequest{OfferingID: 3, Method: models.AllocationMethodEqual}

	if _, err := BuildAllocations(offering, req); !errors.Is(err, ErrNoTargetEntries) {
		t.Errorf("err = %v; want ErrNoTargetEntries", err)
	}
}

func TestBuildAllocationsWeightedReserved(t *testing.T) {
	offering := models.Offering{ID: 3, Price: 1000}
	req := AllocateRequest{
		OfferingID:     3,
		KoudenEntryIDs: []uint{21},
		Method:         models.AllocationMethodWeighted,
	}

	if _, err := BuildAllocations(offering, req); !errors.Is(err, ErrMethodNotSupported) {
		t.Errorf("err = %v; want ErrMethodNotSupported", err)
	}
}

func TestBuildAllocationsPrimaryContributor(t *testing.T) {
	offering := models.Offering{ID: 9, Price: 900}

	primary := func(allocations []models.OfferingAllocation) []uint {
		var ids []uint
		for _, a := range allocations {
			if a.IsPrimaryContributor {
				ids = append(ids, a.KoudenEntryID)
			}
		}
		return ids
	}

	t.Run("defaults to first entry", func(t *testing.T) {
		req := AllocateRequest{
			OfferingID:     9,
			KoudenEntryIDs: []uint{31, 32, 33},
			Method:         models.AllocationMethodEqual,
		}
		allocations, err := BuildAllocations(offering, req)
		if err != nil {
			t.Fatalf("BuildAllocations returned error: %v", err)
		}
		ids := primary(allocations)
		if len(ids) != 1 || ids[0] != 31 {
			t.Errorf("primary contributors = %v; want [31]", ids)
		}
	})

	t.Run("explicit id wins", func(t *testing.T) {
		id := uint(33)
		req := AllocateRequest{
			OfferingID:           9,
			KoudenEntryIDs:       []uint{31, 32, 33},
			Method:               models.AllocationMethodEqual,
			PrimaryContributorID: &id,
		}
		allocations, err := BuildAllocations(offering, req)
		if err != nil {
			t.Fatalf("BuildAllocations returned error: %v", err)
		}
		ids := primary(allocations)
		if len(ids) != 1 || ids[0] != 33 {
			t.Errorf("primary contributors = %v; want [33]", ids)
		}
	})

	t.Run("unknown explicit id falls back to first", func(t *testing.T) {
		id := uint(99)
		req := AllocateRequest{
			OfferingID:           9,
			KoudenEntryIDs:       []uint{31, 32},
			Method:               models.AllocationMethodEqual,
			PrimaryContributorID: &id,
		}
		allocations, err := BuildAllocations(offering, req)
		if err != nil {
			t.Fatalf("BuildAllocations returned error: %v", err)
		}
		ids := primary(allocations)
		if len(ids) != 1 || ids[0] != 31 {
			t.Errorf("primary contributors = %v; want [31]", ids)
		}
	})
}

func TestVerifyAllocations(t *testing.T) {
	tests := []struct {
		name      string
		price     int64
		amounts   []int64
		ratios    []float64
		wantValid bool
		wantDiff  int64
	}{
		{
			name:      "exact split",
			price:     1000,
			amounts:   []int64{334, 333, 333},
			ratios:    []float64{0.334, 0.333, 0.333},
			wantValid: true,
			wantDiff:  0,
		},
		{
			name:      "five yen short",
			price:     1000,
			amounts:   []int64{500, 495},
			ratios:    []float64{0.5, 0.495},
			wantValid: false,
			wantDiff:  5,
		},
		{
			name:      "over-allocated",
			price:     1000,
			amounts:   []int64{600, 500},
			ratios:    []float64{0.6, 0.5},
			wantValid: false,
			wantDiff:  -100,
		},
		{
			name:      "one yen rounding drift tolerated",
			price:     1000,
			amounts:   []int64{500, 499},
			ratios:    []float64{0.5, 0.499},
			wantValid: true,
			wantDiff:  1,
		},
		{
			name:      "amount ok but ratios drifted",
			price:     1000,
			amounts:   []int64{500, 500},
			ratios:    []float64{0.5, 0.4},
			wantValid: false,
			wantDiff:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			offering := models.Offering{ID: 1, Price: tt.price}
			allocations := make([]models.OfferingAllocation, len(tt.amounts))
			for i := range tt.amounts {
				allocations[i] = models.OfferingAllocation{
					OfferingID:      1,
					AllocatedAmount: tt.amounts[i],
					AllocationRatio: tt.ratios[i],
				}
			}

			report := VerifyAllocations(offering, allocations)
			if report.IsValid != tt.wantValid {
				t.Errorf("is_valid = %v; want %v", report.IsValid, tt.wantValid)
			}
			if report.AllocationDifference != tt.wantDiff {
				t.Errorf("allocation_difference = %d; want %d", report.AllocationDifference, tt.wantDiff)
			}
		})
	}
}

func TestVerifyAllocationsRatioSumFromEqualSplit(t *testing.T) {
	offering := models.Offering{ID: 2, Price: 1000}
	req := AllocateRequest{
		OfferingID:     2,
		KoudenEntryIDs: []uint{1, 2, 3},
		Method:         models.AllocationMethodEqual,
	}

	allocations, err := BuildAllocations(offering, req)
	if err != nil {
		t.Fatalf("BuildAllocations returned error: %v", err)
	}

	report := VerifyAllocations(offering, allocations)
	if !report.IsValid {
		t.Errorf("equal split reported invalid: diff=%d ratio_sum=%f", report.AllocationDifference, report.RatioSum)
	}
}
