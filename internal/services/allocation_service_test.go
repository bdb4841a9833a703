package services

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kouden_app/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedLedger(t *testing.T, db *gorm.DB, entryCount int) (models.Kouden, []models.KoudenEntry) {
	t.Helper()

	kouden := models.Kouden{Title: "葬儀", Status: models.KoudenStatusActive, OwnerID: 1}
	if err := db.Create(&kouden).Error; err != nil {
		t.Fatalf("failed to seed kouden: %v", err)
	}

	entries := make([]models.KoudenEntry, entryCount)
	for i := range entries {
		entries[i] = models.KoudenEntry{KoudenID: kouden.ID, Name: "田中", Amount: 5000, Version: 1}
		if err := db.Create(&entries[i]).Error; err != nil {
			t.Fatalf("failed to seed entry: %v", err)
		}
	}
	return kouden, entries
}

// A re-allocation must leave only the new set. The previous rows are
// hard-deleted; a soft delete would leave tombstones colliding with
// the unique (offering, entry) index on re-insert.
func TestAllocateReplacesPreviousRows(t *testing.T) {
	db := newTestDB(t)
	kouden, entries := seedLedger(t, db, 3)

	offering := models.Offering{KoudenID: kouden.ID, Type: models.OfferingTypeFlower, Price: 1000}
	if err := db.Create(&offering).Error; err != nil {
		t.Fatalf("failed to seed offering: %v", err)
	}

	svc := NewAllocationService(db)

	err := svc.Allocate(AllocateRequest{
		OfferingID:     offering.ID,
		KoudenEntryIDs: []uint{entries[0].ID, entries[1].ID, entries[2].ID},
		Method:         models.AllocationMethodEqual,
	})
	if err != nil {
		t.Fatalf("first Allocate returned error: %v", err)
	}

	// Re-allocate to a smaller entry set, including an entry that was
	// already allocated. This collides with the old rows unless they
	// were removed for real.
	err = svc.Allocate(AllocateRequest{
		OfferingID:     offering.ID,
		KoudenEntryIDs: []uint{entries[0].ID, entries[1].ID},
		Method:         models.AllocationMethodEqual,
	})
	if err != nil {
		t.Fatalf("second Allocate returned error: %v", err)
	}

	var rows []models.OfferingAllocation
	if err := db.Where("offering_id = ?", offering.ID).Find(&rows).Error; err != nil {
		t.Fatalf("failed to fetch allocations: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d allocation rows after replace; want 2", len(rows))
	}

	var sum int64
	for _, r := range rows {
		sum += r.AllocatedAmount
		if r.KoudenEntryID == entries[2].ID {
			t.Errorf("stale allocation for entry %d survived the replace", entries[2].ID)
		}
	}
	if sum != offering.Price {
		t.Errorf("allocated sum = %d; want %d", sum, offering.Price)
	}

	var total int64
	if err := db.Unscoped().Model(&models.OfferingAllocation{}).Where("offering_id = ?", offering.ID).Count(&total).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if total != 2 {
		t.Errorf("found %d rows including tombstones; want 2 (previous set hard-deleted)", total)
	}
}

func TestEntryTotalAmount(t *testing.T) {
	db := newTestDB(t)
	kouden, entries := seedLedger(t, db, 2)

	flower := models.Offering{KoudenID: kouden.ID, Type: models.OfferingTypeFlower, Price: 600}
	incense := models.Offering{KoudenID: kouden.ID, Type: models.OfferingTypeIncense, Price: 400}
	for _, o := range []*models.Offering{&flower, &incense} {
		if err := db.Create(o).Error; err != nil {
			t.Fatalf("failed to seed offering: %v", err)
		}
	}

	svc := NewAllocationService(db)
	for _, o := range []models.Offering{flower, incense} {
		err := svc.Allocate(AllocateRequest{
			OfferingID:     o.ID,
			KoudenEntryIDs: []uint{entries[0].ID, entries[1].ID},
			Method:         models.AllocationMethodEqual,
		})
		if err != nil {
			t.Fatalf("Allocate returned error: %v", err)
		}
	}

	total, err := svc.EntryTotalAmount(kouden.ID, entries[0].ID)
	if err != nil {
		t.Fatalf("EntryTotalAmount returned error: %v", err)
	}
	if total.EntryAmount != 5000 {
		t.Errorf("entry_amount = %d; want 5000", total.EntryAmount)
	}
	if total.OfferingTotal != 500 {
		t.Errorf("offering_total = %d; want 500 (300 + 200)", total.OfferingTotal)
	}
	if total.CalculatedTotal != 5500 {
		t.Errorf("calculated_total = %d; want 5500", total.CalculatedTotal)
	}

	// The entry is invisible through another ledger's id.
	if _, err := svc.EntryTotalAmount(kouden.ID+1, entries[0].ID); err == nil {
		t.Error("EntryTotalAmount resolved an entry through a foreign kouden id; want error")
	}
}
