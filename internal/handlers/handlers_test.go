package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"kouden_app/internal/models"
	"kouden_app/internal/services"
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
	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func seedKouden(t *testing.T, db *gorm.DB, title string) models.Kouden {
	t.Helper()

	kouden := models.Kouden{Title: title, Status: models.KoudenStatusActive, OwnerID: 1}
	if err := db.Create(&kouden).Error; err != nil {
		t.Fatalf("failed to seed kouden: %v", err)
	}
	return kouden
}

func newJSONContext(t *testing.T, method, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

// A member of one ledger must not be able to rewrite another ledger's
// offering by guessing its id: the row is a 404 through a foreign
// ledger context.
func TestUpdateOfferingScopedToLedger(t *testing.T) {
	db := newTestDB(t)
	mine := seedKouden(t, db, "自分の香典帳")
	other := seedKouden(t, db, "他人の香典帳")

	offering := models.Offering{KoudenID: other.ID, Type: models.OfferingTypeFlower, Price: 10000}
	if err := db.Create(&offering).Error; err != nil {
		t.Fatalf("failed to seed offering: %v", err)
	}

	h := NewOfferingHandler(db, services.NewAllocationService(db), services.NewStatsService(db, nil))

	c, rec := newJSONContext(t, http.MethodPut, `{"price":1,"description":"changed"}`)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(offering.ID))
	c.Set("koudenID", mine.ID)

	if err := h.UpdateOffering(c); err != nil {
		t.Fatalf("UpdateOffering returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-ledger update status = %d; want 404", rec.Code)
	}

	var reloaded models.Offering
	if err := db.First(&reloaded, offering.ID).Error; err != nil {
		t.Fatalf("failed to reload offering: %v", err)
	}
	if reloaded.Price != 10000 {
		t.Errorf("offering price = %d after cross-ledger update; want 10000 untouched", reloaded.Price)
	}

	// The owning ledger's context still works.
	c, rec = newJSONContext(t, http.MethodPut, `{"price":1,"description":"changed"}`)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(offering.ID))
	c.Set("koudenID", other.ID)

	if err := h.UpdateOffering(c); err != nil {
		t.Fatalf("UpdateOffering returned error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("same-ledger update status = %d; want 200", rec.Code)
	}
}

func TestEntryEndpointsScopedToLedger(t *testing.T) {
	db := newTestDB(t)
	mine := seedKouden(t, db, "自分の香典帳")
	other := seedKouden(t, db, "他人の香典帳")

	entry := models.KoudenEntry{KoudenID: other.ID, Name: "佐藤", Amount: 30000, Version: 1}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}

	h := NewEntryHandler(db, services.NewEntryLockService(db), services.NewStatsService(db, nil))

	calls := []struct {
		name   string
		invoke func(echo.Context) error
		method string
		body   string
	}{
		{"get", h.GetEntry, http.MethodGet, ""},
		{"update", h.UpdateEntry, http.MethodPut, `{"name":"改竄","amount":1}`},
		{"delete", h.DeleteEntry, http.MethodDelete, ""},
		{"acquire lock", h.AcquireLock, http.MethodPost, ""},
		{"release lock", h.ReleaseLock, http.MethodDelete, ""},
		{"lock status", h.LockStatus, http.MethodGet, ""},
	}

	for _, tt := range calls {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newJSONContext(t, tt.method, tt.body)
			c.SetParamNames("id")
			c.SetParamValues(fmt.Sprint(entry.ID))
			c.Set("koudenID", mine.ID)
			c.Set("userID", uint(1))

			if err := tt.invoke(c); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if rec.Code != http.StatusNotFound {
				t.Errorf("cross-ledger %s status = %d; want 404", tt.name, rec.Code)
			}
		})
	}

	var reloaded models.KoudenEntry
	if err := db.First(&reloaded, entry.ID).Error; err != nil {
		t.Fatalf("entry was deleted through a foreign ledger context: %v", err)
	}
	if reloaded.Amount != 30000 {
		t.Errorf("entry amount = %d; want 30000 untouched", reloaded.Amount)
	}
}

func TestReturnItemScopedToLedger(t *testing.T) {
	db := newTestDB(t)
	mine := seedKouden(t, db, "自分の香典帳")
	other := seedKouden(t, db, "他人の香典帳")

	entry := models.KoudenEntry{KoudenID: other.ID, Name: "鈴木", Amount: 10000, Version: 1}
	if err := db.Create(&entry).Error; err != nil {
		t.Fatalf("failed to seed entry: %v", err)
	}
	item := models.ReturnItem{KoudenEntryID: entry.ID, Name: "お茶", Price: 3000, Quantity: 1}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to seed return item: %v", err)
	}

	h := NewReturnHandler(db)

	c, rec := newJSONContext(t, http.MethodPut, `{"name":"改竄","price":1}`)
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(item.ID))
	c.Set("koudenID", mine.ID)

	if err := h.UpdateReturnItem(c); err != nil {
		t.Fatalf("UpdateReturnItem returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-ledger return item update status = %d; want 404", rec.Code)
	}

	c, rec = newJSONContext(t, http.MethodPost, "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(item.ID))
	c.Set("koudenID", mine.ID)

	if err := h.MarkReturnItemSent(c); err != nil {
		t.Fatalf("MarkReturnItemSent returned error: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("cross-ledger mark-sent status = %d; want 404", rec.Code)
	}

	var reloaded models.ReturnItem
	if err := db.First(&reloaded, item.ID).Error; err != nil {
		t.Fatalf("failed to reload return item: %v", err)
	}
	if reloaded.Name != "お茶" || reloaded.IsSent {
		t.Errorf("return item mutated through a foreign ledger context: %+v", reloaded)
	}
}

func TestConsumeInvitationUse(t *testing.T) {
	db := newTestDB(t)
	kouden := seedKouden(t, db, "香典帳")

	invitation := models.KoudenInvitation{
		KoudenID:  kouden.ID,
		Token:     "test-token",
		Role:      models.MemberRoleViewer,
		ExpiresAt: time.Now().Add(time.Hour),
		MaxUses:   1,
		Status:    models.InvitationStatusActive,
	}
	if err := db.Create(&invitation).Error; err != nil {
		t.Fatalf("failed to seed invitation: %v", err)
	}

	if err := consumeInvitationUse(db, invitation.ID); err != nil {
		t.Fatalf("first consume returned error: %v", err)
	}

	// The second claim of a one-use link loses, even though a stale
	// pre-check may have passed.
	if err := consumeInvitationUse(db, invitation.ID); !errors.Is(err, errInvitationExhausted) {
		t.Errorf("second consume err = %v; want errInvitationExhausted", err)
	}

	var reloaded models.KoudenInvitation
	if err := db.First(&reloaded, invitation.ID).Error; err != nil {
		t.Fatalf("failed to reload invitation: %v", err)
	}
	if reloaded.UsedCount != 1 {
		t.Errorf("used_count = %d; want 1", reloaded.UsedCount)
	}

	// Unlimited links never exhaust.
	unlimited := models.KoudenInvitation{
		KoudenID:  kouden.ID,
		Token:     "unlimited-token",
		Role:      models.MemberRoleViewer,
		ExpiresAt: time.Now().Add(time.Hour),
		MaxUses:   0,
		UsedCount: 100,
		Status:    models.InvitationStatusActive,
	}
	if err := db.Create(&unlimited).Error; err != nil {
		t.Fatalf("failed to seed invitation: %v", err)
	}
	if err := consumeInvitationUse(db, unlimited.ID); err != nil {
		t.Errorf("unlimited consume returned error: %v", err)
	}
}
