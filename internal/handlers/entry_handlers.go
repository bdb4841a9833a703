package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
	"kouden_app/internal/services"
)

type EntryHandler struct {
	db    *gorm.DB
	locks *services.EntryLockService
	stats *services.StatsService
}

func NewEntryHandler(db *gorm.DB, locks *services.EntryLockService, stats *services.StatsService) *EntryHandler {
	return &EntryHandler{db: db, locks: locks, stats: stats}
}

type entryRequest struct {
	Name         string                `json:"name"`
	Organization string                `json:"organization"`
	Position     string                `json:"position"`
	Amount       int64                 `json:"amount"`
	PostalCode   string                `json:"postal_code"`
	Address      string                `json:"address"`
	PhoneNumber  string                `json:"phone_number"`
	Attendance   models.AttendanceType `json:"attendance"`
	HasOffering  bool                  `json:"has_offering"`
	ReturnStatus models.ReturnStatus   `json:"return_status"`
	Notes        string                `json:"notes"`
}

// ListEntries returns the entries of a ledger, newest first, with an
// optional name/organization search.
func (h *EntryHandler) ListEntries(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	query := h.db.Where("kouden_id = ?", koudenID)
	if search := c.QueryParam("search"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name ILIKE ? OR organization ILIKE ?", like, like)
	}

	var entries []models.KoudenEntry
	if err := query.Order("created_at desc").Find(&entries).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch entries")
	}

	return respondOK(c, entries)
}

// StoreEntry creates a new ledger entry
func (h *EntryHandler) StoreEntry(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	userID := getUintFromContext(c, "userID")

	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" {
		return respondError(c, http.StatusBadRequest, "Name is required")
	}
	if req.Amount < 0 {
		return respondError(c, http.StatusBadRequest, "Amount must not be negative")
	}

	entry := models.KoudenEntry{
		KoudenID:       koudenID,
		Name:           req.Name,
		Organization:   req.Organization,
		Position:       req.Position,
		Amount:         req.Amount,
		PostalCode:     req.PostalCode,
		Address:        req.Address,
		PhoneNumber:    req.PhoneNumber,
		Attendance:     req.Attendance,
		HasOffering:    req.HasOffering,
		ReturnStatus:   req.ReturnStatus,
		Notes:          req.Notes,
		Version:        1,
		LastModifiedBy: userID,
	}
	if entry.Attendance == "" {
		entry.Attendance = models.AttendanceFuneral
	}
	if entry.ReturnStatus == "" {
		entry.ReturnStatus = models.ReturnStatusPending
	}

	if err := h.db.Create(&entry).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to create entry")
	}

	h.stats.InvalidateSummary(c.Request().Context(), koudenID)
	return respondCreated(c, entry)
}

// findEntry fetches an entry scoped to the ledger whose membership the
// route middleware checked. Rows of other ledgers are indistinguishable
// from missing ones.
func (h *EntryHandler) findEntry(koudenID uint, id string) (*models.KoudenEntry, error) {
	var entry models.KoudenEntry
	err := h.db.Where("kouden_id = ?", koudenID).First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetEntry returns one entry with its allocations and return items
func (h *EntryHandler) GetEntry(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	var entry models.KoudenEntry
	err := h.db.Preload("Allocations.Offering").Preload("ReturnItems").
		Where("kouden_id = ?", koudenID).
		First(&entry, id).Error
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	return respondOK(c, entry)
}

// UpdateEntry updates a ledger entry. Writes are last-write-wins; the
// version counter is bumped and the editor recorded for display.
func (h *EntryHandler) UpdateEntry(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	userID := getUintFromContext(c, "userID")
	id := c.Param("id")

	entry, err := h.findEntry(koudenID, id)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	var req entryRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" {
		return respondError(c, http.StatusBadRequest, "Name is required")
	}
	if req.Amount < 0 {
		return respondError(c, http.StatusBadRequest, "Amount must not be negative")
	}

	entry.Name = req.Name
	entry.Organization = req.Organization
	entry.Position = req.Position
	entry.Amount = req.Amount
	entry.PostalCode = req.PostalCode
	entry.Address = req.Address
	entry.PhoneNumber = req.PhoneNumber
	if req.Attendance != "" {
		entry.Attendance = req.Attendance
	}
	entry.HasOffering = req.HasOffering
	if req.ReturnStatus != "" {
		entry.ReturnStatus = req.ReturnStatus
	}
	entry.Notes = req.Notes
	entry.Version++
	entry.LastModifiedBy = userID

	if err := h.db.Save(entry).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to update entry")
	}

	h.stats.InvalidateSummary(c.Request().Context(), koudenID)
	return respondOK(c, entry)
}

// DeleteEntry soft-deletes an entry and hard-deletes its allocations
func (h *EntryHandler) DeleteEntry(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	entry, err := h.findEntry(koudenID, id)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("kouden_entry_id = ?", entry.ID).Delete(&models.OfferingAllocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(entry).Error
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to delete entry")
	}

	h.stats.InvalidateSummary(c.Request().Context(), koudenID)
	return respondOK(c, nil)
}

// AcquireLock takes the advisory edit lock on an entry
func (h *EntryHandler) AcquireLock(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	userID := getUintFromContext(c, "userID")

	entry, err := h.findEntry(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	lock, err := h.locks.Acquire(entry.ID, userID)
	if err != nil {
		if errors.Is(err, services.ErrEntryLocked) {
			return respondError(c, http.StatusConflict, "Entry is being edited by another member")
		}
		return respondError(c, http.StatusInternalServerError, "Failed to acquire lock")
	}

	return respondOK(c, lock)
}

// ReleaseLock drops the requesting user's edit lock on an entry
func (h *EntryHandler) ReleaseLock(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	userID := getUintFromContext(c, "userID")

	entry, err := h.findEntry(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	if err := h.locks.Release(entry.ID, userID); err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to release lock")
	}

	return respondOK(c, nil)
}

// LockStatus reports who, if anyone, currently holds the edit lock
func (h *EntryHandler) LockStatus(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	entry, err := h.findEntry(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	lock, err := h.locks.Status(entry.ID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch lock status")
	}
	if lock == nil {
		return respondOK(c, map[string]bool{"locked": false})
	}

	return respondOK(c, map[string]interface{}{
		"locked":     true,
		"user_id":    lock.UserID,
		"user_name":  lock.User.Name,
		"locked_at":  lock.LockedAt,
		"expires_at": lock.ExpiresAt,
	})
}

// ActiveLocks returns the "who is editing what" map for a ledger
func (h *EntryHandler) ActiveLocks(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	locks, err := h.locks.ActiveLocks(koudenID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch locks")
	}

	return respondOK(c, locks)
}
