package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
)

type ReturnHandler struct {
	db *gorm.DB
}

func NewReturnHandler(db *gorm.DB) *ReturnHandler {
	return &ReturnHandler{db: db}
}

type returnItemRequest struct {
	Name           string                `json:"name"`
	Price          int64                 `json:"price"`
	Quantity       int                   `json:"quantity"`
	DeliveryMethod models.DeliveryMethod `json:"delivery_method"`
	Notes          string                `json:"notes"`
}

// findEntry fetches the parent entry scoped to the ledger whose
// membership the route middleware checked.
func (h *ReturnHandler) findEntry(koudenID uint, id string) (*models.KoudenEntry, error) {
	var entry models.KoudenEntry
	err := h.db.Where("kouden_id = ?", koudenID).First(&entry, id).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// findItem fetches a return item joined through its entry, so rows of
// other ledgers are indistinguishable from missing ones.
func (h *ReturnHandler) findItem(koudenID uint, id string) (*models.ReturnItem, error) {
	var item models.ReturnItem
	err := h.db.Joins("JOIN kouden_entries ON kouden_entries.id = return_items.kouden_entry_id").
		Where("kouden_entries.kouden_id = ? AND kouden_entries.deleted_at IS NULL AND return_items.id = ?", koudenID, id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ListReturnItems returns the return gifts recorded for an entry
func (h *ReturnHandler) ListReturnItems(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	entry, err := h.findEntry(koudenID, c.Param("entryId"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	var items []models.ReturnItem
	if err := h.db.Where("kouden_entry_id = ?", entry.ID).Order("created_at asc").Find(&items).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch return items")
	}

	return respondOK(c, items)
}

// StoreReturnItem records a return gift for an entry. An entry with a
// first return item moves from pending to partial.
func (h *ReturnHandler) StoreReturnItem(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	entry, err := h.findEntry(koudenID, c.Param("entryId"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Entry not found")
	}

	var req returnItemRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" {
		return respondError(c, http.StatusBadRequest, "Name is required")
	}

	item := models.ReturnItem{
		KoudenEntryID:  entry.ID,
		Name:           req.Name,
		Price:          req.Price,
		Quantity:       req.Quantity,
		DeliveryMethod: req.DeliveryMethod,
		Notes:          req.Notes,
	}
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if item.DeliveryMethod == "" {
		item.DeliveryMethod = models.DeliveryMethodShipping
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&item).Error; err != nil {
			return err
		}
		if entry.ReturnStatus == models.ReturnStatusPending {
			return tx.Model(entry).Update("return_status", models.ReturnStatusPartial).Error
		}
		return nil
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to create return item")
	}

	return respondCreated(c, item)
}

// UpdateReturnItem updates a return gift record
func (h *ReturnHandler) UpdateReturnItem(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	item, err := h.findItem(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Return item not found")
	}

	var req returnItemRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Name == "" {
		return respondError(c, http.StatusBadRequest, "Name is required")
	}

	item.Name = req.Name
	item.Price = req.Price
	if req.Quantity > 0 {
		item.Quantity = req.Quantity
	}
	if req.DeliveryMethod != "" {
		item.DeliveryMethod = req.DeliveryMethod
	}
	item.Notes = req.Notes

	if err := h.db.Save(item).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to update return item")
	}

	return respondOK(c, item)
}

// MarkReturnItemSent flags a return gift as delivered. When every item
// of the entry is sent, the entry's return status becomes completed.
func (h *ReturnHandler) MarkReturnItemSent(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	item, err := h.findItem(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Return item not found")
	}

	now := time.Now()
	item.IsSent = true
	item.SentAt = &now

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(item).Error; err != nil {
			return err
		}

		var unsent int64
		if err := tx.Model(&models.ReturnItem{}).
			Where("kouden_entry_id = ? AND is_sent = ?", item.KoudenEntryID, false).
			Count(&unsent).Error; err != nil {
			return err
		}
		if unsent == 0 {
			return tx.Model(&models.KoudenEntry{}).
				Where("id = ?", item.KoudenEntryID).
				Update("return_status", models.ReturnStatusCompleted).Error
		}
		return nil
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to mark return item sent")
	}

	return respondOK(c, item)
}

// DeleteReturnItem removes a return gift record
func (h *ReturnHandler) DeleteReturnItem(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	item, err := h.findItem(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Return item not found")
	}

	if err := h.db.Delete(item).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to delete return item")
	}

	return respondOK(c, nil)
}
