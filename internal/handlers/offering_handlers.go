package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
	"kouden_app/internal/services"
)

type OfferingHandler struct {
	db          *gorm.DB
	allocations *services.AllocationService
	stats       *services.StatsService
}

func NewOfferingHandler(db *gorm.DB, allocations *services.AllocationService, stats *services.StatsService) *OfferingHandler {
	return &OfferingHandler{db: db, allocations: allocations, stats: stats}
}

type offeringRequest struct {
	Type         models.OfferingType `json:"type"`
	Description  string              `json:"description"`
	Price        int64               `json:"price"`
	ProviderName string              `json:"provider_name"`
	Quantity     int                 `json:"quantity"`
	Notes        string              `json:"notes"`
}

// ListOfferings returns the offerings of a ledger with allocations
func (h *OfferingHandler) ListOfferings(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	var offerings []models.Offering
	err := h.db.Preload("Allocations").
		Where("kouden_id = ?", koudenID).
		Order("created_at desc").
		Find(&offerings).Error
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch offerings")
	}

	return respondOK(c, offerings)
}

// StoreOffering creates a new offering
func (h *OfferingHandler) StoreOffering(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	userID := getUintFromContext(c, "userID")

	var req offeringRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Price < 0 {
		return respondError(c, http.StatusBadRequest, "Price must not be negative")
	}

	offering := models.Offering{
		KoudenID:     koudenID,
		Type:         req.Type,
		Description:  req.Description,
		Price:        req.Price,
		ProviderName: req.ProviderName,
		Quantity:     req.Quantity,
		Notes:        req.Notes,
		CreatedBy:    userID,
	}
	if offering.Type == "" {
		offering.Type = models.OfferingTypeOther
	}
	if offering.Quantity <= 0 {
		offering.Quantity = 1
	}

	if err := h.db.Create(&offering).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to create offering")
	}

	return respondCreated(c, offering)
}

// findOffering fetches an offering scoped to the ledger whose
// membership the route middleware checked. Rows of other ledgers are
// indistinguishable from missing ones.
func (h *OfferingHandler) findOffering(koudenID uint, id string) (*models.Offering, error) {
	var offering models.Offering
	err := h.db.Where("kouden_id = ?", koudenID).First(&offering, id).Error
	if err != nil {
		return nil, err
	}
	return &offering, nil
}

// UpdateOffering updates an offering's descriptive fields and price
func (h *OfferingHandler) UpdateOffering(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	offering, err := h.findOffering(koudenID, id)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Offering not found")
	}

	var req offeringRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Price < 0 {
		return respondError(c, http.StatusBadRequest, "Price must not be negative")
	}

	if req.Type != "" {
		offering.Type = req.Type
	}
	offering.Description = req.Description
	offering.Price = req.Price
	offering.ProviderName = req.ProviderName
	if req.Quantity > 0 {
		offering.Quantity = req.Quantity
	}
	offering.Notes = req.Notes

	if err := h.db.Save(offering).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to update offering")
	}

	return respondOK(c, offering)
}

// DeleteOffering removes an offering and cascades its allocations
func (h *OfferingHandler) DeleteOffering(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	offering, err := h.findOffering(koudenID, id)
	if err != nil {
		return respondError(c, http.StatusNotFound, "Offering not found")
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("offering_id = ?", offering.ID).Delete(&models.OfferingAllocation{}).Error; err != nil {
			return err
		}
		return tx.Delete(offering).Error
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to delete offering")
	}

	h.stats.InvalidateSummary(c.Request().Context(), koudenID)
	return respondOK(c, nil)
}

// Allocate splits an offering's value across ledger entries. The save
// replaces any prior allocation set for the offering.
func (h *OfferingHandler) Allocate(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	offering, err := h.findOffering(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Offering not found")
	}

	var req services.AllocateRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	req.OfferingID = offering.ID

	if err := h.allocations.Allocate(req); err != nil {
		return allocationError(c, err)
	}

	h.stats.InvalidateSummary(c.Request().Context(), koudenID)
	return respondOK(c, nil)
}

// Recalculate reapplies an allocation method over the entries already
// associated with the offering.
func (h *OfferingHandler) Recalculate(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	offering, err := h.findOffering(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Offering not found")
	}

	var req struct {
		Method        models.AllocationMethod `json:"method"`
		ManualAmounts []int64                 `json:"manual_amounts,omitempty"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}

	if err := h.allocations.Recalculate(offering.ID, req.Method, req.ManualAmounts); err != nil {
		return allocationError(c, err)
	}

	h.stats.InvalidateSummary(c.Request().Context(), koudenID)
	return respondOK(c, nil)
}

// GetAllocations returns the persisted allocation rows for an offering
func (h *OfferingHandler) GetAllocations(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	offering, err := h.findOffering(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Offering not found")
	}

	allocations, err := h.allocations.GetOfferingAllocations(offering.ID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch allocations")
	}

	return respondOK(c, allocations)
}

// CheckIntegrity verifies an offering's allocation sums. Diagnostic
// only; drift is corrected by re-saving the allocation.
func (h *OfferingHandler) CheckIntegrity(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	offering, err := h.findOffering(koudenID, c.Param("id"))
	if err != nil {
		return respondError(c, http.StatusNotFound, "Offering not found")
	}

	report, err := h.allocations.CheckIntegrity(offering.ID)
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to check integrity")
	}

	return respondOK(c, report)
}

func allocationError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, services.ErrNoTargetEntries),
		errors.Is(err, services.ErrManualAmountsMismatch),
		errors.Is(err, services.ErrMethodNotSupported):
		return respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return respondError(c, http.StatusNotFound, "Offering not found")
	default:
		return respondError(c, http.StatusInternalServerError, "Failed to save allocation")
	}
}
