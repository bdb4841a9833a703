package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
)

type KoudenHandler struct {
	db *gorm.DB
}

func NewKoudenHandler(db *gorm.DB) *KoudenHandler {
	return &KoudenHandler{db: db}
}

type koudenRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// ListKouden returns the ledgers the requesting user is a member of
func (h *KoudenHandler) ListKouden(c echo.Context) error {
	userID := getUintFromContext(c, "userID")

	var koudens []models.Kouden
	err := h.db.
		Joins("JOIN kouden_members ON kouden_members.kouden_id = koudens.id").
		Where("kouden_members.user_id = ? AND kouden_members.deleted_at IS NULL", userID).
		Find(&koudens).Error
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch koudens")
	}

	return respondOK(c, koudens)
}

// StoreKouden creates a new ledger owned by the requesting user. The
// owner is also added as an owner-role member in the same transaction.
func (h *KoudenHandler) StoreKouden(c echo.Context) error {
	userID := getUintFromContext(c, "userID")

	var req koudenRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Title == "" {
		return respondError(c, http.StatusBadRequest, "Title is required")
	}

	kouden := models.Kouden{
		Title:       req.Title,
		Description: req.Description,
		OwnerID:     userID,
		Status:      models.KoudenStatusActive,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&kouden).Error; err != nil {
			return err
		}
		member := models.KoudenMember{
			KoudenID: kouden.ID,
			UserID:   userID,
			Role:     models.MemberRoleOwner,
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to create kouden")
	}

	return respondCreated(c, kouden)
}

// GetKouden returns one ledger with its members
func (h *KoudenHandler) GetKouden(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	var kouden models.Kouden
	if err := h.db.Preload("Members.User").Preload("Plan").First(&kouden, koudenID).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Kouden not found")
	}

	return respondOK(c, kouden)
}

// UpdateKouden updates a ledger's title, description or status
func (h *KoudenHandler) UpdateKouden(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	var kouden models.Kouden
	if err := h.db.First(&kouden, koudenID).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Kouden not found")
	}

	var req struct {
		koudenRequest
		Status models.KoudenStatus `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}

	if req.Title != "" {
		kouden.Title = req.Title
	}
	kouden.Description = req.Description
	if req.Status == models.KoudenStatusActive || req.Status == models.KoudenStatusArchived {
		kouden.Status = req.Status
	}

	if err := h.db.Save(&kouden).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to update kouden")
	}

	return respondOK(c, kouden)
}

// DeleteKouden soft-deletes a ledger
func (h *KoudenHandler) DeleteKouden(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	if err := h.db.Delete(&models.Kouden{}, koudenID).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to delete kouden")
	}

	return respondOK(c, nil)
}
