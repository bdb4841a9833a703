package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
)

type TelegramHandler struct {
	db *gorm.DB
}

func NewTelegramHandler(db *gorm.DB) *TelegramHandler {
	return &TelegramHandler{db: db}
}

type telegramRequest struct {
	SenderName         string `json:"sender_name"`
	SenderOrganization string `json:"sender_organization"`
	SenderPosition     string `json:"sender_position"`
	Message            string `json:"message"`
	Notes              string `json:"notes"`
	KoudenEntryID      *uint  `json:"kouden_entry_id"`
}

// ListTelegrams returns the telegrams recorded for a ledger
func (h *TelegramHandler) ListTelegrams(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	var telegrams []models.Telegram
	err := h.db.Preload("KoudenEntry").
		Where("kouden_id = ?", koudenID).
		Order("created_at desc").
		Find(&telegrams).Error
	if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch telegrams")
	}

	return respondOK(c, telegrams)
}

// StoreTelegram records a new telegram
func (h *TelegramHandler) StoreTelegram(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	var req telegramRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.SenderName == "" {
		return respondError(c, http.StatusBadRequest, "Sender name is required")
	}

	// A linked entry must belong to the same ledger
	if req.KoudenEntryID != nil {
		var entry models.KoudenEntry
		if err := h.db.First(&entry, *req.KoudenEntryID).Error; err != nil || entry.KoudenID != koudenID {
			return respondError(c, http.StatusBadRequest, "Linked entry does not belong to this kouden")
		}
	}

	telegram := models.Telegram{
		KoudenID:           koudenID,
		SenderName:         req.SenderName,
		SenderOrganization: req.SenderOrganization,
		SenderPosition:     req.SenderPosition,
		Message:            req.Message,
		Notes:              req.Notes,
		KoudenEntryID:      req.KoudenEntryID,
	}

	if err := h.db.Create(&telegram).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to create telegram")
	}

	return respondCreated(c, telegram)
}

// UpdateTelegram updates a telegram record
func (h *TelegramHandler) UpdateTelegram(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	var telegram models.Telegram
	if err := h.db.Where("kouden_id = ?", koudenID).First(&telegram, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Telegram not found")
	}

	var req telegramRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.SenderName == "" {
		return respondError(c, http.StatusBadRequest, "Sender name is required")
	}

	if req.KoudenEntryID != nil {
		var entry models.KoudenEntry
		if err := h.db.First(&entry, *req.KoudenEntryID).Error; err != nil || entry.KoudenID != koudenID {
			return respondError(c, http.StatusBadRequest, "Linked entry does not belong to this kouden")
		}
	}

	telegram.SenderName = req.SenderName
	telegram.SenderOrganization = req.SenderOrganization
	telegram.SenderPosition = req.SenderPosition
	telegram.Message = req.Message
	telegram.Notes = req.Notes
	telegram.KoudenEntryID = req.KoudenEntryID

	if err := h.db.Save(&telegram).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to update telegram")
	}

	return respondOK(c, telegram)
}

// DeleteTelegram soft-deletes a telegram record
func (h *TelegramHandler) DeleteTelegram(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	result := h.db.Where("kouden_id = ?", koudenID).Delete(&models.Telegram{}, id)
	if result.Error != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to delete telegram")
	}
	if result.RowsAffected == 0 {
		return respondError(c, http.StatusNotFound, "Telegram not found")
	}

	return respondOK(c, nil)
}
