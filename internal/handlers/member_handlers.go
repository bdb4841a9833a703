package handlers

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
	"kouden_app/internal/services"
)

type MemberHandler struct {
	db    *gorm.DB
	email *services.EmailService
}

func NewMemberHandler(db *gorm.DB, email *services.EmailService) *MemberHandler {
	return &MemberHandler{db: db, email: email}
}

// ListMembers returns a ledger's members with user details
func (h *MemberHandler) ListMembers(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")

	var members []models.KoudenMember
	if err := h.db.Preload("User").Where("kouden_id = ?", koudenID).Find(&members).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch members")
	}

	return respondOK(c, members)
}

// UpdateMemberRole changes a member's role. The last owner cannot be
// demoted.
func (h *MemberHandler) UpdateMemberRole(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	var member models.KoudenMember
	if err := h.db.Where("kouden_id = ?", koudenID).First(&member, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Member not found")
	}

	var req struct {
		Role models.MemberRole `json:"role"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Role.Rank() == 0 {
		return respondError(c, http.StatusBadRequest, "Unknown role")
	}

	if member.Role == models.MemberRoleOwner && req.Role != models.MemberRoleOwner {
		var ownerCount int64
		h.db.Model(&models.KoudenMember{}).
			Where("kouden_id = ? AND role = ?", koudenID, models.MemberRoleOwner).
			Count(&ownerCount)
		if ownerCount <= 1 {
			return respondError(c, http.StatusBadRequest, "Cannot demote the last owner")
		}
	}

	member.Role = req.Role
	if err := h.db.Save(&member).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to update member")
	}

	return respondOK(c, member)
}

// RemoveMember removes a member from a ledger. The last owner cannot
// be removed.
func (h *MemberHandler) RemoveMember(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	var member models.KoudenMember
	if err := h.db.Where("kouden_id = ?", koudenID).First(&member, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Member not found")
	}

	if member.Role == models.MemberRoleOwner {
		var ownerCount int64
		h.db.Model(&models.KoudenMember{}).
			Where("kouden_id = ? AND role = ?", koudenID, models.MemberRoleOwner).
			Count(&ownerCount)
		if ownerCount <= 1 {
			return respondError(c, http.StatusBadRequest, "Cannot remove the last owner")
		}
	}

	if err := h.db.Delete(&member).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to remove member")
	}

	return respondOK(c, nil)
}

type invitationRequest struct {
	Role      models.MemberRole `json:"role"`
	MaxUses   int               `json:"max_uses"`
	ExpiresIn int               `json:"expires_in_hours"`
	Email     string            `json:"email,omitempty"`
}

// CreateInvitation mints a share-link token for a ledger. When an
// email address is given the link is also mailed to it.
func (h *MemberHandler) CreateInvitation(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	userID := getUintFromContext(c, "userID")

	var req invitationRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}
	if req.Role == "" {
		req.Role = models.MemberRoleViewer
	}
	if req.Role == models.MemberRoleOwner {
		return respondError(c, http.StatusBadRequest, "Cannot invite as owner")
	}
	if req.MaxUses <= 0 {
		req.MaxUses = 1
	}
	if req.ExpiresIn <= 0 {
		req.ExpiresIn = 24 * 7
	}

	invitation := models.KoudenInvitation{
		KoudenID:  koudenID,
		Token:     uuid.New().String(),
		Role:      req.Role,
		CreatedBy: userID,
		ExpiresAt: time.Now().Add(time.Duration(req.ExpiresIn) * time.Hour),
		MaxUses:   req.MaxUses,
		Status:    models.InvitationStatusActive,
		Email:     req.Email,
	}

	if err := h.db.Create(&invitation).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to create invitation")
	}

	if req.Email != "" {
		var kouden models.Kouden
		if err := h.db.First(&kouden, koudenID).Error; err == nil {
			inviteURL := getEnv("APP_URL", "http://localhost:8080") + "/api/invitations/" + invitation.Token + "/accept"
			if err := h.email.SendInvitation(req.Email, kouden.Title, inviteURL); err != nil {
				// The link still works; the caller can share it manually.
				c.Logger().Errorf("failed to mail invitation: %v", err)
			}
		}
	}

	return respondCreated(c, invitation)
}

// RevokeInvitation disables a share link
func (h *MemberHandler) RevokeInvitation(c echo.Context) error {
	koudenID := getUintFromContext(c, "koudenID")
	id := c.Param("id")

	var invitation models.KoudenInvitation
	if err := h.db.Where("kouden_id = ?", koudenID).First(&invitation, id).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Invitation not found")
	}

	invitation.Status = models.InvitationStatusRevoked
	if err := h.db.Save(&invitation).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to revoke invitation")
	}

	return respondOK(c, invitation)
}

var errInvitationExhausted = errors.New("invitation has no uses left")

// consumeInvitationUse claims one use of an invitation. The increment
// is guarded in SQL so two concurrent accepts of a one-use link cannot
// both succeed; the IsUsable pre-check reads a possibly stale row.
func consumeInvitationUse(tx *gorm.DB, invitationID uint) error {
	res := tx.Model(&models.KoudenInvitation{}).
		Where("id = ? AND (max_uses = 0 OR used_count < max_uses)", invitationID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errInvitationExhausted
	}
	return nil
}

// AcceptInvitation turns a valid share-link token into a membership.
// The use count is claimed conditionally inside the transaction, so a
// link cannot be stretched past its max uses by concurrent accepts.
func (h *MemberHandler) AcceptInvitation(c echo.Context) error {
	userID := getUintFromContext(c, "userID")
	token := c.Param("token")

	var invitation models.KoudenInvitation
	if err := h.db.Where("token = ?", token).First(&invitation).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Invitation not found")
	}

	if !invitation.IsUsable(time.Now()) {
		return respondError(c, http.StatusGone, "Invitation is no longer valid")
	}

	if invitation.Email != "" && invitation.Email != getStringFromContext(c, "userEmail") {
		return respondError(c, http.StatusForbidden, "Invitation was issued to a different account")
	}

	var existing models.KoudenMember
	err := h.db.Where("kouden_id = ? AND user_id = ?", invitation.KoudenID, userID).First(&existing).Error
	if err == nil {
		return respondError(c, http.StatusConflict, "Already a member of this kouden")
	}
	if err != gorm.ErrRecordNotFound {
		return respondError(c, http.StatusInternalServerError, "Failed to check membership")
	}

	member := models.KoudenMember{
		KoudenID: invitation.KoudenID,
		UserID:   userID,
		Role:     invitation.Role,
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := consumeInvitationUse(tx, invitation.ID); err != nil {
			return err
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		if errors.Is(err, errInvitationExhausted) {
			return respondError(c, http.StatusGone, "Invitation is no longer valid")
		}
		return respondError(c, http.StatusInternalServerError, "Failed to accept invitation")
	}

	return respondCreated(c, member)
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
