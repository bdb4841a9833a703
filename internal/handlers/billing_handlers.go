package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"kouden_app/internal/models"
	"kouden_app/internal/services"
)

type BillingHandler struct {
	db             *gorm.DB
	midtransClient *services.MidtransService
	paymentService *services.PaymentService
}

func NewBillingHandler(db *gorm.DB, midtransClient *services.MidtransService, paymentService *services.PaymentService) *BillingHandler {
	if midtransClient == nil {
		midtransClient = services.NewMidtransService()
	}
	return &BillingHandler{db: db, midtransClient: midtransClient, paymentService: paymentService}
}

// ListPlans returns the purchasable plans
func (h *BillingHandler) ListPlans(c echo.Context) error {
	var plans []models.Plan
	if err := h.db.Where("is_active = ?", true).Order("price asc").Find(&plans).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch plans")
	}
	return respondOK(c, plans)
}

// Checkout starts (or resumes) a payment session for a plan
func (h *BillingHandler) Checkout(c echo.Context) error {
	userID := getUintFromContext(c, "userID")

	var req struct {
		PlanCode string `json:"plan_code"`
		ForceNew bool   `json:"force_new"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, http.StatusBadRequest, "Invalid request body")
	}

	var plan models.Plan
	if err := h.db.Where("code = ? AND is_active = ?", req.PlanCode, true).First(&plan).Error; err != nil {
		return respondError(c, http.StatusNotFound, "Plan not found")
	}
	if plan.Price <= 0 {
		return respondError(c, http.StatusBadRequest, "Plan does not require payment")
	}

	// Reuse an existing pending subscription for the same plan
	var sub models.Subscription
	err := h.db.Preload("Plan").Preload("User").
		Where("user_id = ? AND plan_id = ? AND status = ?", userID, plan.ID, models.SubscriptionStatusPending).
		First(&sub).Error
	if err == gorm.ErrRecordNotFound {
		sub = models.Subscription{
			UserID: userID,
			PlanID: plan.ID,
			Status: models.SubscriptionStatusPending,
		}
		if err := h.db.Create(&sub).Error; err != nil {
			return respondError(c, http.StatusInternalServerError, "Failed to create subscription")
		}
		if err := h.db.Preload("Plan").Preload("User").First(&sub, sub.ID).Error; err != nil {
			return respondError(c, http.StatusInternalServerError, "Failed to load subscription")
		}
	} else if err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to check subscription")
	}

	callbackURL := getEnv("APP_URL", "http://localhost:8080") + "/billing/finish"
	result, err := h.paymentService.Checkout(&sub, req.ForceNew, callbackURL)
	if err != nil {
		if err.Error() == "payment already made" {
			return respondError(c, http.StatusBadRequest, "Payment is already made. Please check the status.")
		}
		return respondError(c, http.StatusInternalServerError, "Failed to initiate payment")
	}

	return respondOK(c, map[string]interface{}{
		"token":        result.Token,
		"redirect_url": result.RedirectURL,
		"is_existing":  result.IsExisting,
	})
}

// MySubscriptions returns the requesting user's subscriptions
func (h *BillingHandler) MySubscriptions(c echo.Context) error {
	userID := getUintFromContext(c, "userID")

	var subs []models.Subscription
	if err := h.db.Preload("Plan").Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return respondError(c, http.StatusInternalServerError, "Failed to fetch subscriptions")
	}
	return respondOK(c, subs)
}

// HandleNotification processes Midtrans webhook callbacks. The raw
// payload is stored first so a processing bug never loses the event.
func (h *BillingHandler) HandleNotification(c echo.Context) error {
	var payload map[string]interface{}
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "invalid payload"})
	}

	raw, _ := json.Marshal(payload)
	orderID, _ := payload["order_id"].(string)

	history := models.PaymentCallbackHistory{
		PaymentGateway: models.PaymentGatewayMidtrans,
		OrderID:        orderID,
		Metadata:       raw,
	}
	if err := h.db.Create(&history).Error; err != nil {
		log.Printf("Failed to record payment callback: %v", err)
	}

	if orderID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"status": "missing order_id"})
	}

	statusCode, _ := payload["status_code"].(string)
	grossAmount, _ := payload["gross_amount"].(string)
	signature, _ := payload["signature_key"].(string)
	if !h.midtransClient.VerifySignature(orderID, statusCode, grossAmount, signature) {
		return c.JSON(http.StatusForbidden, map[string]string{"status": "invalid signature"})
	}

	// Re-check the transaction at the gateway rather than trusting the
	// notification body.
	statusResp, err := h.midtransClient.CheckTransaction(orderID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"status": "status check failed"})
	}

	switch statusResp.TransactionStatus {
	case "settlement", "capture":
		if err := h.paymentService.HandleSettlement(orderID); err != nil {
			log.Printf("Failed to handle settlement for %s: %v", orderID, err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"status": "settlement failed"})
		}
	case "deny", "expire", "cancel", "failure":
		h.db.Model(&models.PaymentSession{}).
			Where("order_id = ?", orderID).
			Update("is_active", false)
	}

	return c.JSON(http.StatusOK, map[string]string{"status": fmt.Sprintf("processed %s", statusResp.TransactionStatus)})
}
