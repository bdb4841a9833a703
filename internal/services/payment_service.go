package services

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"kouden_app/internal/models"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/snap"
)

type PaymentService struct {
	db             *gorm.DB
	midtransClient *MidtransService
}

func NewPaymentService(db *gorm.DB, midtransClient *MidtransService) *PaymentService {
	return &PaymentService{
		db:             db,
		midtransClient: midtransClient,
	}
}

// CheckActiveSession returns the newest active checkout session for a
// subscription, or nil when there is none.
func (s *PaymentService) CheckActiveSession(subscriptionID uint) (*models.PaymentSession, error) {
	var existingSession models.PaymentSession
	err := s.db.Where("subscription_id = ? AND is_active = ?", subscriptionID, true).Order("created_at desc").First(&existingSession).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &existingSession, nil
}

// CheckoutResult holds the result of a checkout attempt
type CheckoutResult struct {
	Token       string
	RedirectURL string
	IsExisting  bool
}

// Checkout starts or resumes a payment session for a subscription.
func (s *PaymentService) Checkout(sub *models.Subscription, forceNew bool, callbackURL string) (*CheckoutResult, error) {
	// 1. Check for existing active session
	existingSession, err := s.CheckActiveSession(sub.ID)
	if err != nil {
		return nil, err
	}

	if existingSession != nil {
		statusResp, err := s.midtransClient.CheckTransaction(existingSession.OrderID)
		if err == nil {
			switch statusResp.TransactionStatus {
			case "settlement", "capture":
				return nil, fmt.Errorf("payment already made")
			case "deny", "expire", "cancel", "failure":
				// Dead at the gateway, deactivate locally and start fresh.
				existingSession.IsActive = false
				s.db.Save(existingSession)
			default:
				// Pending
				if forceNew {
					s.midtransClient.CancelTransaction(existingSession.OrderID)
					existingSession.IsActive = false
					s.db.Save(existingSession)
				} else {
					var midtransResp snap.Response
					if err := json.Unmarshal(existingSession.ResponseMetadata, &midtransResp); err == nil {
						return &CheckoutResult{
							Token:       midtransResp.Token,
							RedirectURL: midtransResp.RedirectURL,
							IsExisting:  true,
						}, nil
					}
					// Broken metadata, treat the session as dead.
					existingSession.IsActive = false
					s.db.Save(existingSession)
				}
			}
		} else {
			// Status check failed, assume the session is broken locally.
			existingSession.IsActive = false
			s.db.Save(existingSession)
		}
	}

	// 2. Create new transaction
	orderID := fmt.Sprintf("subscription-%d-%d", sub.ID, time.Now().Unix())

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: sub.Plan.Price,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: sub.User.Name,
			Email: sub.User.Email,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    fmt.Sprintf("plan-%d", sub.PlanID),
				Name:  fmt.Sprintf("Kouden plan: %s", sub.Plan.Name),
				Price: sub.Plan.Price,
				Qty:   1,
			},
		},
		Callbacks: &snap.Callbacks{
			Finish: callbackURL,
		},
	}

	resp, err := s.midtransClient.CreateTransaction(orderID, sub.Plan.Price, req)
	if err != nil {
		return nil, err
	}

	// 3. Record the session
	reqBytes, _ := json.Marshal(req)
	respBytes, _ := json.Marshal(resp)

	session := models.PaymentSession{
		SubscriptionID:   sub.ID,
		UserID:           sub.UserID,
		PaymentGateway:   models.PaymentGatewayMidtrans,
		OrderID:          orderID,
		IsActive:         true,
		RequestMetadata:  reqBytes,
		ResponseMetadata: respBytes,
	}
	s.db.Create(&session)

	return &CheckoutResult{
		Token:       resp.Token,
		RedirectURL: resp.RedirectURL,
		IsExisting:  false,
	}, nil
}

// HandleSettlement activates the subscription behind a settled order
// and closes its checkout session.
func (s *PaymentService) HandleSettlement(orderID string) error {
	var session models.PaymentSession
	if err := s.db.Where("order_id = ?", orderID).First(&session).Error; err != nil {
		return fmt.Errorf("failed to find payment session for order %s: %w", orderID, err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var sub models.Subscription
		if err := tx.Preload("Plan").First(&sub, session.SubscriptionID).Error; err != nil {
			return fmt.Errorf("failed to fetch subscription: %w", err)
		}

		now := time.Now()
		sub.Status = models.SubscriptionStatusActive
		sub.StartedAt = &now
		if sub.Plan.BillingType == models.BillingTypeRecurring {
			renews := sub.Plan.NextBillingDate(now)
			sub.RenewsAt = &renews
		}
		if err := tx.Save(&sub).Error; err != nil {
			return fmt.Errorf("failed to activate subscription: %w", err)
		}

		session.IsActive = false
		if err := tx.Save(&session).Error; err != nil {
			return fmt.Errorf("failed to close payment session: %w", err)
		}
		return nil
	})
}
