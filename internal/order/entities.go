package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Order status values. Pending is the only non-terminal state.
const (
	StatusPending   = "pending"
	StatusShipping  = "shipping"
	StatusCancelled = "cancelled"
)

// Payment methods accepted at checkout.
const (
	MethodCard           = "card"
	MethodCashOnDelivery = "cash-on-delivery"
)

var (
	// ErrOrderNotFound is returned by lookups and admin updates on unknown ids.
	ErrOrderNotFound = errors.New("order not found")

	// ErrPaymentRequired means the verifier answered and the session is unpaid.
	ErrPaymentRequired = errors.New("payment not captured")

	// ErrPaymentVerificationFailed means the verifier could not answer at all.
	ErrPaymentVerificationFailed = errors.New("payment verification failed")

	// ErrInvalidStatus rejects status values outside the known set.
	ErrInvalidStatus = errors.New("invalid order status")

	// ErrInvalidTransition rejects writes the transition table does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOrderCreationFailed covers storage failures during the atomic commit,
	// after rollback. Distinct from insufficient stock so callers can tell
	// "try again" from "change your cart".
	ErrOrderCreationFailed = errors.New("order creation failed")

	// ErrValidation covers malformed checkout requests. No side effects.
	ErrValidation = errors.New("invalid checkout request")
)

// transitions is the allowed-transition table. Shipping and cancelled are
// terminal; nothing moves an order out of them.
var transitions = map[string][]string{
	StatusPending: {StatusShipping, StatusCancelled},
}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s string) bool {
	return s == StatusPending || s == StatusShipping || s == StatusCancelled
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Order is a committed purchase. Contact and address fields are snapshotted
// at order time and never track later profile edits. PaymentSessionID is the
// idempotency key for card payments, unique when present.
type Order struct {
	ID               string    `json:"id" db:"id"`
	UserID           *string   `json:"user_id,omitempty" db:"user_id"`
	Status           string    `json:"status" db:"status"`
	TotalAmount      int64     `json:"total_amount" db:"total_amount"`
	ShippingCost     int64     `json:"shipping_cost" db:"shipping_cost"`
	CustomerName     string    `json:"customer_name" db:"customer_name"`
	Email            string    `json:"email" db:"email"`
	Phone            string    `json:"phone" db:"phone"`
	AddressLine      string    `json:"address_line" db:"address_line"`
	City             string    `json:"city" db:"city"`
	PostalCode       string    `json:"postal_code" db:"postal_code"`
	PaymentMethod    string    `json:"payment_method" db:"payment_method"`
	PaymentSessionID *string   `json:"payment_session_id,omitempty" db:"payment_session_id"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// Item is one order line. PriceAtPurchase is the snapshotted unit price in
// minor units, immune to later catalog changes.
type Item struct {
	ID              string `json:"id" db:"id"`
	OrderID         string `json:"order_id" db:"order_id"`
	VariantID       string `json:"variant_id" db:"variant_id"`
	Quantity        int64  `json:"quantity" db:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase" db:"price_at_purchase"`
}

// ProjectedItem is the denormalized line used for confirmation emails and
// the order detail page. Read-only, not part of the transactional core.
type ProjectedItem struct {
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url"`
	Size        string `json:"size"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
}

// CheckoutLine is one requested line: the variant, how many, and the unit
// price the storefront displayed when the item was added.
type CheckoutLine struct {
	VariantID string `json:"variant_id" binding:"required"`
	Quantity  int64  `json:"quantity" binding:"required,gte=1"`
	UnitPrice int64  `json:"unit_price" binding:"gte=0"`
}

// CheckoutRequest is the storefront checkout payload. Binding tags do the
// structural validation; Validate covers the cross-field rules.
type CheckoutRequest struct {
	CustomerName     string         `json:"customer_name" binding:"required"`
	Email            string         `json:"email" binding:"required,email"`
	Phone            string         `json:"phone"`
	AddressLine      string         `json:"address_line" binding:"required"`
	City             string         `json:"city" binding:"required"`
	PostalCode       string         `json:"postal_code"`
	Lines            []CheckoutLine `json:"lines" binding:"required,min=1,dive"`
	TotalAmount      int64          `json:"total_amount" binding:"required,gt=0"`
	PaymentMethod    string         `json:"payment_method" binding:"required,oneof=card cash-on-delivery"`
	PaymentSessionID string         `json:"payment_session_id"`
}

// Validate enforces the rules binding tags cannot express.
func (r *CheckoutRequest) Validate() error {
	if r.PaymentMethod == MethodCard && r.PaymentSessionID == "" {
		return fmt.Errorf("%w: card payment requires a payment_session_id", ErrValidation)
	}
	for _, line := range r.Lines {
		if line.Quantity < 1 {
			return fmt.Errorf("%w: line quantity must be at least 1", ErrValidation)
		}
	}
	return nil
}

// NewOrder builds a pending order from a checkout request, snapshotting the
// contact and address fields. userID empty means guest checkout.
func NewOrder(req CheckoutRequest, userID string, shippingCost int64) *Order {
	order := &Order{
		ID:            uuid.New().String(),
		Status:        StatusPending,
		TotalAmount:   req.TotalAmount,
		ShippingCost:  shippingCost,
		CustomerName:  req.CustomerName,
		Email:         req.Email,
		Phone:         req.Phone,
		AddressLine:   req.AddressLine,
		City:          req.City,
		PostalCode:    req.PostalCode,
		PaymentMethod: req.PaymentMethod,
		CreatedAt:     time.Now().UTC(),
		UpdatedAt:     time.Now().UTC(),
	}
	if userID != "" {
		order.UserID = &userID
	}
	if req.PaymentSessionID != "" {
		order.PaymentSessionID = &req.PaymentSessionID
	}
	return order
}
