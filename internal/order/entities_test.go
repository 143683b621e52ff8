package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrder(t *testing.T) {
	// Arrange
	req := CheckoutRequest{
		CustomerName:     "Ada Lovelace",
		Email:            "ada@example.com",
		Phone:            "555-0101",
		AddressLine:      "12 Analytical Way",
		City:             "London",
		PostalCode:       "N1 9GU",
		Lines:            []CheckoutLine{{VariantID: "var-1", Quantity: 2, UnitPrice: 25_00}},
		TotalAmount:      50_00,
		PaymentMethod:    MethodCard,
		PaymentSessionID: "sess_123",
	}

	// Act
	o := NewOrder(req, "user-1", 10_00)

	// Assert
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, int64(50_00), o.TotalAmount)
	assert.Equal(t, int64(10_00), o.ShippingCost)
	assert.Equal(t, "Ada Lovelace", o.CustomerName)
	assert.Equal(t, "12 Analytical Way", o.AddressLine)
	if assert.NotNil(t, o.UserID) {
		assert.Equal(t, "user-1", *o.UserID)
	}
	if assert.NotNil(t, o.PaymentSessionID) {
		assert.Equal(t, "sess_123", *o.PaymentSessionID)
	}
	assert.WithinDuration(t, time.Now().UTC(), o.CreatedAt, time.Second)
}

func TestNewOrderGuest(t *testing.T) {
	// Arrange
	req := CheckoutRequest{
		CustomerName:  "Guest",
		Email:         "guest@example.com",
		AddressLine:   "1 Somewhere St",
		City:          "Lisbon",
		Lines:         []CheckoutLine{{VariantID: "var-1", Quantity: 1, UnitPrice: 10_00}},
		TotalAmount:   10_00,
		PaymentMethod: MethodCashOnDelivery,
	}

	// Act
	o := NewOrder(req, "", 10_00)

	// Assert
	assert.Nil(t, o.UserID)
	assert.Nil(t, o.PaymentSessionID)
}

func TestValidStatus(t *testing.T) {
	assert.True(t, ValidStatus(StatusPending))
	assert.True(t, ValidStatus(StatusShipping))
	assert.True(t, ValidStatus(StatusCancelled))
	assert.False(t, ValidStatus("delivered"))
	assert.False(t, ValidStatus(""))
}

func TestCanTransition(t *testing.T) {
	// The only legal moves are pending -> shipping and pending -> cancelled;
	// both targets are terminal.
	assert.True(t, CanTransition(StatusPending, StatusShipping))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))

	assert.False(t, CanTransition(StatusShipping, StatusPending))
	assert.False(t, CanTransition(StatusShipping, StatusCancelled))
	assert.False(t, CanTransition(StatusCancelled, StatusPending))
	assert.False(t, CanTransition(StatusCancelled, StatusShipping))
	assert.False(t, CanTransition(StatusPending, StatusPending))
}

func TestCheckoutRequestValidate(t *testing.T) {
	req := CheckoutRequest{
		CustomerName:  "Ada",
		Email:         "ada@example.com",
		AddressLine:   "12 Analytical Way",
		City:          "London",
		Lines:         []CheckoutLine{{VariantID: "var-1", Quantity: 1, UnitPrice: 10_00}},
		TotalAmount:   10_00,
		PaymentMethod: MethodCashOnDelivery,
	}
	assert.NoError(t, req.Validate())

	card := req
	card.PaymentMethod = MethodCard
	err := card.Validate()
	assert.ErrorIs(t, err, ErrValidation)

	card.PaymentSessionID = "sess_123"
	assert.NoError(t, card.Validate())

	zeroQty := req
	zeroQty.Lines = []CheckoutLine{{VariantID: "var-1", Quantity: 0}}
	assert.ErrorIs(t, zeroQty.Validate(), ErrValidation)
}

func TestShippingCost(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, config.FlatShippingFee, config.ShippingCost(config.FreeShippingThreshold-1))
	assert.Equal(t, int64(0), config.ShippingCost(config.FreeShippingThreshold))
	assert.Equal(t, int64(0), config.ShippingCost(config.FreeShippingThreshold+50_00))
}
