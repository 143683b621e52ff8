package httpapi

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mercatto/storefront/internal/cart"
	"github.com/mercatto/storefront/internal/order"
	"github.com/mercatto/storefront/internal/stock"
)

// userHeader carries the authenticated user id, set by the upstream gateway.
// Absent means guest.
const userHeader = "X-User-ID"

// OrderUseCase is the engine surface the handlers need.
type OrderUseCase interface {
	PlaceOrder(ctx context.Context, req order.CheckoutRequest, userID string) (*order.Order, error)
	PrecheckStock(ctx context.Context, lines []order.CheckoutLine) error
	UpdateStatus(ctx context.Context, orderID, newStatus string) (*order.Order, error)
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)
	ListOrders(ctx context.Context, userID string) ([]order.Order, error)
	ItemProjection(ctx context.Context, orderID string) ([]order.ProjectedItem, error)
}

// CartUseCase is the cart surface the handlers need.
type CartUseCase interface {
	AddItem(ctx context.Context, userID, productID, variantID string, quantity int64) error
	AdjustQuantity(ctx context.Context, userID, variantID string, delta int64) error
	RemoveItem(ctx context.Context, userID, variantID string) (bool, error)
	ListGrouped(ctx context.Context, userID string) ([]cart.GroupedProduct, error)
	Count(ctx context.Context, userID string) (int64, error)
}

// Handler holds the HTTP handlers.
type Handler struct {
	orders OrderUseCase
	carts  CartUseCase
	tracer trace.Tracer
}

// NewHandler creates a new Handler.
func NewHandler(orders OrderUseCase, carts CartUseCase, tracer trace.Tracer) *Handler {
	return &Handler{orders: orders, carts: carts, tracer: tracer}
}

// Checkout places an order.
func (h *Handler) Checkout(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "checkout")
	defer span.End()

	var req order.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetHeader(userHeader)
	span.SetAttributes(attribute.Bool("checkout.guest", userID == ""))

	placed, err := h.orders.PlaceOrder(ctx, req, userID)
	if err != nil {
		span.RecordError(err)
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order_id": placed.ID})
}

// PrecheckStock runs the advisory availability check. Read-only; the result
// is not binding at commit time.
func (h *Handler) PrecheckStock(c *gin.Context) {
	var req struct {
		Lines []order.CheckoutLine `json:"lines" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.orders.PrecheckStock(c.Request.Context(), req.Lines); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true})
}

// GetOrder returns an order with its denormalized item list.
func (h *Handler) GetOrder(c *gin.Context) {
	ctx := c.Request.Context()
	orderID := c.Param("id")

	found, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	items, err := h.orders.ItemProjection(ctx, orderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"order": found, "items": items})
}

// ListOrders returns the caller's order history.
func (h *Handler) ListOrders(c *gin.Context) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// UpdateOrderStatus applies a lifecycle transition (staff only; admin auth
// sits in front of this service).
func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": updated})
}

// GetCart returns the cart grouped by product.
func (h *Handler) GetCart(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	grouped, err := h.carts.ListGrouped(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	count, err := h.carts.Count(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": grouped, "count": count})
}

// AddCartItem adds quantity units of a variant to the cart.
func (h *Handler) AddCartItem(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req struct {
		ProductID string `json:"product_id" binding:"required"`
		VariantID string `json:"variant_id" binding:"required"`
		Quantity  int64  `json:"quantity" binding:"required,gte=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.carts.AddItem(c.Request.Context(), userID, req.ProductID, req.VariantID, req.Quantity); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// AdjustCartItem moves a cart line by +1 or -1.
func (h *Handler) AdjustCartItem(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req struct {
		VariantID string `json:"variant_id" binding:"required"`
		Delta     int64  `json:"delta" binding:"oneof=-1 0 1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.carts.AdjustQuantity(c.Request.Context(), userID, req.VariantID, req.Delta); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": "success"})
}

// RemoveCartItem deletes a cart line. Removing an absent line reports
// removed=false rather than failing.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	removed, err := h.carts.RemoveItem(c.Request.Context(), userID, c.Param("variantID"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// HealthCheck reports service liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "storefront"})
}

func (h *Handler) requireUser(c *gin.Context) (string, bool) {
	userID := c.GetHeader(userHeader)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return "", false
	}
	return userID, true
}

// writeError maps domain errors onto HTTP statuses. Every domain error is
// recovered here; nothing crashes the process.
func (h *Handler) writeError(c *gin.Context, err error) {
	var insufficient *stock.InsufficientError
	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusConflict, gin.H{
			"error":      "insufficient stock",
			"variant_id": insufficient.VariantID,
		})
	case errors.Is(err, order.ErrValidation),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrInvalidStatus),
		errors.Is(err, order.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrPaymentRequired):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrPaymentVerificationFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
