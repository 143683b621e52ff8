package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mercatto/storefront/internal/payment"
	"github.com/mercatto/storefront/internal/postgres"
	"github.com/mercatto/storefront/internal/stock"
)

// CartClearer empties a user's cart inside the checkout transaction. Only
// the engine calls it, and only on the success path.
type CartClearer interface {
	ClearForUser(ctx context.Context, q postgres.Queryer, userID string) error
}

// Config holds the engine's tunables.
type Config struct {
	// FreeShippingThreshold is the order total (minor units) at which
	// shipping becomes free.
	FreeShippingThreshold int64
	// FlatShippingFee is charged below the threshold, in minor units.
	FlatShippingFee int64
	// VerifyTimeout bounds the external payment verification call.
	VerifyTimeout time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: 100_00,
		FlatShippingFee:       10_00,
		VerifyTimeout:         5 * time.Second,
	}
}

// ShippingCost derives the shipping fee from the order total.
func (c Config) ShippingCost(totalAmount int64) int64 {
	if totalAmount >= c.FreeShippingThreshold {
		return 0
	}
	return c.FlatShippingFee
}

// UseCase is the order transaction engine and lifecycle manager.
type UseCase struct {
	repository Repository
	ledger     stock.Ledger
	verifier   payment.Verifier
	carts      CartClearer
	config     Config

	tracer          trace.Tracer
	ordersPlaced    metric.Int64Counter
	stockRejections metric.Int64Counter
}

// NewUseCase creates the engine.
func NewUseCase(repository Repository, ledger stock.Ledger, verifier payment.Verifier, carts CartClearer, config Config) *UseCase {
	meter := otel.Meter("storefront.order")
	ordersPlaced, err := meter.Int64Counter("checkout.orders_placed")
	if err != nil {
		log.Printf("failed to create orders_placed counter: %v", err)
	}
	stockRejections, err := meter.Int64Counter("checkout.stock_rejections")
	if err != nil {
		log.Printf("failed to create stock_rejections counter: %v", err)
	}

	return &UseCase{
		repository:      repository,
		ledger:          ledger,
		verifier:        verifier,
		carts:           carts,
		config:          config,
		tracer:          otel.Tracer("storefront.order"),
		ordersPlaced:    ordersPlaced,
		stockRejections: stockRejections,
	}
}

// PlaceOrder converts a checkout request into a persisted order. Everything
// before the transaction leaves no trace on failure; everything inside it is
// all-or-nothing.
func (uc *UseCase) PlaceOrder(ctx context.Context, req CheckoutRequest, userID string) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "place_order")
	defer span.End()
	span.SetAttributes(
		attribute.String("checkout.payment_method", req.PaymentMethod),
		attribute.Int("checkout.lines", len(req.Lines)),
		attribute.Int64("checkout.total_amount", req.TotalAmount),
	)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Idempotency short-circuit: an order already exists for this payment
	// session, so a refresh of the confirmation page must see it again
	// instead of creating a duplicate. Checked before any write.
	if req.PaymentMethod == MethodCard {
		existing, err := uc.repository.GetByPaymentSession(ctx, req.PaymentSessionID)
		if err == nil {
			span.SetAttributes(attribute.Bool("checkout.idempotent_replay", true))
			log.Printf("checkout replay for session %s returns order %s", req.PaymentSessionID, existing.ID)
			return existing, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
		}

		if err := uc.confirmPayment(ctx, req.PaymentSessionID); err != nil {
			return nil, err
		}
	}

	// Advisory pre-check: fail fast before opening a transaction doomed to
	// roll back. Not binding; Reserve revalidates atomically below.
	for _, line := range req.Lines {
		ok, err := uc.ledger.CheckAvailability(ctx, line.VariantID, line.Quantity)
		if errors.Is(err, stock.ErrVariantNotFound) {
			ok = false
		} else if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
		}
		if !ok {
			uc.countRejection(ctx)
			return nil, &stock.InsufficientError{VariantID: line.VariantID, Requested: line.Quantity}
		}
	}

	order, err := uc.commit(ctx, req, userID)
	if err != nil {
		return nil, err
	}

	if uc.ordersPlaced != nil {
		uc.ordersPlaced.Add(ctx, 1, metric.WithAttributes(
			attribute.String("payment_method", req.PaymentMethod),
		))
	}
	span.SetAttributes(attribute.String("order.id", order.ID))
	log.Printf("order %s placed (%d lines, total %d)", order.ID, len(req.Lines), req.TotalAmount)
	return order, nil
}

// confirmPayment asks the external verifier whether the session was paid,
// under a bounded timeout. No storage is touched on any outcome.
func (uc *UseCase) confirmPayment(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, uc.config.VerifyTimeout)
	defer cancel()

	paid, err := uc.verifier.Verify(ctx, sessionID)
	if err != nil {
		log.Printf("payment verification for session %s failed: %v", sessionID, err)
		return fmt.Errorf("%w: %v", ErrPaymentVerificationFailed, err)
	}
	if !paid {
		return ErrPaymentRequired
	}
	return nil
}

// commit runs the all-or-nothing step: order insert, item inserts, one
// conditional stock decrement per line, sold-count bumps, cart clear.
func (uc *UseCase) commit(ctx context.Context, req CheckoutRequest, userID string) (*Order, error) {
	ctx, span := uc.tracer.Start(ctx, "checkout_commit")
	defer span.End()

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order := NewOrder(req, userID, uc.config.ShippingCost(req.TotalAmount))

	if err := uc.repository.Create(ctx, tx, order); err != nil {
		// A racing duplicate submitted the same payment session first and
		// won the unique constraint; return its order as our own success.
		if postgres.IsUniqueViolation(err, "orders_payment_session_key") {
			_ = tx.Rollback(ctx)
			existing, lookupErr := uc.repository.GetByPaymentSession(ctx, req.PaymentSessionID)
			if lookupErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, lookupErr)
			}
			span.SetAttributes(attribute.Bool("checkout.idempotent_replay", true))
			return existing, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	items := make([]Item, 0, len(req.Lines))
	for _, line := range req.Lines {
		items = append(items, Item{
			ID:              uuid.New().String(),
			OrderID:         order.ID,
			VariantID:       line.VariantID,
			Quantity:        line.Quantity,
			PriceAtPurchase: line.UnitPrice,
		})
	}
	if err := uc.repository.CreateItems(ctx, tx, items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}

	for _, line := range req.Lines {
		if err := uc.ledger.Reserve(ctx, tx, line.VariantID, line.Quantity); err != nil {
			var insufficient *stock.InsufficientError
			if errors.As(err, &insufficient) {
				uc.countRejection(ctx)
				span.SetAttributes(attribute.String("checkout.insufficient_variant", insufficient.VariantID))
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
		}
		if err := uc.ledger.AddSold(ctx, tx, line.VariantID, line.Quantity); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
		}
	}

	if userID != "" {
		if err := uc.carts.ClearForUser(ctx, tx, userID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreationFailed, err)
	}
	return order, nil
}

func (uc *UseCase) countRejection(ctx context.Context) {
	if uc.stockRejections != nil {
		uc.stockRejections.Add(ctx, 1)
	}
}

// PrecheckStock runs the advisory availability check for a set of lines and
// returns the first failing variant. Read-only.
func (uc *UseCase) PrecheckStock(ctx context.Context, lines []CheckoutLine) error {
	for _, line := range lines {
		ok, err := uc.ledger.CheckAvailability(ctx, line.VariantID, line.Quantity)
		if errors.Is(err, stock.ErrVariantNotFound) {
			ok = false
		} else if err != nil {
			return err
		}
		if !ok {
			return &stock.InsufficientError{VariantID: line.VariantID, Requested: line.Quantity}
		}
	}
	return nil
}

// UpdateStatus applies a lifecycle transition. Unknown values are rejected
// outright; known values must be reachable from the order's current status.
// Cancelling a pending order restores its reserved stock in the same
// transaction.
func (uc *UseCase) UpdateStatus(ctx context.Context, orderID, newStatus string) (*Order, error) {
	if !ValidStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	tx, err := uc.repository.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	current, err := uc.repository.GetForUpdate(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(current.Status, newStatus) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, newStatus)
	}

	if err := uc.repository.UpdateStatus(ctx, tx, orderID, newStatus); err != nil {
		return nil, err
	}

	if newStatus == StatusCancelled {
		items, err := uc.repository.ItemsForOrder(ctx, tx, orderID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if err := uc.ledger.Restore(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return nil, fmt.Errorf("failed to restore stock for cancelled order: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}

	log.Printf("order %s moved %s -> %s", orderID, current.Status, newStatus)
	current.Status = newStatus
	return current, nil
}

// GetOrder fetches an order by id.
func (uc *UseCase) GetOrder(ctx context.Context, orderID string) (*Order, error) {
	return uc.repository.Get(ctx, orderID)
}

// ListOrders returns the user's order history.
func (uc *UseCase) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	return uc.repository.ListByUser(ctx, userID)
}

// ItemProjection returns the denormalized confirmation view for an order.
func (uc *UseCase) ItemProjection(ctx context.Context, orderID string) ([]ProjectedItem, error) {
	if _, err := uc.repository.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return uc.repository.ItemProjection(ctx, orderID)
}
