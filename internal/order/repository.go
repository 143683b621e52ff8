package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercatto/storefront/internal/postgres"
)

// Repository defines the storage operations for orders and their items.
// Methods taking a Queryer participate in the caller's transaction.
type Repository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	Create(ctx context.Context, q postgres.Queryer, order *Order) error
	CreateItems(ctx context.Context, q postgres.Queryer, items []Item) error
	Get(ctx context.Context, id string) (*Order, error)
	GetForUpdate(ctx context.Context, q postgres.Queryer, id string) (*Order, error)
	GetByPaymentSession(ctx context.Context, sessionID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, q postgres.Queryer, id, status string) error
	ItemsForOrder(ctx context.Context, q postgres.Queryer, orderID string) ([]Item, error)
	ItemProjection(ctx context.Context, orderID string) ([]ProjectedItem, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// BeginTx starts the transaction the checkout commit runs in.
func (r *PostgresRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.db.Begin(ctx)
}

const orderColumns = `id, user_id, status, total_amount, shipping_cost,
	customer_name, email, phone, address_line, city, postal_code,
	payment_method, payment_session_id, created_at, updated_at`

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingCost,
		&o.CustomerName, &o.Email, &o.Phone, &o.AddressLine, &o.City, &o.PostalCode,
		&o.PaymentMethod, &o.PaymentSessionID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create inserts the order row. A unique violation on the payment session
// constraint bubbles up to the engine, which resolves the race by returning
// the winning order.
func (r *PostgresRepository) Create(ctx context.Context, q postgres.Queryer, order *Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_cost,
			customer_name, email, phone, address_line, city, postal_code,
			payment_method, payment_session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, order.ID, order.UserID, order.Status, order.TotalAmount, order.ShippingCost,
		order.CustomerName, order.Email, order.Phone, order.AddressLine, order.City,
		order.PostalCode, order.PaymentMethod, order.PaymentSessionID,
		order.CreatedAt, order.UpdatedAt)
	return err
}

// CreateItems inserts the order lines in one round trip.
func (r *PostgresRepository) CreateItems(ctx context.Context, q postgres.Queryer, items []Item) error {
	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(`
			INSERT INTO order_items (id, order_id, variant_id, quantity, price_at_purchase)
			VALUES ($1, $2, $3, $4, $5)
		`, item.ID, item.OrderID, item.VariantID, item.Quantity, item.PriceAtPurchase)
	}

	var results pgx.BatchResults
	switch db := q.(type) {
	case pgx.Tx:
		results = db.SendBatch(ctx, batch)
	default:
		results = r.db.SendBatch(ctx, batch)
	}
	defer results.Close()

	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return results.Close()
}

// Get fetches an order by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

// GetForUpdate fetches an order with a row lock, so two concurrent status
// updates serialize instead of both reading the same current status.
func (r *PostgresRepository) GetForUpdate(ctx context.Context, q postgres.Queryer, id string) (*Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order for update: %w", err)
	}
	return o, nil
}

// GetByPaymentSession is the idempotency lookup for card checkouts.
func (r *PostgresRepository) GetByPaymentSession(ctx context.Context, sessionID string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE payment_session_id = $1`, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by payment session: %w", err)
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

// UpdateStatus writes the new status value. Transition legality is the use
// case's job; this only reports whether the row exists.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, q postgres.Queryer, id, status string) error {
	tag, err := q.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// ItemsForOrder returns the raw order lines (used to restore stock on
// cancellation).
func (r *PostgresRepository) ItemsForOrder(ctx context.Context, q postgres.Queryer, orderID string) ([]Item, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, variant_id, quantity, price_at_purchase
		FROM order_items WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.VariantID, &item.Quantity, &item.PriceAtPurchase); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ItemProjection returns the denormalized confirmation view of an order's
// lines.
func (r *PostgresRepository) ItemProjection(ctx context.Context, orderID string) ([]ProjectedItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.name, p.image_url, v.size, oi.quantity, oi.price_at_purchase
		FROM order_items oi
		JOIN variants v ON v.id = oi.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE oi.order_id = $1
		ORDER BY p.name, v.size
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to project order items: %w", err)
	}
	defer rows.Close()

	var items []ProjectedItem
	for rows.Next() {
		var item ProjectedItem
		if err := rows.Scan(&item.ProductName, &item.ImageURL, &item.Size, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan projected item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
