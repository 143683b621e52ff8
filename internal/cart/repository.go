package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercatto/storefront/internal/postgres"
)

// Repository defines the storage operations for carts and their items.
type Repository interface {
	GetOrCreate(ctx context.Context, userID string) (*Cart, error)
	Get(ctx context.Context, userID string) (*Cart, error)
	UpsertItem(ctx context.Context, cartID, productID, variantID string, quantity int64) error
	GetItem(ctx context.Context, cartID, variantID string) (*Item, error)
	SetItemQuantity(ctx context.Context, itemID string, quantity int64) error
	DeleteItem(ctx context.Context, cartID, variantID string) (bool, error)
	ListItems(ctx context.Context, cartID string) ([]ItemRow, error)
	CountItems(ctx context.Context, userID string) (int64, error)
	ClearForUser(ctx context.Context, q postgres.Queryer, userID string) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgresRepository.
func NewRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetOrCreate returns the user's cart, creating it if absent. Concurrent
// first-add calls race on the user_id unique constraint; ON CONFLICT DO
// NOTHING plus the follow-up select makes the loser adopt the winner's row.
func (r *PostgresRepository) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	_, err := r.db.Exec(ctx, `
		INSERT INTO carts (id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`, uuid.New().String(), userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}
	return r.Get(ctx, userID)
}

// Get fetches the user's cart without creating one.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Cart, error) {
	var cart Cart
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id FROM carts WHERE user_id = $1
	`, userID).Scan(&cart.ID, &cart.UserID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return &cart, nil
}

// UpsertItem inserts a cart line or, when a row for (cart, variant) already
// exists, merges by adding the quantities. The unique index makes this safe
// under concurrent adds for the same variant.
func (r *PostgresRepository) UpsertItem(ctx context.Context, cartID, productID, variantID string, quantity int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO cart_items (id, cart_id, product_id, variant_id, quantity)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (cart_id, variant_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	`, uuid.New().String(), cartID, productID, variantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

// GetItem fetches the (cart, variant) row.
func (r *PostgresRepository) GetItem(ctx context.Context, cartID, variantID string) (*Item, error) {
	var item Item
	err := r.db.QueryRow(ctx, `
		SELECT id, cart_id, product_id, variant_id, quantity
		FROM cart_items
		WHERE cart_id = $1 AND variant_id = $2
	`, cartID, variantID).Scan(&item.ID, &item.CartID, &item.ProductID, &item.VariantID, &item.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart item: %w", err)
	}
	return &item, nil
}

// SetItemQuantity updates a row in place. Rows never sit at quantity 0; the
// use case deletes instead when the adjustment would reach it.
func (r *PostgresRepository) SetItemQuantity(ctx context.Context, itemID string, quantity int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE cart_items SET quantity = $2 WHERE id = $1
	`, itemID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return nil
}

// DeleteItem removes the (cart, variant) row. The bool reports whether a row
// existed; absence is a signal, not an error.
func (r *PostgresRepository) DeleteItem(ctx context.Context, cartID, variantID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND variant_id = $2
	`, cartID, variantID)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListItems returns the cart's lines joined with product and variant data,
// ordered so rows of the same product are adjacent.
func (r *PostgresRepository) ListItems(ctx context.Context, cartID string) ([]ItemRow, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.name, p.image_url, p.price, v.id, v.size, ci.quantity
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		JOIN variants v ON v.id = ci.variant_id
		WHERE ci.cart_id = $1
		ORDER BY p.name, v.size
	`, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	var items []ItemRow
	for rows.Next() {
		var row ItemRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.ImageURL, &row.UnitPrice, &row.VariantID, &row.Size, &row.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, row)
	}
	return items, rows.Err()
}

// CountItems sums the quantities across the user's cart (header badge).
func (r *PostgresRepository) CountItems(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(ci.quantity), 0)
		FROM cart_items ci
		JOIN carts c ON c.id = ci.cart_id
		WHERE c.user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return count, nil
}

// ClearForUser deletes every line of the user's cart. It takes a Queryer so
// the order engine can run it inside the checkout transaction; it is never
// called on a failed checkout.
func (r *PostgresRepository) ClearForUser(ctx context.Context, q postgres.Queryer, userID string) error {
	_, err := q.Exec(ctx, `
		DELETE FROM cart_items
		WHERE cart_id IN (SELECT id FROM carts WHERE user_id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}
