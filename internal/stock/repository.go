package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mercatto/storefront/internal/postgres"
)

// ErrVariantNotFound is returned by reads on unknown or soft-deleted SKUs.
var ErrVariantNotFound = errors.New("variant not found")

// Ledger owns per-variant available quantity. Reserve and Restore take a
// Queryer so they join whatever transaction the caller is running; the
// advisory CheckAvailability reads outside any transaction on purpose.
type Ledger interface {
	Reserve(ctx context.Context, q postgres.Queryer, variantID string, quantity int64) error
	Restore(ctx context.Context, q postgres.Queryer, variantID string, quantity int64) error
	CheckAvailability(ctx context.Context, variantID string, quantity int64) (bool, error)
	AddSold(ctx context.Context, q postgres.Queryer, variantID string, quantity int64) error
}

// PostgresLedger implements Ledger using PostgreSQL.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewLedger creates a new PostgresLedger.
func NewLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// Reserve decrements the variant's quantity only if enough stock remains.
// The check and the write are one conditional UPDATE, so two checkouts racing
// for the last unit cannot both pass; the loser sees zero rows affected and
// gets an InsufficientError.
func (l *PostgresLedger) Reserve(ctx context.Context, q postgres.Queryer, variantID string, quantity int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE variants
		SET quantity = quantity - $2
		WHERE id = $1 AND quantity >= $2 AND deleted_at IS NULL
	`, variantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &InsufficientError{VariantID: variantID, Requested: quantity}
	}
	return nil
}

// Restore adds quantity back to the variant. Used when a pending order is
// cancelled, inside the same transaction that flips the status.
func (l *PostgresLedger) Restore(ctx context.Context, q postgres.Queryer, variantID string, quantity int64) error {
	tag, err := q.Exec(ctx, `
		UPDATE variants
		SET quantity = quantity + $2
		WHERE id = $1
	`, variantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to restore stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVariantNotFound
	}
	return nil
}

// CheckAvailability is the advisory pre-flight read. It is not binding:
// stock can change between this check and the commit, which is why Reserve
// revalidates atomically.
func (l *PostgresLedger) CheckAvailability(ctx context.Context, variantID string, quantity int64) (bool, error) {
	var have int64
	err := l.db.QueryRow(ctx, `
		SELECT quantity FROM variants
		WHERE id = $1 AND deleted_at IS NULL
	`, variantID).Scan(&have)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrVariantNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check availability: %w", err)
	}
	return Sufficient(have, quantity), nil
}

// AddSold bumps the lifetime sales aggregate of the variant's parent
// product. Keyed by variant because checkout lines carry variant ids only.
func (l *PostgresLedger) AddSold(ctx context.Context, q postgres.Queryer, variantID string, quantity int64) error {
	_, err := q.Exec(ctx, `
		UPDATE products
		SET sold_count = sold_count + $2
		WHERE id = (SELECT product_id FROM variants WHERE id = $1)
	`, variantID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update sold count: %w", err)
	}
	return nil
}
