package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the DDL executed once on startup. The unique constraints carry
// correctness weight: carts_user_id_key makes lazy cart creation race-safe,
// cart_items_cart_variant_key makes concurrent adds merge instead of
// duplicating rows, and orders_payment_session_key is the idempotency
// authority for card checkouts. The CHECK on variants.quantity is the last
// line of defense against a negative stock write.
const schema = `
CREATE TABLE IF NOT EXISTS products (
    id          UUID PRIMARY KEY,
    name        TEXT        NOT NULL,
    image_url   TEXT        NOT NULL DEFAULT '',
    price       BIGINT      NOT NULL CHECK (price >= 0),
    sold_count  BIGINT      NOT NULL DEFAULT 0,
    deleted_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS variants (
    id          UUID PRIMARY KEY,
    product_id  UUID        NOT NULL REFERENCES products(id),
    size        TEXT        NOT NULL DEFAULT '',
    quantity    BIGINT      NOT NULL CHECK (quantity >= 0),
    deleted_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS carts (
    id       UUID PRIMARY KEY,
    user_id  TEXT NOT NULL,
    CONSTRAINT carts_user_id_key UNIQUE (user_id)
);

CREATE TABLE IF NOT EXISTS cart_items (
    id          UUID   PRIMARY KEY,
    cart_id     UUID   NOT NULL REFERENCES carts(id),
    product_id  UUID   NOT NULL REFERENCES products(id),
    variant_id  UUID   NOT NULL REFERENCES variants(id),
    quantity    BIGINT NOT NULL CHECK (quantity >= 1),
    CONSTRAINT cart_items_cart_variant_key UNIQUE (cart_id, variant_id)
);

CREATE TABLE IF NOT EXISTS orders (
    id                  UUID PRIMARY KEY,
    user_id             TEXT,
    status              TEXT        NOT NULL,
    total_amount        BIGINT      NOT NULL,
    shipping_cost       BIGINT      NOT NULL,
    customer_name       TEXT        NOT NULL,
    email               TEXT        NOT NULL,
    phone               TEXT        NOT NULL DEFAULT '',
    address_line        TEXT        NOT NULL,
    city                TEXT        NOT NULL,
    postal_code         TEXT        NOT NULL DEFAULT '',
    payment_method      TEXT        NOT NULL,
    payment_session_id  TEXT,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL,
    CONSTRAINT orders_payment_session_key UNIQUE (payment_session_id)
);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders(user_id);

CREATE TABLE IF NOT EXISTS order_items (
    id                 UUID   PRIMARY KEY,
    order_id           UUID   NOT NULL REFERENCES orders(id),
    variant_id         UUID   NOT NULL REFERENCES variants(id),
    quantity           BIGINT NOT NULL CHECK (quantity >= 1),
    price_at_purchase  BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);
`

// Migrate applies the schema DDL. Statements are idempotent, so calling it on
// every boot is safe.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
