package cart

import "errors"

var (
	// ErrItemNotFound is returned by adjust/remove when the user has no cart
	// or the cart has no row for the variant.
	ErrItemNotFound = errors.New("cart item not found")

	// ErrCartNotFound is returned by reads for users who never added an item.
	ErrCartNotFound = errors.New("cart not found")
)

// Cart is the mutable pre-checkout basket. One cart per user, created lazily
// on first add; the unique constraint on user_id enforces the "one" part.
type Cart struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
}

// Item is a single (cart, variant) row. At most one row exists per variant in
// a cart; concurrent adds merge quantities instead of duplicating rows.
type Item struct {
	ID        string `json:"id" db:"id"`
	CartID    string `json:"cart_id" db:"cart_id"`
	ProductID string `json:"product_id" db:"product_id"`
	VariantID string `json:"variant_id" db:"variant_id"`
	Quantity  int64  `json:"quantity" db:"quantity"`
}

// ItemRow is one denormalized cart line as read from storage, joined with
// its product and variant.
type ItemRow struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	ImageURL    string `json:"image_url"`
	UnitPrice   int64  `json:"unit_price"`
	VariantID   string `json:"variant_id"`
	Size        string `json:"size"`
	Quantity    int64  `json:"quantity"`
}

// VariantEntry is one size line inside a grouped product.
type VariantEntry struct {
	VariantID string `json:"variant_id"`
	Size      string `json:"size"`
	Quantity  int64  `json:"quantity"`
}

// GroupedProduct is the storefront cart view: one block per product with its
// variant lines and a computed subtotal in minor units.
type GroupedProduct struct {
	ProductID string         `json:"product_id"`
	Name      string         `json:"name"`
	ImageURL  string         `json:"image_url"`
	UnitPrice int64          `json:"unit_price"`
	Variants  []VariantEntry `json:"variants"`
	Subtotal  int64          `json:"subtotal"`
}

// GroupByProduct folds flat cart rows into per-product blocks, preserving
// the row order within each product.
func GroupByProduct(rows []ItemRow) []GroupedProduct {
	var grouped []GroupedProduct
	index := make(map[string]int)

	for _, row := range rows {
		i, ok := index[row.ProductID]
		if !ok {
			grouped = append(grouped, GroupedProduct{
				ProductID: row.ProductID,
				Name:      row.ProductName,
				ImageURL:  row.ImageURL,
				UnitPrice: row.UnitPrice,
			})
			i = len(grouped) - 1
			index[row.ProductID] = i
		}
		grouped[i].Variants = append(grouped[i].Variants, VariantEntry{
			VariantID: row.VariantID,
			Size:      row.Size,
			Quantity:  row.Quantity,
		})
		grouped[i].Subtotal += row.UnitPrice * row.Quantity
	}

	return grouped
}
