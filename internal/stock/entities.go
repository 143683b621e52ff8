package stock

import "fmt"

// Variant is a purchasable size/option of a product carrying its own stock
// count. The ledger is the only writer that decrements Quantity.
type Variant struct {
	ID        string `json:"id" db:"id"`
	ProductID string `json:"product_id" db:"product_id"`
	Size      string `json:"size" db:"size"`
	Quantity  int64  `json:"quantity" db:"quantity"`
}

// InsufficientError reports that a reservation could not be satisfied,
// naming the variant so the caller can tell the customer which line failed.
type InsufficientError struct {
	VariantID string
	Requested int64
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s (requested %d)", e.VariantID, e.Requested)
}

// Sufficient is the single "is this enough stock" predicate shared by the
// advisory pre-check and the authoritative reserve path.
func Sufficient(have, want int64) bool {
	return want >= 1 && have >= want
}
