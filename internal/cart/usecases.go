package cart

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidQuantity rejects adds with a non-positive quantity and
// adjustments outside {-1, 0, +1}.
var ErrInvalidQuantity = errors.New("invalid quantity")

// UseCase contains the cart business logic.
type UseCase struct {
	repository Repository
}

// NewUseCase creates a new cart UseCase.
func NewUseCase(repository Repository) *UseCase {
	return &UseCase{repository: repository}
}

// AddItem puts quantity units of a variant into the user's cart, creating
// the cart lazily and merging with an existing line for the same variant.
func (uc *UseCase) AddItem(ctx context.Context, userID, productID, variantID string, quantity int64) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	c, err := uc.repository.GetOrCreate(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to add item: %w", err)
	}

	return uc.repository.UpsertItem(ctx, c.ID, productID, variantID, quantity)
}

// AdjustQuantity moves a line by delta (+1 or -1). A line that would reach
// zero is deleted, never left in place. delta 0 is a no-op.
func (uc *UseCase) AdjustQuantity(ctx context.Context, userID, variantID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	if delta != 1 && delta != -1 {
		return ErrInvalidQuantity
	}

	c, err := uc.repository.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return ErrItemNotFound
	}
	if err != nil {
		return err
	}

	item, err := uc.repository.GetItem(ctx, c.ID, variantID)
	if err != nil {
		return err
	}

	next := item.Quantity + delta
	if next <= 0 {
		_, err := uc.repository.DeleteItem(ctx, c.ID, variantID)
		return err
	}
	return uc.repository.SetItemQuantity(ctx, item.ID, next)
}

// RemoveItem deletes a line if present. The bool reports whether anything
// was removed; a missing line is not an error.
func (uc *UseCase) RemoveItem(ctx context.Context, userID, variantID string) (bool, error) {
	c, err := uc.repository.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return uc.repository.DeleteItem(ctx, c.ID, variantID)
}

// ListGrouped returns the cart contents grouped by product. Pure read.
func (uc *UseCase) ListGrouped(ctx context.Context, userID string) ([]GroupedProduct, error) {
	c, err := uc.repository.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := uc.repository.ListItems(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return GroupByProduct(rows), nil
}

// Count returns the total number of units in the user's cart.
func (uc *UseCase) Count(ctx context.Context, userID string) (int64, error) {
	return uc.repository.CountItems(ctx, userID)
}
