package cart

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mercatto/storefront/internal/postgres"
)

// MockRepository mocks Repository.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	args := m.Called(ctx, userID)
	var c *Cart
	if v := args.Get(0); v != nil {
		c = v.(*Cart)
	}
	return c, args.Error(1)
}

func (m *MockRepository) Get(ctx context.Context, userID string) (*Cart, error) {
	args := m.Called(ctx, userID)
	var c *Cart
	if v := args.Get(0); v != nil {
		c = v.(*Cart)
	}
	return c, args.Error(1)
}

func (m *MockRepository) UpsertItem(ctx context.Context, cartID, productID, variantID string, quantity int64) error {
	args := m.Called(ctx, cartID, productID, variantID, quantity)
	return args.Error(0)
}

func (m *MockRepository) GetItem(ctx context.Context, cartID, variantID string) (*Item, error) {
	args := m.Called(ctx, cartID, variantID)
	var item *Item
	if v := args.Get(0); v != nil {
		item = v.(*Item)
	}
	return item, args.Error(1)
}

func (m *MockRepository) SetItemQuantity(ctx context.Context, itemID string, quantity int64) error {
	args := m.Called(ctx, itemID, quantity)
	return args.Error(0)
}

func (m *MockRepository) DeleteItem(ctx context.Context, cartID, variantID string) (bool, error) {
	args := m.Called(ctx, cartID, variantID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ListItems(ctx context.Context, cartID string) ([]ItemRow, error) {
	args := m.Called(ctx, cartID)
	var rows []ItemRow
	if v := args.Get(0); v != nil {
		rows = v.([]ItemRow)
	}
	return rows, args.Error(1)
}

func (m *MockRepository) CountItems(ctx context.Context, userID string) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRepository) ClearForUser(ctx context.Context, q postgres.Queryer, userID string) error {
	args := m.Called(ctx, q, userID)
	return args.Error(0)
}

// memRepo is an in-memory Repository honoring the merge-on-conflict
// contract, for tests about observable cart state rather than call shapes.
type memRepo struct {
	carts map[string]*Cart            // userID -> cart
	items map[string]map[string]*Item // cartID -> variantID -> item
}

func newMemRepo() *memRepo {
	return &memRepo{carts: map[string]*Cart{}, items: map[string]map[string]*Item{}}
}

func (r *memRepo) GetOrCreate(ctx context.Context, userID string) (*Cart, error) {
	if c, ok := r.carts[userID]; ok {
		return c, nil
	}
	c := &Cart{ID: uuid.New().String(), UserID: userID}
	r.carts[userID] = c
	r.items[c.ID] = map[string]*Item{}
	return c, nil
}

func (r *memRepo) Get(ctx context.Context, userID string) (*Cart, error) {
	if c, ok := r.carts[userID]; ok {
		return c, nil
	}
	return nil, ErrCartNotFound
}

func (r *memRepo) UpsertItem(ctx context.Context, cartID, productID, variantID string, quantity int64) error {
	if existing, ok := r.items[cartID][variantID]; ok {
		existing.Quantity += quantity
		return nil
	}
	r.items[cartID][variantID] = &Item{
		ID: uuid.New().String(), CartID: cartID, ProductID: productID,
		VariantID: variantID, Quantity: quantity,
	}
	return nil
}

func (r *memRepo) GetItem(ctx context.Context, cartID, variantID string) (*Item, error) {
	if item, ok := r.items[cartID][variantID]; ok {
		return item, nil
	}
	return nil, ErrItemNotFound
}

func (r *memRepo) SetItemQuantity(ctx context.Context, itemID string, quantity int64) error {
	for _, byVariant := range r.items {
		for _, item := range byVariant {
			if item.ID == itemID {
				item.Quantity = quantity
				return nil
			}
		}
	}
	return ErrItemNotFound
}

func (r *memRepo) DeleteItem(ctx context.Context, cartID, variantID string) (bool, error) {
	if _, ok := r.items[cartID][variantID]; !ok {
		return false, nil
	}
	delete(r.items[cartID], variantID)
	return true, nil
}

func (r *memRepo) ListItems(ctx context.Context, cartID string) ([]ItemRow, error) {
	var rows []ItemRow
	for _, item := range r.items[cartID] {
		rows = append(rows, ItemRow{ProductID: item.ProductID, VariantID: item.VariantID, Quantity: item.Quantity})
	}
	return rows, nil
}

func (r *memRepo) CountItems(ctx context.Context, userID string) (int64, error) {
	c, ok := r.carts[userID]
	if !ok {
		return 0, nil
	}
	var total int64
	for _, item := range r.items[c.ID] {
		total += item.Quantity
	}
	return total, nil
}

func (r *memRepo) ClearForUser(ctx context.Context, q postgres.Queryer, userID string) error {
	if c, ok := r.carts[userID]; ok {
		r.items[c.ID] = map[string]*Item{}
	}
	return nil
}

func TestAddItemMergesQuantities(t *testing.T) {
	// Arrange
	repo := newMemRepo()
	uc := NewUseCase(repo)
	ctx := context.Background()

	// Act: same variant added twice with 2 and 3
	assert.NoError(t, uc.AddItem(ctx, "user-1", "p1", "v1", 2))
	assert.NoError(t, uc.AddItem(ctx, "user-1", "p1", "v1", 3))

	// Assert: one row with quantity 5, not two rows
	c, err := repo.Get(ctx, "user-1")
	assert.NoError(t, err)
	assert.Len(t, repo.items[c.ID], 1)
	item, err := repo.GetItem(ctx, c.ID, "v1")
	assert.NoError(t, err)
	assert.Equal(t, int64(5), item.Quantity)
}

func TestAddItemCreatesCartLazily(t *testing.T) {
	// Arrange
	repo := newMemRepo()
	uc := NewUseCase(repo)
	ctx := context.Background()

	_, err := repo.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrCartNotFound)

	// Act
	assert.NoError(t, uc.AddItem(ctx, "user-1", "p1", "v1", 1))

	// Assert
	_, err = repo.Get(ctx, "user-1")
	assert.NoError(t, err)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	repo := new(MockRepository)
	uc := NewUseCase(repo)

	assert.ErrorIs(t, uc.AddItem(context.Background(), "user-1", "p1", "v1", 0), ErrInvalidQuantity)
	assert.ErrorIs(t, uc.AddItem(context.Background(), "user-1", "p1", "v1", -2), ErrInvalidQuantity)
	repo.AssertNotCalled(t, "GetOrCreate", mock.Anything, mock.Anything)
}

func TestAdjustQuantityDecrementToDelete(t *testing.T) {
	// Arrange: a line at quantity 1 receiving -1 is deleted, never left at 0.
	repo := newMemRepo()
	uc := NewUseCase(repo)
	ctx := context.Background()

	assert.NoError(t, uc.AddItem(ctx, "user-1", "p1", "v1", 1))

	// Act
	assert.NoError(t, uc.AdjustQuantity(ctx, "user-1", "v1", -1))

	// Assert
	c, _ := repo.Get(ctx, "user-1")
	_, err := repo.GetItem(ctx, c.ID, "v1")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestAdjustQuantityIncrement(t *testing.T) {
	// Arrange
	repo := newMemRepo()
	uc := NewUseCase(repo)
	ctx := context.Background()

	assert.NoError(t, uc.AddItem(ctx, "user-1", "p1", "v1", 2))

	// Act
	assert.NoError(t, uc.AdjustQuantity(ctx, "user-1", "v1", 1))

	// Assert
	c, _ := repo.Get(ctx, "user-1")
	item, err := repo.GetItem(ctx, c.ID, "v1")
	assert.NoError(t, err)
	assert.Equal(t, int64(3), item.Quantity)
}

func TestAdjustQuantityZeroDeltaIsNoop(t *testing.T) {
	// Arrange: a strict mock; any repository call fails the test.
	repo := new(MockRepository)
	uc := NewUseCase(repo)

	// Act
	err := uc.AdjustQuantity(context.Background(), "user-1", "v1", 0)

	// Assert
	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestAdjustQuantityRejectsLargeDelta(t *testing.T) {
	uc := NewUseCase(new(MockRepository))
	assert.ErrorIs(t, uc.AdjustQuantity(context.Background(), "user-1", "v1", 2), ErrInvalidQuantity)
}

func TestAdjustQuantityMissingItem(t *testing.T) {
	// Arrange
	repo := newMemRepo()
	uc := NewUseCase(repo)
	ctx := context.Background()

	// No cart at all
	assert.ErrorIs(t, uc.AdjustQuantity(ctx, "user-1", "v1", 1), ErrItemNotFound)

	// Cart exists but the variant does not
	assert.NoError(t, uc.AddItem(ctx, "user-1", "p1", "v1", 1))
	assert.ErrorIs(t, uc.AdjustQuantity(ctx, "user-1", "v9", 1), ErrItemNotFound)
}

func TestRemoveItemAbsentIsNotAnError(t *testing.T) {
	// Arrange
	repo := newMemRepo()
	uc := NewUseCase(repo)
	ctx := context.Background()

	// Act: no cart exists
	removed, err := uc.RemoveItem(ctx, "user-1", "v1")

	// Assert
	assert.NoError(t, err)
	assert.False(t, removed)

	// With a cart but no matching line
	assert.NoError(t, uc.AddItem(ctx, "user-1", "p1", "v1", 1))
	removed, err = uc.RemoveItem(ctx, "user-1", "v9")
	assert.NoError(t, err)
	assert.False(t, removed)

	// And the real thing
	removed, err = uc.RemoveItem(ctx, "user-1", "v1")
	assert.NoError(t, err)
	assert.True(t, removed)
}

func TestListGroupedNoCart(t *testing.T) {
	uc := NewUseCase(newMemRepo())

	grouped, err := uc.ListGrouped(context.Background(), "user-1")

	assert.NoError(t, err)
	assert.Empty(t, grouped)
}
