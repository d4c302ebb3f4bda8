package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
)

// --- Mock Repository ---

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	args := m.Called(ctx, ownerKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

// --- Mock Catalog ---

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

// --- Stub Publisher ---

// stubPublisher records published events; its error fields let tests force
// publish failures.
type stubPublisher struct {
	updatedCalls int
	clearedCalls int
	placedCalls  int
	err          error
}

func (p *stubPublisher) PublishCartUpdated(_ context.Context, _ *domain.Cart) error {
	p.updatedCalls++
	return p.err
}

func (p *stubPublisher) PublishCartCleared(_ context.Context, _ string) error {
	p.clearedCalls++
	return p.err
}

func (p *stubPublisher) PublishOrderPlaced(_ context.Context, _ *domain.Order) error {
	p.placedCalls++
	return p.err
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestCartService(repo *mockCartRepository, catalog *mockCatalog) (*CartService, *stubPublisher) {
	pub := &stubPublisher{}
	return NewCartService(repo, catalog, pub, newTestLogger()), pub
}

func mouseProduct() *domain.Product {
	return &domain.Product{
		ID:       "mouse-rgb",
		Name:     "Mouse Gamer RGB",
		Price:    20000,
		Stock:    5,
		Category: "perifericos",
		ImageURL: "https://img.gamershop.cl/mouse.jpg",
	}
}

func cartWithMouse(ownerKey string, quantity int) *domain.Cart {
	cart := domain.NewCart(ownerKey)
	cart.Lines = []domain.CartLine{
		{
			ProductID:    "mouse-rgb",
			VariantKey:   "",
			Name:         "Mouse Gamer RGB",
			UnitPrice:    20000,
			Quantity:     quantity,
			StockCeiling: 5,
			ImageURL:     "https://img.gamershop.cl/mouse.jpg",
		},
	}
	return cart
}

// --- Get ---

func TestGet_MissingSlotYieldsEmptyCart(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(nil, apperrors.NotFound("cart", "ana"))

	cart, err := svc.Get(ctx, "ana")

	require.NoError(t, err)
	assert.Equal(t, "ana", cart.OwnerKey)
	assert.True(t, cart.IsEmpty())
	repo.AssertExpectations(t)
}

func TestGet_CorruptSlotRecoveredAsEmpty(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(nil, fmt.Errorf("unmarshal cart: %w", apperrors.ErrCorruptState))

	cart, err := svc.Get(ctx, "ana")

	require.NoError(t, err)
	assert.Equal(t, "ana", cart.OwnerKey)
	assert.True(t, cart.IsEmpty())
	repo.AssertExpectations(t)
}

func TestGet_RepositoryErrorPropagates(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(nil, errors.New("redis down"))

	cart, err := svc.Get(ctx, "ana")

	assert.Nil(t, cart)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
}

func TestGet_EmptyOwnerKey(t *testing.T) {
	svc, _ := newTestCartService(new(mockCartRepository), new(mockCatalog))

	cart, err := svc.Get(context.Background(), "")

	assert.Nil(t, cart)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- AddLine ---

func TestAddLine_NewLineSnapshotsProduct(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, pub := newTestCartService(repo, catalog)
	ctx := context.Background()

	catalog.On("GetProduct", ctx, "mouse-rgb").Return(mouseProduct(), nil)
	repo.On("Get", ctx, "ana").Return(nil, apperrors.NotFound("cart", "ana"))
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", Quantity: 2})

	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	line := cart.Lines[0]
	assert.Equal(t, "mouse-rgb", line.ProductID)
	assert.Equal(t, "Mouse Gamer RGB", line.Name)
	assert.Equal(t, int64(20000), line.UnitPrice)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, 5, line.StockCeiling)
	assert.Equal(t, int64(40000), cart.TotalAmount())
	assert.Equal(t, 1, pub.updatedCalls)
	repo.AssertExpectations(t)
	catalog.AssertExpectations(t)
}

func TestAddLine_SamePairMergesIntoOneLine(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, _ := newTestCartService(repo, catalog)
	ctx := context.Background()

	catalog.On("GetProduct", ctx, "mouse-rgb").Return(mouseProduct(), nil)
	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 1), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", Quantity: 1})

	require.NoError(t, err)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.Lines[0].Quantity)
}

func TestAddLine_DifferentVariantKeyGetsOwnLine(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, _ := newTestCartService(repo, catalog)
	ctx := context.Background()

	product := mouseProduct()
	product.Variants = []domain.ProductVariant{{Key: "rojo", Label: "Rojo"}}
	catalog.On("GetProduct", ctx, "mouse-rgb").Return(product, nil)
	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 1), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", VariantKey: "rojo", Quantity: 1})

	require.NoError(t, err)
	require.Len(t, cart.Lines, 2)
	assert.Equal(t, "", cart.Lines[0].VariantKey)
	assert.Equal(t, "rojo", cart.Lines[1].VariantKey)
}

func TestAddLine_RejectsQuantityAboveStock(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, pub := newTestCartService(repo, catalog)
	ctx := context.Background()

	product := mouseProduct()
	product.Stock = 1
	catalog.On("GetProduct", ctx, "mouse-rgb").Return(product, nil)
	repo.On("Get", ctx, "ana").Return(nil, apperrors.NotFound("cart", "ana"))

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", Quantity: 2})

	assert.Nil(t, cart)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 2, appErr.Requested)
	assert.Equal(t, 1, appErr.Available)

	// Nothing persisted, nothing published.
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, 0, pub.updatedCalls)
}

func TestAddLine_MergeRejectedWhenCeilingExceeded(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, _ := newTestCartService(repo, catalog)
	ctx := context.Background()

	// 4 already in cart against a ceiling of 5; adding 3 more must report
	// only 1 available.
	catalog.On("GetProduct", ctx, "mouse-rgb").Return(mouseProduct(), nil)
	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 4), nil)

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", Quantity: 3})

	assert.Nil(t, cart)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 3, appErr.Requested)
	assert.Equal(t, 1, appErr.Available)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAddLine_MergeUsesLineCeilingSnapshot(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, _ := newTestCartService(repo, catalog)
	ctx := context.Background()

	// The catalog now reports more stock, but the line's snapshot ceiling
	// still governs the merge.
	product := mouseProduct()
	product.Stock = 100
	catalog.On("GetProduct", ctx, "mouse-rgb").Return(product, nil)
	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 5), nil)

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", Quantity: 1})

	assert.Nil(t, cart)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
}

func TestAddLine_UnknownVariantRejected(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, _ := newTestCartService(repo, catalog)
	ctx := context.Background()

	catalog.On("GetProduct", ctx, "mouse-rgb").Return(mouseProduct(), nil)

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", VariantKey: "dorado", Quantity: 1})

	assert.Nil(t, cart)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddLine_ProductNotFound(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, _ := newTestCartService(repo, catalog)
	ctx := context.Background()

	catalog.On("GetProduct", ctx, "ghost").Return(nil, apperrors.NotFound("product", "ghost"))

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "ghost", Quantity: 1})

	assert.Nil(t, cart)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestAddLine_InvalidInput(t *testing.T) {
	svc, _ := newTestCartService(new(mockCartRepository), new(mockCatalog))
	ctx := context.Background()

	_, err := svc.AddLine(ctx, "", AddLineInput{ProductID: "mouse-rgb", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.AddLine(ctx, "ana", AddLineInput{ProductID: "", Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", Quantity: 0})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddLine_PublishFailureDoesNotFailOperation(t *testing.T) {
	repo := new(mockCartRepository)
	catalog := new(mockCatalog)
	svc, pub := newTestCartService(repo, catalog)
	pub.err = errors.New("broker unreachable")
	ctx := context.Background()

	catalog.On("GetProduct", ctx, "mouse-rgb").Return(mouseProduct(), nil)
	repo.On("Get", ctx, "ana").Return(nil, apperrors.NotFound("cart", "ana"))
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: "mouse-rgb", Quantity: 1})

	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	assert.Equal(t, 1, pub.updatedCalls)
}

// --- UpdateQuantity ---

func TestUpdateQuantity_SetsQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 1), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.UpdateQuantity(ctx, "ana", "mouse-rgb", "", 4)

	require.NoError(t, err)
	assert.Equal(t, 4, cart.Lines[0].Quantity)
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.UpdateQuantity(ctx, "ana", "mouse-rgb", "", 0)

	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestUpdateQuantity_AboveCeilingRejected(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)

	cart, err := svc.UpdateQuantity(ctx, "ana", "mouse-rgb", "", 6)

	assert.Nil(t, cart)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 6, appErr.Requested)
	assert.Equal(t, 5, appErr.Available)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestUpdateQuantity_UnknownLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)

	cart, err := svc.UpdateQuantity(ctx, "ana", "keyboard", "", 1)

	assert.Nil(t, cart)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestUpdateQuantity_NegativeRejected(t *testing.T) {
	svc, _ := newTestCartService(new(mockCartRepository), new(mockCatalog))

	_, err := svc.UpdateQuantity(context.Background(), "ana", "mouse-rgb", "", -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- RemoveLine ---

func TestRemoveLine_RemovesMatchingLine(t *testing.T) {
	repo := new(mockCartRepository)
	svc, pub := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.RemoveLine(ctx, "ana", "mouse-rgb", "")

	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, 1, pub.updatedCalls)
}

func TestRemoveLine_AbsentLineIsNoOp(t *testing.T) {
	repo := new(mockCartRepository)
	svc, pub := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)

	cart, err := svc.RemoveLine(ctx, "ana", "keyboard", "")

	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	// No-op means no persist and no event.
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, 0, pub.updatedCalls)
}

func TestRemoveLine_TwiceSecondIsNoOp(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil).Once()
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil).Once()
	emptied := domain.NewCart("ana")
	repo.On("Get", ctx, "ana").Return(emptied, nil).Once()

	_, err := svc.RemoveLine(ctx, "ana", "mouse-rgb", "")
	require.NoError(t, err)

	cart, err := svc.RemoveLine(ctx, "ana", "mouse-rgb", "")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	repo.AssertExpectations(t)
}

func TestRemoveLine_VariantKeyMustMatch(t *testing.T) {
	repo := new(mockCartRepository)
	svc, _ := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)

	cart, err := svc.RemoveLine(ctx, "ana", "mouse-rgb", "rojo")

	require.NoError(t, err)
	assert.Len(t, cart.Lines, 1)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

// --- Clear ---

func TestClear_PersistsEmptyLineSet(t *testing.T) {
	repo := new(mockCartRepository)
	svc, pub := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)
	repo.On("Save", ctx, mock.MatchedBy(func(c *domain.Cart) bool {
		return c.OwnerKey == "ana" && len(c.Lines) == 0
	})).Return(nil)

	err := svc.Clear(ctx, "ana")

	require.NoError(t, err)
	assert.Equal(t, 1, pub.clearedCalls)
	repo.AssertExpectations(t)
}

func TestClear_SaveErrorPropagates(t *testing.T) {
	repo := new(mockCartRepository)
	svc, pub := newTestCartService(repo, new(mockCatalog))
	ctx := context.Background()

	repo.On("Get", ctx, "ana").Return(cartWithMouse("ana", 2), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(errors.New("redis down"))

	err := svc.Clear(ctx, "ana")

	require.Error(t, err)
	assert.Equal(t, 0, pub.clearedCalls)
}

// --- Total invariant across random sequences ---

// inMemoryCartRepo is a map-backed repository for sequence tests.
type inMemoryCartRepo struct {
	mu    sync.Mutex
	carts map[string]*domain.Cart
}

func newInMemoryCartRepo() *inMemoryCartRepo {
	return &inMemoryCartRepo{carts: make(map[string]*domain.Cart)}
}

func (r *inMemoryCartRepo) Get(_ context.Context, ownerKey string) (*domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[ownerKey]
	if !ok {
		return nil, apperrors.NotFound("cart", ownerKey)
	}
	cp := *cart
	cp.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return &cp, nil
}

func (r *inMemoryCartRepo) Save(_ context.Context, cart *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cart
	cp.Lines = append([]domain.CartLine(nil), cart.Lines...)
	r.carts[cart.OwnerKey] = &cp
	return nil
}

func TestTotal_HoldsAcrossRandomSequences(t *testing.T) {
	catalog := new(mockCatalog)
	products := make(map[string]*domain.Product)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("prod-%d", i)
		products[id] = &domain.Product{
			ID:    id,
			Name:  fmt.Sprintf("Producto %d", i),
			Price: int64(1000 * (i + 1)),
			Stock: 10,
		}
		catalog.On("GetProduct", mock.Anything, id).Return(products[id], nil)
	}

	repo := newInMemoryCartRepo()
	svc := NewCartService(repo, catalog, &stubPublisher{}, newTestLogger())
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	for step := 0; step < 200; step++ {
		id := fmt.Sprintf("prod-%d", rng.Intn(6))
		switch rng.Intn(3) {
		case 0:
			// Adds may hit the ceiling; InsufficientStock leaves state valid.
			_, err := svc.AddLine(ctx, "ana", AddLineInput{ProductID: id, Quantity: 1 + rng.Intn(3)})
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)
			}
		case 1:
			_, err := svc.RemoveLine(ctx, "ana", id, "")
			require.NoError(t, err)
		case 2:
			q := rng.Intn(11)
			_, err := svc.UpdateQuantity(ctx, "ana", id, "", q)
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrNotFound)
			}
		}

		cart, err := svc.Get(ctx, "ana")
		require.NoError(t, err)

		var want int64
		seen := make(map[string]bool)
		for _, line := range cart.Lines {
			key := line.ProductID + "/" + line.VariantKey
			assert.False(t, seen[key], "duplicate line for %s", key)
			seen[key] = true
			assert.GreaterOrEqual(t, line.Quantity, 1)
			assert.LessOrEqual(t, line.Quantity, line.StockCeiling)
			want += line.UnitPrice * int64(line.Quantity)
		}
		assert.Equal(t, want, cart.TotalAmount())
	}
}
