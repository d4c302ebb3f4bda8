package repository

import (
	"context"

	"github.com/BeoGonzalez/gamershop/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its owner key. A missing slot yields
	// ErrNotFound; an undecodable slot yields ErrCorruptState.
	Get(ctx context.Context, ownerKey string) (*domain.Cart, error)

	// Save persists a cart, overwriting any existing cart for the owner.
	// An empty line set is a valid cart and is persisted as such.
	Save(ctx context.Context, cart *domain.Cart) error
}

// OrderRepository defines the interface for order persistence operations.
type OrderRepository interface {
	// Create stores a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by ID, scoped to its owner.
	GetByID(ctx context.Context, ownerKey, orderID string) (*domain.Order, error)

	// ListByOwner retrieves all orders for an owner, newest first.
	ListByOwner(ctx context.Context, ownerKey string) ([]*domain.Order, error)
}
