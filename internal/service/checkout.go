package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	"github.com/BeoGonzalez/gamershop/internal/repository"
	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
)

// CartAccessor is the slice of cart behavior checkout needs: read the cart
// and empty it after a successful order. *CartService satisfies it.
type CartAccessor interface {
	Get(ctx context.Context, ownerKey string) (*domain.Cart, error)
	Clear(ctx context.Context, ownerKey string) error
}

// OrderSubmitter forwards a completed order to whatever fulfils it. The
// default implementation writes to PostgreSQL; a payment backend can take
// its place without touching the cart core.
type OrderSubmitter interface {
	Submit(ctx context.Context, order *domain.Order) error
}

// StoreSubmitter is the default OrderSubmitter: it records the order in the
// order repository.
type StoreSubmitter struct {
	repo repository.OrderRepository
}

// NewStoreSubmitter creates an OrderSubmitter backed by the order repository.
func NewStoreSubmitter(repo repository.OrderRepository) *StoreSubmitter {
	return &StoreSubmitter{repo: repo}
}

// Submit stores the order.
func (s *StoreSubmitter) Submit(ctx context.Context, order *domain.Order) error {
	return s.repo.Create(ctx, order)
}

// CheckoutService implements the checkout gate and the order read side.
type CheckoutService struct {
	carts     CartAccessor
	orders    repository.OrderRepository
	submitter OrderSubmitter
	producer  EventPublisher
	logger    *slog.Logger
}

// NewCheckoutService creates a new checkout service.
func NewCheckoutService(carts CartAccessor, orders repository.OrderRepository, submitter OrderSubmitter, producer EventPublisher, logger *slog.Logger) *CheckoutService {
	return &CheckoutService{
		carts:     carts,
		orders:    orders,
		submitter: submitter,
		producer:  producer,
		logger:    logger,
	}
}

// Checkout turns the session owner's cart into an order. The gate runs in
// order: an unauthenticated session is rejected before the cart is even read,
// then an empty cart is rejected, then the order is submitted. Only after a
// successful submission is the cart cleared. A failed submission leaves the
// cart exactly as it was.
func (s *CheckoutService) Checkout(ctx context.Context, session domain.Session, currency string) (*domain.Order, error) {
	if !session.Authenticated {
		return nil, apperrors.NotAuthenticated()
	}
	if currency != "" && len(currency) != 3 {
		return nil, apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}

	ownerKey := session.OwnerKey()

	cart, err := s.carts.Get(ctx, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("load cart for checkout: %w", err)
	}
	if cart.IsEmpty() {
		return nil, apperrors.EmptyCart()
	}

	if currency == "" {
		currency = cart.Currency
	}

	lines := make([]domain.CartLine, len(cart.Lines))
	copy(lines, cart.Lines)

	order := &domain.Order{
		ID:          uuid.New().String(),
		OwnerKey:    ownerKey,
		Lines:       lines,
		TotalAmount: cart.TotalAmount(),
		Currency:    currency,
		Status:      domain.OrderStatusPlaced,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.submitter.Submit(ctx, order); err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}

	// The order exists from here on; a failed clear must not undo it.
	if err := s.carts.Clear(ctx, ownerKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear cart after checkout",
			slog.String("owner_key", ownerKey),
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	if err := s.producer.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order.placed event",
			slog.String("order_id", order.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "order placed",
		slog.String("owner_key", ownerKey),
		slog.String("order_id", order.ID),
		slog.Int64("total_amount", order.TotalAmount),
		slog.Int("line_count", len(order.Lines)),
	)

	return order, nil
}

// GetOrder retrieves one of the session owner's orders.
func (s *CheckoutService) GetOrder(ctx context.Context, session domain.Session, orderID string) (*domain.Order, error) {
	if !session.Authenticated {
		return nil, apperrors.NotAuthenticated()
	}
	if orderID == "" {
		return nil, apperrors.InvalidInput("order id is required")
	}

	order, err := s.orders.GetByID(ctx, session.OwnerKey(), orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	return order, nil
}

// ListOrders retrieves the session owner's orders, newest first.
func (s *CheckoutService) ListOrders(ctx context.Context, session domain.Session) ([]*domain.Order, error) {
	if !session.Authenticated {
		return nil, apperrors.NotAuthenticated()
	}

	orders, err := s.orders.ListByOwner(ctx, session.OwnerKey())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	return orders, nil
}
