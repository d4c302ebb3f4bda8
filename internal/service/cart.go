package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	"github.com/BeoGonzalez/gamershop/internal/repository"
	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
)

// MaxLinesPerCart is the maximum number of distinct lines allowed in a cart.
const MaxLinesPerCart = 50

// ProductGetter fetches product snapshots from the catalog.
type ProductGetter interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

// EventPublisher publishes domain events. Publish failures never fail the
// operation that triggered them.
type EventPublisher interface {
	PublishCartUpdated(ctx context.Context, cart *domain.Cart) error
	PublishCartCleared(ctx context.Context, ownerKey string) error
	PublishOrderPlaced(ctx context.Context, order *domain.Order) error
}

// AddLineInput holds the parameters for adding a line to the cart. Price,
// name, and stock are never taken from the client; they are snapshotted
// from the catalog.
type AddLineInput struct {
	ProductID  string `json:"product_id" validate:"required"`
	VariantKey string `json:"variant_key"`
	Quantity   int    `json:"quantity" validate:"required,gte=1"`
}

// CartService implements the business logic for cart operations.
type CartService struct {
	repo     repository.CartRepository
	catalog  ProductGetter
	producer EventPublisher
	logger   *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, catalog ProductGetter, producer EventPublisher, logger *slog.Logger) *CartService {
	return &CartService{
		repo:     repo,
		catalog:  catalog,
		producer: producer,
		logger:   logger,
	}
}

// Get retrieves the cart for an owner. A missing slot yields an empty cart.
// A corrupt slot is recovered as an empty cart after a warning: losing a cart
// beats failing every storefront request.
func (s *CartService) Get(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	if ownerKey == "" {
		return nil, apperrors.InvalidInput("owner key is required")
	}

	cart, err := s.repo.Get(ctx, ownerKey)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.NewCart(ownerKey), nil
		}
		if errors.Is(err, apperrors.ErrCorruptState) {
			s.logger.WarnContext(ctx, "stored cart is corrupt, recovering as empty",
				slog.String("owner_key", ownerKey),
				slog.String("error", err.Error()),
			)
			return domain.NewCart(ownerKey), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// AddLine adds a product to the owner's cart. The product is fetched from the
// catalog and its name, price, image, and stock are snapshotted onto the line.
// If a line with the same (product, variant) pair exists, quantities merge.
// A quantity that would exceed the stock ceiling is rejected and the cart is
// left unchanged; the ceiling never clamps.
func (s *CartService) AddLine(ctx context.Context, ownerKey string, input AddLineInput) (*domain.Cart, error) {
	if ownerKey == "" {
		return nil, apperrors.InvalidInput("owner key is required")
	}
	if input.ProductID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if input.Quantity <= 0 {
		return nil, apperrors.InvalidInput("quantity must be greater than 0")
	}

	product, err := s.catalog.GetProduct(ctx, input.ProductID)
	if err != nil {
		return nil, fmt.Errorf("fetch product %s: %w", input.ProductID, err)
	}
	if !product.HasVariant(input.VariantKey) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("product %s has no variant %q", input.ProductID, input.VariantKey))
	}

	cart, err := s.Get(ctx, ownerKey)
	if err != nil {
		return nil, err
	}

	if idx := cart.FindLine(input.ProductID, input.VariantKey); idx >= 0 {
		line := &cart.Lines[idx]
		newQty := line.Quantity + input.Quantity
		if newQty > line.StockCeiling {
			return nil, apperrors.InsufficientStock(input.Quantity, line.StockCeiling-line.Quantity)
		}
		line.Quantity = newQty
	} else {
		if len(cart.Lines) >= MaxLinesPerCart {
			return nil, apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d lines", MaxLinesPerCart))
		}
		if input.Quantity > product.Stock {
			return nil, apperrors.InsufficientStock(input.Quantity, product.Stock)
		}
		cart.Lines = append(cart.Lines, domain.CartLine{
			ProductID:    product.ID,
			VariantKey:   input.VariantKey,
			Name:         product.Name,
			UnitPrice:    product.Price,
			Quantity:     input.Quantity,
			StockCeiling: product.Stock,
			ImageURL:     product.ImageURL,
		})
	}

	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "line added to cart",
		slog.String("owner_key", ownerKey),
		slog.String("product_id", input.ProductID),
		slog.String("variant_key", input.VariantKey),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// UpdateQuantity sets the quantity of an existing line. Quantity 0 removes
// the line. Values above the line's stock ceiling are rejected.
func (s *CartService) UpdateQuantity(ctx context.Context, ownerKey, productID, variantKey string, quantity int) (*domain.Cart, error) {
	if ownerKey == "" {
		return nil, apperrors.InvalidInput("owner key is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}
	if quantity < 0 {
		return nil, apperrors.InvalidInput("quantity must not be negative")
	}

	cart, err := s.Get(ctx, ownerKey)
	if err != nil {
		return nil, err
	}

	idx := cart.FindLine(productID, variantKey)
	if idx < 0 {
		return nil, apperrors.NotFound("cart line", productID+"/"+variantKey)
	}

	if quantity == 0 {
		cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	} else {
		if quantity > cart.Lines[idx].StockCeiling {
			return nil, apperrors.InsufficientStock(quantity, cart.Lines[idx].StockCeiling)
		}
		cart.Lines[idx].Quantity = quantity
	}

	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "cart line quantity updated",
		slog.String("owner_key", ownerKey),
		slog.String("product_id", productID),
		slog.String("variant_key", variantKey),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveLine removes a line from the cart. Removing a line that is not there
// is a no-op success: the end state is the same either way.
func (s *CartService) RemoveLine(ctx context.Context, ownerKey, productID, variantKey string) (*domain.Cart, error) {
	if ownerKey == "" {
		return nil, apperrors.InvalidInput("owner key is required")
	}
	if productID == "" {
		return nil, apperrors.InvalidInput("product id is required")
	}

	cart, err := s.Get(ctx, ownerKey)
	if err != nil {
		return nil, err
	}

	idx := cart.FindLine(productID, variantKey)
	if idx < 0 {
		return cart, nil
	}

	cart.Lines = append(cart.Lines[:idx], cart.Lines[idx+1:]...)
	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "line removed from cart",
		slog.String("owner_key", ownerKey),
		slog.String("product_id", productID),
		slog.String("variant_key", variantKey),
	)

	return cart, nil
}

// Clear empties the owner's cart. The slot is kept and persisted with zero
// lines rather than deleted, so a subsequent load sees a cleared cart.
func (s *CartService) Clear(ctx context.Context, ownerKey string) error {
	if ownerKey == "" {
		return apperrors.InvalidInput("owner key is required")
	}

	cart, err := s.Get(ctx, ownerKey)
	if err != nil {
		return err
	}

	cart.Lines = []domain.CartLine{}
	cart.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, cart); err != nil {
		return fmt.Errorf("save cleared cart: %w", err)
	}

	if err := s.producer.PublishCartCleared(ctx, ownerKey); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
			slog.String("owner_key", ownerKey),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("owner_key", ownerKey),
	)

	return nil
}

func (s *CartService) publishUpdated(ctx context.Context, cart *domain.Cart) {
	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("owner_key", cart.OwnerKey),
			slog.String("error", err.Error()),
		)
	}
}
