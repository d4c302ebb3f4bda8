package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	pkgkafka "github.com/BeoGonzalez/gamershop/pkg/kafka"
)

// Kafka topic constants for storefront domain events.
const (
	TopicCartUpdated = "gamershop.cart.updated"
	TopicCartCleared = "gamershop.cart.cleared"
	TopicOrderPlaced = "gamershop.order.placed"
)

// Aggregate type constants.
const (
	AggregateTypeCart  = "cart"
	AggregateTypeOrder = "order"
)

// Source identifier for events originating from this service.
const SourceShopService = "gamershop-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	OwnerKey    string         `json:"owner_key"`
	Lines       []CartLineData `json:"lines"`
	LineCount   int            `json:"line_count"`
	UnitCount   int            `json:"unit_count"`
	TotalAmount int64          `json:"total_amount"`
	Currency    string         `json:"currency"`
}

// CartLineData is the line payload within cart events.
type CartLineData struct {
	ProductID  string `json:"product_id"`
	VariantKey string `json:"variant_key"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int    `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	OwnerKey string `json:"owner_key"`
}

// OrderPlacedData is the payload for an order.placed event.
type OrderPlacedData struct {
	OrderID     string `json:"order_id"`
	OwnerKey    string `json:"owner_key"`
	LineCount   int    `json:"line_count"`
	TotalAmount int64  `json:"total_amount"`
	Currency    string `json:"currency"`
}

// Producer publishes storefront domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	lines := make([]CartLineData, len(cart.Lines))
	for i, line := range cart.Lines {
		lines[i] = CartLineData{
			ProductID:  line.ProductID,
			VariantKey: line.VariantKey,
			Name:       line.Name,
			UnitPrice:  line.UnitPrice,
			Quantity:   line.Quantity,
		}
	}

	data := CartUpdatedData{
		OwnerKey:    cart.OwnerKey,
		Lines:       lines,
		LineCount:   cart.LineCount(),
		UnitCount:   cart.UnitCount(),
		TotalAmount: cart.TotalAmount(),
		Currency:    cart.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.OwnerKey, AggregateTypeCart, SourceShopService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("owner_key", cart.OwnerKey),
		slog.Int("line_count", cart.LineCount()),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, ownerKey string) error {
	data := CartClearedData{OwnerKey: ownerKey}

	event, err := pkgkafka.NewEvent(TopicCartCleared, ownerKey, AggregateTypeCart, SourceShopService, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("owner_key", ownerKey),
	)

	return nil
}

// PublishOrderPlaced publishes an order.placed event.
func (p *Producer) PublishOrderPlaced(ctx context.Context, order *domain.Order) error {
	data := OrderPlacedData{
		OrderID:     order.ID,
		OwnerKey:    order.OwnerKey,
		LineCount:   len(order.Lines),
		TotalAmount: order.TotalAmount,
		Currency:    order.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicOrderPlaced, order.ID, AggregateTypeOrder, SourceShopService, data)
	if err != nil {
		return fmt.Errorf("create order.placed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderPlaced, event); err != nil {
		return fmt.Errorf("publish order.placed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.placed event",
		slog.String("order_id", order.ID),
		slog.String("owner_key", order.OwnerKey),
	)

	return nil
}
