package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
)

const keyPrefix = "cart:"

// CartRepository implements repository.CartRepository using Redis. Each cart
// lives under cart:<ownerKey> as a JSON document.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

// Get retrieves a cart by owner key. A missing slot yields ErrNotFound. A
// slot that no longer decodes as a cart yields ErrCorruptState so callers
// can tell "nothing stored" apart from "stored garbage".
func (r *CartRepository) Get(ctx context.Context, ownerKey string) (*domain.Cart, error) {
	key := keyPrefix + ownerKey

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperrors.NotFound("cart", ownerKey)
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart %q: %w", key, apperrors.ErrCorruptState)
	}
	if cart.OwnerKey == "" {
		return nil, fmt.Errorf("cart %q has no owner: %w", key, apperrors.ErrCorruptState)
	}

	return &cart, nil
}

// Save persists a cart with the configured TTL. An empty line set is stored
// as-is: clearing a cart keeps the slot around with zero lines.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	key := keyPrefix + cart.OwnerKey

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set cart: %w", err)
	}

	return nil
}
