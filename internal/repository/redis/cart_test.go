package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewCartRepository(client, 24*time.Hour)
	return repo, mr
}

func sampleCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Cart{
		OwnerKey: "ana",
		Lines: []domain.CartLine{
			{
				ProductID:    "prod-1",
				VariantKey:   "rojo",
				Name:         "Mouse Gamer",
				UnitPrice:    20000,
				Quantity:     2,
				StockCeiling: 5,
				ImageURL:     "https://img.gamershop.cl/mouse.jpg",
			},
		},
		Currency:  "CLP",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCartRepository_Get_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	data, err := json.Marshal(cart)
	require.NoError(t, err)

	// Set data directly in miniredis.
	require.NoError(t, mr.Set("cart:"+cart.OwnerKey, string(data)))

	got, err := repo.Get(context.Background(), cart.OwnerKey)
	require.NoError(t, err)
	assert.Equal(t, cart.OwnerKey, got.OwnerKey)
	assert.Equal(t, cart.Currency, got.Currency)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "prod-1", got.Lines[0].ProductID)
	assert.Equal(t, "rojo", got.Lines[0].VariantKey)
	assert.Equal(t, "Mouse Gamer", got.Lines[0].Name)
	assert.Equal(t, int64(20000), got.Lines[0].UnitPrice)
	assert.Equal(t, 2, got.Lines[0].Quantity)
	assert.Equal(t, 5, got.Lines[0].StockCeiling)
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	got, err := repo.Get(context.Background(), "nonexistent-user")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_CorruptJSON(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, mr.Set("cart:user-bad", "{{not-valid-json"))

	got, err := repo.Get(context.Background(), "user-bad")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorruptState)
}

func TestCartRepository_Get_ValidJSONWrongShape(t *testing.T) {
	repo, mr := setupTestRedis(t)

	// Decodes as JSON but carries none of the cart fields.
	require.NoError(t, mr.Set("cart:user-bad", `{"foo": "bar"}`))

	got, err := repo.Get(context.Background(), "user-bad")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCorruptState)
}

// ---------------------------------------------------------------------------
// Save
// ---------------------------------------------------------------------------

func TestCartRepository_Save_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	err := repo.Save(context.Background(), cart)
	require.NoError(t, err)

	assert.True(t, mr.Exists("cart:"+cart.OwnerKey))

	raw, err := mr.Get("cart:" + cart.OwnerKey)
	require.NoError(t, err)

	var stored domain.Cart
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, cart.OwnerKey, stored.OwnerKey)
	assert.Equal(t, cart.Currency, stored.Currency)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, "prod-1", stored.Lines[0].ProductID)
}

func TestCartRepository_Save_EmptyLinesKeepsSlot(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))

	cart.Lines = []domain.CartLine{}
	require.NoError(t, repo.Save(context.Background(), cart))

	// The slot stays around holding an empty cart.
	assert.True(t, mr.Exists("cart:"+cart.OwnerKey))

	got, err := repo.Get(context.Background(), cart.OwnerKey)
	require.NoError(t, err)
	assert.Empty(t, got.Lines)
	assert.Equal(t, cart.OwnerKey, got.OwnerKey)
}

func TestCartRepository_Save_TTL(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	err := repo.Save(context.Background(), cart)
	require.NoError(t, err)

	ttl := mr.TTL("cart:" + cart.OwnerKey)
	assert.True(t, ttl > 23*time.Hour, "expected TTL > 23h, got %v", ttl)
	assert.True(t, ttl <= 24*time.Hour, "expected TTL <= 24h, got %v", ttl)
}

func TestCartRepository_Save_Overwrite(t *testing.T) {
	repo, _ := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))

	cart.Lines[0].Quantity = 4
	require.NoError(t, repo.Save(context.Background(), cart))

	got, err := repo.Get(context.Background(), cart.OwnerKey)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 4, got.Lines[0].Quantity)
}
