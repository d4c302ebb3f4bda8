package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/BeoGonzalez/gamershop/internal/domain"
	apperrors "github.com/BeoGonzalez/gamershop/pkg/errors"
)

// DB is the subset of pgxpool.Pool the repository needs. Tests satisfy it
// with pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderRepository implements repository.OrderRepository using PostgreSQL.
// Order lines are stored as a JSONB column: orders are immutable snapshots,
// never queried by line.
type OrderRepository struct {
	db DB
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(db DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, order *domain.Order) error {
	linesJSON, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("marshal order lines: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, owner_key, lines, total_amount, currency, status, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		)`

	_, err = r.db.Exec(ctx, query,
		order.ID,
		order.OwnerKey,
		linesJSON,
		order.TotalAmount,
		order.Currency,
		order.Status,
		order.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by ID. The owner key is part of the lookup so
// one user cannot read another's orders.
func (r *OrderRepository) GetByID(ctx context.Context, ownerKey, orderID string) (*domain.Order, error) {
	query := `
		SELECT id, owner_key, lines, total_amount, currency, status, created_at
		FROM orders
		WHERE id = $1 AND owner_key = $2`

	var (
		order     domain.Order
		linesJSON []byte
	)

	err := r.db.QueryRow(ctx, query, orderID, ownerKey).Scan(
		&order.ID,
		&order.OwnerKey,
		&linesJSON,
		&order.TotalAmount,
		&order.Currency,
		&order.Status,
		&order.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", orderID)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	if err := unmarshalLines(&order, linesJSON); err != nil {
		return nil, err
	}

	return &order, nil
}

// ListByOwner retrieves all orders for an owner, newest first.
func (r *OrderRepository) ListByOwner(ctx context.Context, ownerKey string) ([]*domain.Order, error) {
	query := `
		SELECT id, owner_key, lines, total_amount, currency, status, created_at
		FROM orders
		WHERE owner_key = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		var (
			order     domain.Order
			linesJSON []byte
		)
		if err := rows.Scan(
			&order.ID,
			&order.OwnerKey,
			&linesJSON,
			&order.TotalAmount,
			&order.Currency,
			&order.Status,
			&order.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan order row: %w", err)
		}
		if err := unmarshalLines(&order, linesJSON); err != nil {
			return nil, err
		}
		orders = append(orders, &order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func unmarshalLines(order *domain.Order, linesJSON []byte) error {
	if linesJSON != nil {
		if err := json.Unmarshal(linesJSON, &order.Lines); err != nil {
			return fmt.Errorf("unmarshal order lines: %w", err)
		}
	}
	if order.Lines == nil {
		order.Lines = []domain.CartLine{}
	}
	return nil
}
