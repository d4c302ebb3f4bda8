package domain

import "time"

// Order statuses.
const (
	OrderStatusPlaced = "placed"
)

// Order is the result of a successful checkout: an immutable copy of the
// cart lines at submission time plus the computed total.
type Order struct {
	ID          string     `json:"id"`
	OwnerKey    string     `json:"owner_key"`
	Lines       []CartLine `json:"lines"`
	TotalAmount int64      `json:"total_amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
}
