package domain

import "time"

// Fill represents one execution against a single order. Each match
// produces one fill per order touched. Fills are immutable and are
// appended to a per-symbol log in execution order.
type Fill struct {
	FillID     string
	OrderID    string
	Account    string
	Symbol     string
	Side       Side
	Price      int64 // cents
	Quantity   int64
	ExecutedAt time.Time
}
