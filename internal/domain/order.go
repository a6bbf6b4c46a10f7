package domain

import "time"

// OrderType distinguishes limit, market, and stop orders.
type OrderType string

const (
	OrderTypeLimit  OrderType = "limit"
	OrderTypeMarket OrderType = "market"
	OrderTypeStop   OrderType = "stop"
)

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderStatus represents the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "pending"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled          OrderStatus = "filled"
	OrderStatusCancelled       OrderStatus = "cancelled"
	OrderStatusRejected        OrderStatus = "rejected"
)

// Order represents an instruction submitted to the order book engine.
// Identity fields are immutable once assigned; status and fill fields
// are mutated only under the per-symbol book lock.
type Order struct {
	OrderID           string
	Account           string
	Type              OrderType
	Side              Side
	Symbol            string
	Price             int64 // cents; 0 for market orders
	StopPrice         int64 // cents; 0 unless type is stop
	Quantity          int64
	FilledQuantity    int64
	RemainingQuantity int64
	Status            OrderStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Fills             []*Fill
}

// Terminal reports whether the order is in a terminal state. Terminal
// orders cannot be cancelled or amended.
func (o *Order) Terminal() bool {
	switch o.Status {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// AverageFillPrice computes the volume-weighted average execution price
// as sum(fill.price × fill.quantity) / filled_quantity using integer
// arithmetic. Returns (price, true) when fills exist, or (0, false)
// when nothing has been executed.
func (o *Order) AverageFillPrice() (int64, bool) {
	if len(o.Fills) == 0 || o.FilledQuantity == 0 {
		return 0, false
	}
	var total int64
	for _, f := range o.Fills {
		total += f.Price * f.Quantity
	}
	return total / o.FilledQuantity, true
}
