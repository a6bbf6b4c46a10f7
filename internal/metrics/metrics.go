// Package metrics defines the Prometheus instrumentation for the
// trading core, registered via promauto and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrdersPlaced counts accepted orders by type and side.
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "orders_placed_total",
		Help:      "Total number of orders accepted by the engine",
	},
	[]string{"symbol", "type", "side"},
)

// OrdersRejected counts orders rejected during validation.
var OrdersRejected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "orders_rejected_total",
		Help:      "Total number of orders rejected before entering the book",
	},
	[]string{"symbol"},
)

// OrdersCancelled counts successful cancellations.
var OrdersCancelled = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "orders_cancelled_total",
		Help:      "Total number of orders cancelled",
	},
	[]string{"symbol"},
)

// FillsExecuted counts fills produced by matching passes. Each match
// produces two fills, one per side.
var FillsExecuted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "fills_executed_total",
		Help:      "Total number of fills produced by the matching engine",
	},
	[]string{"symbol"},
)

// FilledQuantity accumulates the executed quantity per symbol.
var FilledQuantity = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "filled_quantity_total",
		Help:      "Total quantity executed by the matching engine",
	},
	[]string{"symbol"},
)

// RestingOrders tracks orders currently resting on a book side.
var RestingOrders = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradecore",
		Subsystem: "engine",
		Name:      "resting_orders",
		Help:      "Current number of orders resting on the book",
	},
	[]string{"symbol", "side"},
)

// TradesIngested counts external trade prints accepted by the feed.
var TradesIngested = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "marketdata",
		Name:      "trades_ingested_total",
		Help:      "Total number of external trade prints ingested",
	},
	[]string{"symbol"},
)

// CandlesClosed counts candles closed per symbol and timeframe.
var CandlesClosed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "marketdata",
		Name:      "candles_closed_total",
		Help:      "Total number of candles closed",
	},
	[]string{"symbol", "timeframe"},
)

// WSClients tracks connected websocket clients.
var WSClients = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradecore",
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Current number of connected websocket clients",
	},
)

// WSMessagesDropped counts messages dropped because a client's send
// buffer was full.
var WSMessagesDropped = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "tradecore",
		Subsystem: "ws",
		Name:      "messages_dropped_total",
		Help:      "Total number of websocket messages dropped for slow clients",
	},
)

// RecordPlacement records an accepted order and its fills.
func RecordPlacement(symbol, orderType, side string, fillCount int, filledQty int64) {
	OrdersPlaced.WithLabelValues(symbol, orderType, side).Inc()
	if fillCount > 0 {
		FillsExecuted.WithLabelValues(symbol).Add(float64(fillCount))
		FilledQuantity.WithLabelValues(symbol).Add(float64(filledQty))
	}
}

// UpdateBookDepth sets the resting-order gauges for a symbol.
func UpdateBookDepth(symbol string, bids, asks int) {
	RestingOrders.WithLabelValues(symbol, "buy").Set(float64(bids))
	RestingOrders.WithLabelValues(symbol, "sell").Set(float64(asks))
}
