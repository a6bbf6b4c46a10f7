package service

import (
	"fmt"
	"regexp"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/engine"
	"github.com/efreitasn/tradecore/internal/metrics"
	"github.com/efreitasn/tradecore/internal/store"
)

var (
	accountRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	orderSymbolRegex = regexp.MustCompile(`^[A-Z]{1,10}$`)
)

// ValidOrderStatuses lists all valid order status values for validation.
var ValidOrderStatuses = map[domain.OrderStatus]bool{
	domain.OrderStatusPending:         true,
	domain.OrderStatusPartiallyFilled: true,
	domain.OrderStatusFilled:          true,
	domain.OrderStatusCancelled:       true,
	domain.OrderStatusRejected:        true,
}

// PlaceOrderRequest represents the input for order placement.
type PlaceOrderRequest struct {
	Type      domain.OrderType
	Account   string
	Side      domain.Side
	Symbol    string
	Price     *float64 // required for limit, must be nil otherwise
	StopPrice *float64 // required for stop, must be nil otherwise
	Quantity  int64
}

// AmendOrderRequest represents the input for order amendment. Price
// replaces the limit price, or the trigger price for stop orders.
type AmendOrderRequest struct {
	OrderID  string
	Price    float64
	Quantity int64
}

// OrderService handles order placement, retrieval, amendment,
// cancellation, and listing.
type OrderService struct {
	matcher    *engine.Matcher
	orderStore *store.OrderStore
	webhookSvc *WebhookService
	registry   *domain.InstrumentRegistry
}

// NewOrderService creates a new OrderService with the given dependencies.
func NewOrderService(
	matcher *engine.Matcher,
	orderStore *store.OrderStore,
	webhookSvc *WebhookService,
	registry *domain.InstrumentRegistry,
) *OrderService {
	return &OrderService{
		matcher:    matcher,
		orderStore: orderStore,
		webhookSvc: webhookSvc,
		registry:   registry,
	}
}

// PlaceOrder validates the request, runs the order through the matching
// engine, and dispatches webhooks for any fills executed.
func (s *OrderService) PlaceOrder(req PlaceOrderRequest) (*engine.PlaceResult, error) {
	if req.Type != domain.OrderTypeLimit && req.Type != domain.OrderTypeMarket && req.Type != domain.OrderTypeStop {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("Unknown order type: %s. Must be one of: limit, market, stop", req.Type),
		}
	}
	if !accountRegex.MatchString(req.Account) {
		return nil, &domain.ValidationError{
			Message: "account must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}
	if req.Side != domain.SideBuy && req.Side != domain.SideSell {
		return nil, &domain.ValidationError{
			Message: "side must be 'buy' or 'sell'",
		}
	}
	if !orderSymbolRegex.MatchString(req.Symbol) {
		return nil, &domain.ValidationError{
			Message: "symbol must match ^[A-Z]{1,10}$",
		}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{
			Message: "quantity must be a positive integer",
		}
	}

	order := &domain.Order{
		Type:     req.Type,
		Account:  req.Account,
		Side:     req.Side,
		Symbol:   req.Symbol,
		Quantity: req.Quantity,
	}

	switch req.Type {
	case domain.OrderTypeLimit:
		if req.StopPrice != nil {
			return nil, &domain.ValidationError{Message: "limit orders must not include stop_price"}
		}
		price, err := s.parsePrice(req.Price, "price", "limit")
		if err != nil {
			return nil, err
		}
		order.Price = price
	case domain.OrderTypeMarket:
		if req.Price != nil {
			return nil, &domain.ValidationError{Message: "market orders must not include price"}
		}
		if req.StopPrice != nil {
			return nil, &domain.ValidationError{Message: "market orders must not include stop_price"}
		}
	case domain.OrderTypeStop:
		if req.Price != nil {
			return nil, &domain.ValidationError{Message: "stop orders must not include price"}
		}
		stopPrice, err := s.parsePrice(req.StopPrice, "stop_price", "stop")
		if err != nil {
			return nil, err
		}
		order.StopPrice = stopPrice
	}

	result, err := s.matcher.Place(order)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(req.Symbol).Inc()
		return nil, err
	}

	metrics.RecordPlacement(req.Symbol, string(req.Type), string(req.Side), len(result.Fills)*2, result.Order.FilledQuantity)
	s.updateDepth(req.Symbol)
	s.dispatchFillWebhooks(result)

	return result, nil
}

func (s *OrderService) parsePrice(dollars *float64, field, orderType string) (int64, error) {
	if dollars == nil {
		return 0, &domain.ValidationError{
			Message: fmt.Sprintf("%s is required for %s orders", field, orderType),
		}
	}
	if *dollars <= 0 {
		return 0, &domain.ValidationError{
			Message: field + " must be greater than 0",
		}
	}
	cents, err := domain.DollarsToCents(*dollars)
	if err != nil {
		return 0, &domain.ValidationError{
			Message: field + " must have at most 2 decimal places",
		}
	}
	return cents, nil
}

// dispatchFillWebhooks dispatches fill.executed webhooks for each fill
// of the incoming order. Skips dispatch if webhookSvc is nil.
func (s *OrderService) dispatchFillWebhooks(result *engine.PlaceResult) {
	if s.webhookSvc == nil {
		return
	}
	for _, f := range result.Fills {
		s.webhookSvc.DispatchFillExecuted(f, result.Order)
	}
}

func (s *OrderService) updateDepth(symbol string) {
	book := s.matcher.Books().GetOrCreate(symbol)
	book.RLock()
	bids, asks := book.BidCount(), book.AskCount()
	book.RUnlock()
	metrics.UpdateBookDepth(symbol, bids, asks)
}

// GetOrder retrieves an order by ID with all its fills.
func (s *OrderService) GetOrder(orderID string) (*domain.Order, error) {
	return s.orderStore.Get(orderID)
}

// AmendOrder validates the request and atomically replaces the order's
// price and quantity. The amended order loses its time priority.
func (s *OrderService) AmendOrder(req AmendOrderRequest) (*engine.PlaceResult, error) {
	if req.Price <= 0 {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	priceCents, err := domain.DollarsToCents(req.Price)
	if err != nil {
		return nil, &domain.ValidationError{Message: "price must have at most 2 decimal places"}
	}
	if req.Quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}

	result, err := s.matcher.Amend(req.OrderID, req.Quantity, priceCents)
	if err != nil {
		return nil, err
	}

	s.updateDepth(result.Order.Symbol)
	s.dispatchFillWebhooks(result)
	return result, nil
}

// CancelOrder cancels a pending or partially filled order.
func (s *OrderService) CancelOrder(orderID string) (*domain.Order, error) {
	order, err := s.matcher.Cancel(orderID)
	if err != nil {
		return nil, err
	}

	metrics.OrdersCancelled.WithLabelValues(order.Symbol).Inc()
	s.updateDepth(order.Symbol)

	if s.webhookSvc != nil {
		s.webhookSvc.DispatchOrderCancelled(order)
	}

	return order, nil
}

// ListOrders returns a paginated list of orders for an account with
// optional status filtering.
func (s *OrderService) ListOrders(account string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	if !accountRegex.MatchString(account) {
		return nil, 0, &domain.ValidationError{
			Message: "account must match ^[a-zA-Z0-9_-]{1,64}$",
		}
	}

	if status != nil {
		if !ValidOrderStatuses[*status] {
			return nil, 0, &domain.ValidationError{
				Message: fmt.Sprintf("Invalid status filter: '%s'. Must be one of: pending, partially_filled, filled, cancelled, rejected", *status),
			}
		}
	}

	if page < 1 {
		return nil, 0, &domain.ValidationError{
			Message: "page must be >= 1",
		}
	}
	if limit < 1 || limit > 100 {
		return nil, 0, &domain.ValidationError{
			Message: "limit must be between 1 and 100",
		}
	}

	orders, total := s.orderStore.ListByAccount(account, status, page, limit)
	return orders, total, nil
}
