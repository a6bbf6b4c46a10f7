package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/service"
)

// OrderHandler handles HTTP requests for order endpoints.
type OrderHandler struct {
	orderSvc *service.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc *service.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// placeOrderRequest is the JSON request body for POST /orders.
type placeOrderRequest struct {
	Type      string   `json:"type"`
	Account   string   `json:"account"`
	Side      string   `json:"side"`
	Symbol    string   `json:"symbol"`
	Price     *float64 `json:"price"`
	StopPrice *float64 `json:"stop_price"`
	Quantity  int64    `json:"quantity"`
}

// amendOrderRequest is the JSON request body for PUT /orders/{order_id}.
type amendOrderRequest struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// limitOrderResponse is the JSON response for limit orders.
type limitOrderResponse struct {
	OrderID           string         `json:"order_id"`
	Type              string         `json:"type"`
	Account           string         `json:"account"`
	Side              string         `json:"side"`
	Symbol            string         `json:"symbol"`
	Price             float64        `json:"price"`
	Quantity          int64          `json:"quantity"`
	FilledQuantity    int64          `json:"filled_quantity"`
	RemainingQuantity int64          `json:"remaining_quantity"`
	Status            string         `json:"status"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
	AverageFillPrice  *float64       `json:"average_fill_price"`
	Fills             []fillResponse `json:"fills"`
}

// marketOrderResponse is the JSON response for market orders. Omits
// price and stop_price entirely; no_liquidity reports an unfilled
// remainder that was never rested.
type marketOrderResponse struct {
	OrderID           string         `json:"order_id"`
	Type              string         `json:"type"`
	Account           string         `json:"account"`
	Side              string         `json:"side"`
	Symbol            string         `json:"symbol"`
	Quantity          int64          `json:"quantity"`
	FilledQuantity    int64          `json:"filled_quantity"`
	RemainingQuantity int64          `json:"remaining_quantity"`
	Status            string         `json:"status"`
	NoLiquidity       bool           `json:"no_liquidity"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
	AverageFillPrice  *float64       `json:"average_fill_price"`
	Fills             []fillResponse `json:"fills"`
}

// stopOrderResponse is the JSON response for stop orders.
type stopOrderResponse struct {
	OrderID           string         `json:"order_id"`
	Type              string         `json:"type"`
	Account           string         `json:"account"`
	Side              string         `json:"side"`
	Symbol            string         `json:"symbol"`
	StopPrice         float64        `json:"stop_price"`
	Quantity          int64          `json:"quantity"`
	FilledQuantity    int64          `json:"filled_quantity"`
	RemainingQuantity int64          `json:"remaining_quantity"`
	Status            string         `json:"status"`
	CreatedAt         string         `json:"created_at"`
	UpdatedAt         string         `json:"updated_at"`
	AverageFillPrice  *float64       `json:"average_fill_price"`
	Fills             []fillResponse `json:"fills"`
}

// fillResponse is a single fill in the order response.
type fillResponse struct {
	FillID     string  `json:"fill_id"`
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	ExecutedAt string  `json:"executed_at"`
}

// listOrdersResponse is the JSON response for GET /orders.
type listOrdersResponse struct {
	Orders []any `json:"orders"`
	Total  int   `json:"total"`
	Page   int   `json:"page"`
	Limit  int   `json:"limit"`
}

const timestampFormat = "2006-01-02T15:04:05Z"

// PlaceOrder handles POST /orders.
func (h *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.orderSvc.PlaceOrder(service.PlaceOrderRequest{
		Type:      domain.OrderType(req.Type),
		Account:   req.Account,
		Side:      domain.Side(req.Side),
		Symbol:    req.Symbol,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Quantity:  req.Quantity,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, buildOrderResponse(result.Order))
}

// GetOrder handles GET /orders/{order_id}.
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.GetOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// AmendOrder handles PUT /orders/{order_id}.
func (h *OrderHandler) AmendOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	var req amendOrderRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := h.orderSvc.AmendOrder(service.AmendOrderRequest{
		OrderID:  orderID,
		Price:    req.Price,
		Quantity: req.Quantity,
	})
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(result.Order))
}

// CancelOrder handles DELETE /orders/{order_id}.
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "order_id")

	order, err := h.orderSvc.CancelOrder(orderID)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildOrderResponse(order))
}

// ListOrders handles GET /orders?account=...&status=...&page=...&limit=...
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")

	var status *domain.OrderStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.OrderStatus(s)
		status = &st
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "page must be an integer")
			return
		}
		page = v
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = v
	}

	orders, total, err := h.orderSvc.ListOrders(account, status, page, limit)
	if err != nil {
		mapOrderError(w, err)
		return
	}

	resp := listOrdersResponse{
		Orders: make([]any, len(orders)),
		Total:  total,
		Page:   page,
		Limit:  limit,
	}
	for i, o := range orders {
		resp.Orders[i] = buildOrderResponse(o)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// buildOrderResponse constructs the appropriate response type based on
// order type. Market orders omit price and stop_price; stop orders
// include stop_price instead of price.
func buildOrderResponse(o *domain.Order) any {
	fills := buildFillResponses(o.Fills)

	var avgPrice *float64
	if avg, ok := o.AverageFillPrice(); ok {
		v := domain.CentsToDollars(avg)
		avgPrice = &v
	}

	switch o.Type {
	case domain.OrderTypeMarket:
		return marketOrderResponse{
			OrderID:           o.OrderID,
			Type:              string(o.Type),
			Account:           o.Account,
			Side:              string(o.Side),
			Symbol:            o.Symbol,
			Quantity:          o.Quantity,
			FilledQuantity:    o.FilledQuantity,
			RemainingQuantity: o.RemainingQuantity,
			Status:            string(o.Status),
			NoLiquidity:       o.RemainingQuantity > 0,
			CreatedAt:         o.CreatedAt.UTC().Format(timestampFormat),
			UpdatedAt:         o.UpdatedAt.UTC().Format(timestampFormat),
			AverageFillPrice:  avgPrice,
			Fills:             fills,
		}
	case domain.OrderTypeStop:
		// A triggered stop carries market semantics but keeps its
		// trigger price in the response.
		return stopOrderResponse{
			OrderID:           o.OrderID,
			Type:              string(o.Type),
			Account:           o.Account,
			Side:              string(o.Side),
			Symbol:            o.Symbol,
			StopPrice:         domain.CentsToDollars(o.StopPrice),
			Quantity:          o.Quantity,
			FilledQuantity:    o.FilledQuantity,
			RemainingQuantity: o.RemainingQuantity,
			Status:            string(o.Status),
			CreatedAt:         o.CreatedAt.UTC().Format(timestampFormat),
			UpdatedAt:         o.UpdatedAt.UTC().Format(timestampFormat),
			AverageFillPrice:  avgPrice,
			Fills:             fills,
		}
	}

	return limitOrderResponse{
		OrderID:           o.OrderID,
		Type:              string(o.Type),
		Account:           o.Account,
		Side:              string(o.Side),
		Symbol:            o.Symbol,
		Price:             domain.CentsToDollars(o.Price),
		Quantity:          o.Quantity,
		FilledQuantity:    o.FilledQuantity,
		RemainingQuantity: o.RemainingQuantity,
		Status:            string(o.Status),
		CreatedAt:         o.CreatedAt.UTC().Format(timestampFormat),
		UpdatedAt:         o.UpdatedAt.UTC().Format(timestampFormat),
		AverageFillPrice:  avgPrice,
		Fills:             fills,
	}
}

// buildFillResponses converts domain fills to response fills.
func buildFillResponses(fills []*domain.Fill) []fillResponse {
	result := make([]fillResponse, len(fills))
	for i, f := range fills {
		result[i] = fillResponse{
			FillID:     f.FillID,
			Price:      domain.CentsToDollars(f.Price),
			Quantity:   f.Quantity,
			ExecutedAt: f.ExecutedAt.UTC().Format(timestampFormat),
		}
	}
	return result
}

// mapOrderError maps domain errors to HTTP responses for order endpoints.
func mapOrderError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownSymbol):
		WriteError(w, http.StatusNotFound, "unknown_symbol", err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		WriteError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, domain.ErrOrderTerminal):
		WriteError(w, http.StatusConflict, "order_already_terminal", err.Error())
	case errors.Is(err, domain.ErrPriceOutOfBounds):
		WriteError(w, http.StatusBadRequest, "price_out_of_bounds", err.Error())
	case errors.Is(err, domain.ErrInvalidIncrement):
		WriteError(w, http.StatusBadRequest, "invalid_increment", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
