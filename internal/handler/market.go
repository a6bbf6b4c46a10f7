package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/engine"
	"github.com/efreitasn/tradecore/internal/marketdata"
	"github.com/efreitasn/tradecore/internal/service"
)

// MarketHandler handles HTTP requests for market data endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// priceLevelResponse is an aggregated price level in book and quote
// responses.
type priceLevelResponse struct {
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	OrderCount int     `json:"order_count,omitempty"`
}

// bookResponse is the JSON response for GET /instruments/{symbol}/book.
type bookResponse struct {
	Symbol string               `json:"symbol"`
	Bids   []priceLevelResponse `json:"bids"`
	Asks   []priceLevelResponse `json:"asks"`
}

// summaryResponse is the JSON response for GET /instruments/{symbol}/summary.
type summaryResponse struct {
	Symbol        string   `json:"symbol"`
	LastPrice     *float64 `json:"last_price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	Volume        int64    `json:"volume"`
	LastTradeAt   *string  `json:"last_trade_at"`
	Bid           *float64 `json:"bid"`
	Ask           *float64 `json:"ask"`
}

// candleResponse is one candle in GET /instruments/{symbol}/candles.
type candleResponse struct {
	StartsAt string  `json:"starts_at"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
}

// quoteResponse is the JSON response for GET /instruments/{symbol}/quote.
type quoteResponse struct {
	Symbol            string               `json:"symbol"`
	Side              string               `json:"side"`
	Quantity          int64                `json:"quantity"`
	QuantityAvailable int64                `json:"quantity_available"`
	FullyFillable     bool                 `json:"fully_fillable"`
	EstimatedAvgPrice *float64             `json:"estimated_avg_price"`
	EstimatedTotal    *float64             `json:"estimated_total"`
	PriceLevels       []priceLevelResponse `json:"price_levels"`
}

// ingestTradeRequest is the JSON body for POST /instruments/{symbol}/trades.
type ingestTradeRequest struct {
	Price      float64 `json:"price"`
	Quantity   int64   `json:"quantity"`
	ExecutedAt string  `json:"executed_at"`
}

// GetBook handles GET /instruments/{symbol}/book?depth=N.
func (h *MarketHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	depth := 10
	if d := r.URL.Query().Get("depth"); d != "" {
		v, err := strconv.Atoi(d)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "depth must be an integer")
			return
		}
		depth = v
	}

	snapshot, err := h.marketSvc.Book(symbol, depth)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, bookResponse{
		Symbol: snapshot.Symbol,
		Bids:   buildPriceLevels(snapshot.Bids),
		Asks:   buildPriceLevels(snapshot.Asks),
	})
}

// GetSummary handles GET /instruments/{symbol}/summary.
func (h *MarketHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	summary, err := h.marketSvc.Summary(symbol)
	if err != nil {
		mapMarketError(w, err)
		return
	}
	top, err := h.marketSvc.BestQuote(symbol)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildSummaryResponse(summary, top))
}

// ListSummaries handles GET /instruments/summaries.
func (h *MarketHandler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	summaries := h.marketSvc.Summaries()
	out := make([]summaryResponse, 0, len(summaries))
	for _, s := range summaries {
		top, err := h.marketSvc.BestQuote(s.Symbol)
		if err != nil {
			continue
		}
		out = append(out, buildSummaryResponse(s, top))
	}
	WriteJSON(w, http.StatusOK, map[string]any{"summaries": out})
}

// GetCandles handles GET /instruments/{symbol}/candles?timeframe=1m&limit=N.
func (h *MarketHandler) GetCandles(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "1m"
	}
	limit := 100
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "limit must be an integer")
			return
		}
		limit = v
	}

	candles, err := h.marketSvc.Candles(symbol, timeframe, limit)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	out := make([]candleResponse, len(candles))
	for i, c := range candles {
		out[i] = candleResponse{
			StartsAt: c.StartsAt.UTC().Format(time.RFC3339),
			Open:     domain.CentsToDollars(c.Open),
			High:     domain.CentsToDollars(c.High),
			Low:      domain.CentsToDollars(c.Low),
			Close:    domain.CentsToDollars(c.Close),
			Volume:   c.Volume,
		}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"symbol":    symbol,
		"timeframe": timeframe,
		"candles":   out,
	})
}

// GetQuote handles GET /instruments/{symbol}/quote?side=buy&quantity=N.
func (h *MarketHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	side := r.URL.Query().Get("side")

	quantity, err := strconv.ParseInt(r.URL.Query().Get("quantity"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "quantity must be a positive integer")
		return
	}

	result, err := h.marketSvc.Quote(symbol, domain.Side(side), quantity)
	if err != nil {
		mapMarketError(w, err)
		return
	}

	resp := quoteResponse{
		Symbol:            symbol,
		Side:              side,
		Quantity:          quantity,
		QuantityAvailable: result.QuantityAvailable,
		FullyFillable:     result.FullyFillable,
		PriceLevels:       make([]priceLevelResponse, len(result.PriceLevels)),
	}
	if result.EstimatedAvgPrice != nil {
		v := domain.CentsToDollars(*result.EstimatedAvgPrice)
		resp.EstimatedAvgPrice = &v
	}
	if result.EstimatedTotal != nil {
		v := domain.CentsToDollars(*result.EstimatedTotal)
		resp.EstimatedTotal = &v
	}
	for i, lvl := range result.PriceLevels {
		resp.PriceLevels[i] = priceLevelResponse{
			Price:    domain.CentsToDollars(lvl.Price),
			Quantity: lvl.Quantity,
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

// IngestTrade handles POST /instruments/{symbol}/trades.
func (h *MarketHandler) IngestTrade(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	var req ingestTradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	var executedAt time.Time
	if req.ExecutedAt != "" {
		t, err := time.Parse(time.RFC3339, req.ExecutedAt)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "validation_error", "executed_at must be a valid RFC 3339 timestamp")
			return
		}
		executedAt = t
	}

	err := h.marketSvc.IngestTrade(service.IngestTradeRequest{
		Symbol:     symbol,
		Price:      req.Price,
		Quantity:   req.Quantity,
		ExecutedAt: executedAt,
	})
	if err != nil {
		mapMarketError(w, err)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func buildPriceLevels(levels []engine.PriceLevel) []priceLevelResponse {
	out := make([]priceLevelResponse, len(levels))
	for i, lvl := range levels {
		out[i] = priceLevelResponse{
			Price:      domain.CentsToDollars(lvl.Price),
			Quantity:   lvl.TotalQuantity,
			OrderCount: lvl.OrderCount,
		}
	}
	return out
}

func buildSummaryResponse(s marketdata.Summary, top domain.BookTop) summaryResponse {
	resp := summaryResponse{Symbol: s.Symbol, Volume: s.Volume}
	if s.HasTrade {
		last := domain.CentsToDollars(s.LastPrice)
		change := domain.CentsToDollars(s.Change)
		high := domain.CentsToDollars(s.High)
		low := domain.CentsToDollars(s.Low)
		tradeAt := s.LastTradeAt.UTC().Format(time.RFC3339)
		resp.LastPrice = &last
		resp.Change = &change
		resp.ChangePercent = &s.ChangePercent
		resp.High = &high
		resp.Low = &low
		resp.LastTradeAt = &tradeAt
	}
	if top.Bid != nil {
		v := domain.CentsToDollars(top.Bid.Price)
		resp.Bid = &v
	}
	if top.Ask != nil {
		v := domain.CentsToDollars(top.Ask.Price)
		resp.Ask = &v
	}
	return resp
}

// mapMarketError maps domain errors to HTTP responses for market data
// endpoints.
func mapMarketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnknownSymbol):
		WriteError(w, http.StatusNotFound, "unknown_symbol", err.Error())
	case errors.Is(err, domain.ErrUnknownTimeframe):
		WriteError(w, http.StatusBadRequest, "unknown_timeframe", err.Error())
	case errors.Is(err, domain.ErrNonMonotonicTimestamp):
		WriteError(w, http.StatusConflict, "non_monotonic_timestamp", err.Error())
	case errors.Is(err, domain.ErrPriceOutOfBounds):
		WriteError(w, http.StatusBadRequest, "price_out_of_bounds", err.Error())
	case errors.Is(err, domain.ErrInvalidIncrement):
		WriteError(w, http.StatusBadRequest, "invalid_increment", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
