package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/ledger"
	"github.com/efreitasn/tradecore/internal/service"
)

// PositionHandler handles HTTP requests for position and portfolio
// endpoints.
type PositionHandler struct {
	positionSvc *service.PositionService
}

// NewPositionHandler creates a new PositionHandler.
func NewPositionHandler(positionSvc *service.PositionService) *PositionHandler {
	return &PositionHandler{positionSvc: positionSvc}
}

// positionResponse is the JSON representation of one position.
type positionResponse struct {
	Symbol        string   `json:"symbol"`
	NetQuantity   int64    `json:"net_quantity"`
	AvgEntryPrice float64  `json:"avg_entry_price"`
	RealizedPnL   float64  `json:"realized_pnl"`
	MarkPrice     *float64 `json:"mark_price"`
	MarketValue   *float64 `json:"market_value"`
	UnrealizedPnL *float64 `json:"unrealized_pnl"`
}

// portfolioResponse is the JSON response for GET /portfolio.
type portfolioResponse struct {
	CostBasis     float64 `json:"cost_basis"`
	MarketValue   float64 `json:"market_value"`
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// ListPositions handles GET /positions.
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	views := h.positionSvc.Positions()
	out := make([]positionResponse, len(views))
	for i, v := range views {
		out[i] = buildPositionResponse(v)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"positions": out})
}

// GetPosition handles GET /positions/{symbol}.
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	view, err := h.positionSvc.Position(symbol)
	if err != nil {
		WriteError(w, http.StatusNotFound, "unknown_symbol", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, buildPositionResponse(view))
}

// GetPortfolio handles GET /portfolio.
func (h *PositionHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	summary := h.positionSvc.Portfolio()
	WriteJSON(w, http.StatusOK, portfolioResponse{
		CostBasis:     domain.CentsToDollars(summary.CostBasis),
		MarketValue:   domain.CentsToDollars(summary.MarketValue),
		RealizedPnL:   domain.CentsToDollars(summary.RealizedPnL),
		UnrealizedPnL: domain.CentsToDollars(summary.UnrealizedPnL),
	})
}

func buildPositionResponse(v ledger.View) positionResponse {
	resp := positionResponse{
		Symbol:        v.Symbol,
		NetQuantity:   v.NetQuantity,
		AvgEntryPrice: domain.CentsToDollars(v.AvgEntryPrice),
		RealizedPnL:   domain.CentsToDollars(v.RealizedPnL),
	}
	if v.HasMark {
		mark := domain.CentsToDollars(v.MarkPrice)
		value := domain.CentsToDollars(v.MarketValue(v.MarkPrice))
		unrealized := domain.CentsToDollars(v.UnrealizedPnL)
		resp.MarkPrice = &mark
		resp.MarketValue = &value
		resp.UnrealizedPnL = &unrealized
	}
	return resp
}
