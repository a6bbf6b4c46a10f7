package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/efreitasn/tradecore/internal/domain"
)

// InstrumentHandler handles HTTP requests for instrument metadata.
type InstrumentHandler struct {
	registry *domain.InstrumentRegistry
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(registry *domain.InstrumentRegistry) *InstrumentHandler {
	return &InstrumentHandler{registry: registry}
}

// instrumentResponse is the JSON representation of an instrument.
type instrumentResponse struct {
	Symbol   string  `json:"symbol"`
	TickSize float64 `json:"tick_size"`
	LotSize  int64   `json:"lot_size"`
	MinPrice float64 `json:"min_price"`
	MaxPrice float64 `json:"max_price"`
}

// List handles GET /instruments.
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	instruments := h.registry.List()
	out := make([]instrumentResponse, len(instruments))
	for i, inst := range instruments {
		out[i] = buildInstrumentResponse(inst)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"instruments": out})
}

// Get handles GET /instruments/{symbol}.
func (h *InstrumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	inst, err := h.registry.Lookup(symbol)
	if err != nil {
		WriteError(w, http.StatusNotFound, "unknown_symbol", err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, buildInstrumentResponse(inst))
}

func buildInstrumentResponse(inst domain.Instrument) instrumentResponse {
	return instrumentResponse{
		Symbol:   inst.Symbol,
		TickSize: domain.CentsToDollars(inst.TickSize),
		LotSize:  inst.LotSize,
		MinPrice: domain.CentsToDollars(inst.MinPrice),
		MaxPrice: domain.CentsToDollars(inst.MaxPrice),
	}
}
