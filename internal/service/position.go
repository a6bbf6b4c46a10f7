package service

import (
	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/ledger"
)

// PositionService serves position and portfolio queries from the
// ledger.
type PositionService struct {
	ledger   *ledger.Ledger
	registry *domain.InstrumentRegistry
}

// NewPositionService creates a new PositionService.
func NewPositionService(l *ledger.Ledger, registry *domain.InstrumentRegistry) *PositionService {
	return &PositionService{ledger: l, registry: registry}
}

// Positions returns every position, sorted by symbol and valued at the
// latest marks.
func (s *PositionService) Positions() []ledger.View {
	return s.ledger.Views()
}

// Position returns the position for one symbol. A registered symbol
// with no fills yet reports a flat position rather than an error.
func (s *PositionService) Position(symbol string) (ledger.View, error) {
	if !s.registry.Exists(symbol) {
		return ledger.View{}, domain.ErrUnknownSymbol
	}
	v, ok := s.ledger.View(symbol)
	if !ok {
		return ledger.View{Position: domain.Position{Symbol: symbol}}, nil
	}
	return v, nil
}

// Portfolio aggregates all positions into a single summary.
func (s *PositionService) Portfolio() ledger.PortfolioSummary {
	return s.ledger.Portfolio()
}
