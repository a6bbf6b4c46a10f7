package service

import (
	"time"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/engine"
	"github.com/efreitasn/tradecore/internal/marketdata"
	"github.com/efreitasn/tradecore/internal/metrics"
)

// BookSnapshot is a depth-limited view of one symbol's order book with
// quantities aggregated per price level.
type BookSnapshot struct {
	Symbol string
	Bids   []engine.PriceLevel
	Asks   []engine.PriceLevel
}

// IngestTradeRequest represents an external trade print.
type IngestTradeRequest struct {
	Symbol     string
	Price      float64
	Quantity   int64
	ExecutedAt time.Time
}

// MarketService serves market data queries: book snapshots, session
// summaries, candles, quote simulation, and external trade ingestion.
type MarketService struct {
	matcher  *engine.Matcher
	feed     *marketdata.Feed
	registry *domain.InstrumentRegistry
}

// NewMarketService creates a new MarketService with the given dependencies.
func NewMarketService(
	matcher *engine.Matcher,
	feed *marketdata.Feed,
	registry *domain.InstrumentRegistry,
) *MarketService {
	return &MarketService{
		matcher:  matcher,
		feed:     feed,
		registry: registry,
	}
}

// Book returns up to depth aggregated price levels per side for a
// symbol. Both slices are read under the book lock, so the snapshot is
// never crossed.
func (s *MarketService) Book(symbol string, depth int) (*BookSnapshot, error) {
	if !s.registry.Exists(symbol) {
		return nil, domain.ErrUnknownSymbol
	}
	if depth < 1 || depth > 100 {
		return nil, &domain.ValidationError{Message: "depth must be between 1 and 100"}
	}

	book := s.matcher.Books().GetOrCreate(symbol)
	book.RLock()
	defer book.RUnlock()

	return &BookSnapshot{
		Symbol: symbol,
		Bids:   book.TopBids(depth),
		Asks:   book.TopAsks(depth),
	}, nil
}

// Summary returns the session snapshot for a symbol.
func (s *MarketService) Summary(symbol string) (marketdata.Summary, error) {
	return s.feed.Summary(symbol)
}

// Summaries returns the session snapshot for every registered
// instrument, sorted by symbol.
func (s *MarketService) Summaries() []marketdata.Summary {
	instruments := s.registry.List()
	out := make([]marketdata.Summary, 0, len(instruments))
	for _, inst := range instruments {
		summary, err := s.feed.Summary(inst.Symbol)
		if err != nil {
			continue
		}
		out = append(out, summary)
	}
	return out
}

// BestQuote returns the current best-bid/best-ask snapshot for a symbol.
func (s *MarketService) BestQuote(symbol string) (domain.BookTop, error) {
	return s.feed.BestQuote(symbol)
}

// Candles returns up to limit recent candles for a symbol and
// timeframe, oldest first, including the still-open candle.
func (s *MarketService) Candles(symbol, timeframe string, limit int) ([]domain.Candle, error) {
	tf, err := domain.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 1000 {
		return nil, &domain.ValidationError{Message: "limit must be between 1 and 1000"}
	}
	return s.feed.Candles(symbol, tf, limit)
}

// Quote simulates a market order against the current book without
// placing it.
func (s *MarketService) Quote(symbol string, side domain.Side, quantity int64) (*engine.QuoteResult, error) {
	if !s.registry.Exists(symbol) {
		return nil, domain.ErrUnknownSymbol
	}
	if side != domain.SideBuy && side != domain.SideSell {
		return nil, &domain.ValidationError{Message: "side must be 'buy' or 'sell'"}
	}
	if quantity <= 0 {
		return nil, &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	return s.matcher.Simulate(symbol, side, quantity), nil
}

// IngestTrade records an external trade print. The print updates the
// feed's session stats and candles, then runs the stop trigger check,
// since a print can cross resting stop triggers exactly like an engine
// trade.
func (s *MarketService) IngestTrade(req IngestTradeRequest) error {
	inst, err := s.registry.Lookup(req.Symbol)
	if err != nil {
		return err
	}
	if req.Price <= 0 {
		return &domain.ValidationError{Message: "price must be greater than 0"}
	}
	priceCents, err := domain.DollarsToCents(req.Price)
	if err != nil {
		return &domain.ValidationError{Message: "price must have at most 2 decimal places"}
	}
	if err := inst.ValidatePrice(priceCents); err != nil {
		return err
	}
	if req.Quantity <= 0 {
		return &domain.ValidationError{Message: "quantity must be a positive integer"}
	}
	if req.ExecutedAt.IsZero() {
		return &domain.ValidationError{Message: "executed_at is required"}
	}

	if err := s.feed.IngestTrade(req.Symbol, priceCents, req.Quantity, req.ExecutedAt); err != nil {
		return err
	}

	metrics.TradesIngested.WithLabelValues(req.Symbol).Inc()
	s.matcher.TriggerStops(req.Symbol, priceCents)
	return nil
}
