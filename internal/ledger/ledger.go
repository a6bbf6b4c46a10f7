package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/efreitasn/tradecore/internal/domain"
)

// fillBuffer is the per-symbol channel depth. A full channel
// backpressures the matching pass for that symbol; it never reorders.
const fillBuffer = 256

// MarkSource provides the mark price used to value open positions.
// Implemented by the market data feed.
type MarkSource interface {
	LastPrice(symbol string) (int64, bool)
}

// View is a position decorated with mark-derived fields. UnrealizedPnL
// is recomputed from the latest mark on every query — it is never stored.
type View struct {
	domain.Position
	MarkPrice     int64
	HasMark       bool
	UnrealizedPnL int64
}

// PortfolioSummary aggregates every position at the latest marks, in
// cents. Positions without a mark contribute cost basis only.
type PortfolioSummary struct {
	CostBasis     int64
	MarketValue   int64
	RealizedPnL   int64
	UnrealizedPnL int64
}

// Ledger derives positions and realized P&L from the engine's fill
// stream. Fills for each symbol are consumed from a dedicated ordered
// channel by one goroutine, so the transition always sees fills in the
// exact order the engine produced them. Only fills belonging to the
// ledger's account are applied.
type Ledger struct {
	account string
	marks   MarkSource

	mu        sync.Mutex
	positions map[string]*domain.Position
	channels  map[string]chan *domain.Fill
	ctx       context.Context
	wg        sync.WaitGroup
}

// New creates a ledger scoped to one account.
func New(account string, marks MarkSource) *Ledger {
	return &Ledger{
		account:   account,
		marks:     marks,
		ctx:       context.Background(),
		positions: make(map[string]*domain.Position),
		channels:  make(map[string]chan *domain.Fill),
	}
}

// Start binds the ledger's consumer goroutines to ctx. Workers spawned
// after cancellation exit immediately.
func (l *Ledger) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ctx = ctx
}

// Deliver routes a fill to its symbol's ordered channel. Fills for other
// accounts are ignored. May block briefly when the symbol's consumer
// lags (backpressure, per-symbol only).
func (l *Ledger) Deliver(f *domain.Fill) {
	if f.Account != l.account {
		return
	}
	l.channel(f.Symbol) <- f
}

func (l *Ledger) channel(symbol string) chan *domain.Fill {
	l.mu.Lock()
	defer l.mu.Unlock()

	ch, ok := l.channels[symbol]
	if !ok {
		ch = make(chan *domain.Fill, fillBuffer)
		l.channels[symbol] = ch
		l.wg.Add(1)
		go l.run(l.ctx, ch)
	}
	return ch
}

func (l *Ledger) run(ctx context.Context, ch chan *domain.Fill) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-ch:
			l.apply(f)
		}
	}
}

func (l *Ledger) apply(f *domain.Fill) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[f.Symbol]
	if !ok {
		p = &domain.Position{Symbol: f.Symbol}
		l.positions[f.Symbol] = p
	}
	ApplyFill(p, f)
}

// ApplyFill is the pure position transition. Extending or opening a
// position recomputes the average entry as the quantity-weighted average
// of old and new lots. Reducing realizes (price − avg entry) × closed
// quantity × position sign; a fill larger than the open quantity flips
// the position, with the excess entered at the fill price. Replaying the
// same fill sequence always yields the same result.
func ApplyFill(p *domain.Position, f *domain.Fill) {
	signedQty := f.Quantity
	if f.Side == domain.SideSell {
		signedQty = -f.Quantity
	}

	net := p.NetQuantity
	if net == 0 || (net > 0) == (signedQty > 0) {
		oldAbs := abs(net)
		addAbs := abs(signedQty)
		p.AvgEntryPrice = (p.AvgEntryPrice*oldAbs + f.Price*addAbs) / (oldAbs + addAbs)
		p.NetQuantity = net + signedQty
		return
	}

	closed := abs(signedQty)
	if abs(net) < closed {
		closed = abs(net)
	}
	sign := int64(1)
	if net < 0 {
		sign = -1
	}
	p.RealizedPnL += (f.Price - p.AvgEntryPrice) * closed * sign
	p.NetQuantity = net + signedQty

	switch {
	case p.NetQuantity == 0:
		p.AvgEntryPrice = 0
	case (p.NetQuantity > 0) != (net > 0):
		// Flipped: the excess is a fresh lot at the fill price.
		p.AvgEntryPrice = f.Price
	}
}

// Position returns a copy of the position for a symbol.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *p, true
}

// View returns the position for a symbol valued at the latest mark.
func (l *Ledger) View(symbol string) (View, bool) {
	p, ok := l.Position(symbol)
	if !ok {
		return View{}, false
	}
	return l.decorate(p), true
}

// Views returns every position (including flat ones that retain
// realized P&L), sorted by symbol and valued at the latest marks.
func (l *Ledger) Views() []View {
	l.mu.Lock()
	positions := make([]domain.Position, 0, len(l.positions))
	for _, p := range l.positions {
		positions = append(positions, *p)
	}
	l.mu.Unlock()

	sort.Slice(positions, func(a, b int) bool {
		return positions[a].Symbol < positions[b].Symbol
	})

	out := make([]View, len(positions))
	for i, p := range positions {
		out[i] = l.decorate(p)
	}
	return out
}

// Portfolio aggregates all positions at the latest marks.
func (l *Ledger) Portfolio() PortfolioSummary {
	var s PortfolioSummary
	for _, v := range l.Views() {
		s.RealizedPnL += v.RealizedPnL
		s.CostBasis += v.CostBasis()
		if v.HasMark {
			s.MarketValue += v.MarketValue(v.MarkPrice)
			s.UnrealizedPnL += v.UnrealizedPnL
		} else {
			s.MarketValue += v.CostBasis()
		}
	}
	return s
}

// Drain waits for the consumer goroutines to exit. Call after the
// context passed to Start is cancelled.
func (l *Ledger) Drain() {
	l.wg.Wait()
}

func (l *Ledger) decorate(p domain.Position) View {
	v := View{Position: p}
	if l.marks == nil {
		return v
	}
	if mark, ok := l.marks.LastPrice(p.Symbol); ok {
		v.MarkPrice = mark
		v.HasMark = true
		v.UnrealizedPnL = p.UnrealizedPnL(mark)
	}
	return v
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
