package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/store"
)

// MarketPublisher receives trade prints and book-top updates from the
// matching engine. Implemented by the market data feed.
type MarketPublisher interface {
	PublishTrade(symbol string, price, qty int64, executedAt time.Time)
	PublishBookTop(top domain.BookTop)
}

// FillSink receives fills in the exact order the engine produced them.
// Implemented by the position ledger.
type FillSink interface {
	Deliver(f *domain.Fill)
}

// FanSink delivers each fill to every sink in order.
type FanSink []FillSink

// Deliver implements FillSink.
func (s FanSink) Deliver(f *domain.Fill) {
	for _, sink := range s {
		sink.Deliver(f)
	}
}

// QuotePriceLevel represents a single price level in a quote simulation.
type QuotePriceLevel struct {
	Price    int64
	Quantity int64
}

// QuoteResult holds the result of a market order simulation.
type QuoteResult struct {
	QuantityAvailable int64
	FullyFillable     bool
	EstimatedAvgPrice *int64 // nil when no liquidity
	EstimatedTotal    *int64 // nil when no liquidity
	PriceLevels       []QuotePriceLevel
}

// PlaceResult reports the outcome of a place or amend operation. Fills
// contains only the incoming order's fills, in execution order.
// NoLiquidity is informational: a market order could not fully fill
// against the resting book.
type PlaceResult struct {
	Order       *domain.Order
	Fills       []*domain.Fill
	NoLiquidity bool
}

// Matcher implements the order book engine: order intake, validation,
// matching, cancellation, amendment, and stop triggering. All mutations
// for a symbol are serialized by the symbol's book write lock, which is
// held for the entire matching pass.
type Matcher struct {
	books    *BookManager
	registry *domain.InstrumentRegistry
	orders   *store.OrderStore
	fills    *store.FillStore
	stops    *StopManager
	market   MarketPublisher
	ledger   FillSink
}

// NewMatcher creates a new Matcher with the given dependencies. market
// and ledger may be nil in tests.
func NewMatcher(
	books *BookManager,
	registry *domain.InstrumentRegistry,
	orders *store.OrderStore,
	fills *store.FillStore,
	market MarketPublisher,
	ledger FillSink,
) *Matcher {
	return &Matcher{
		books:    books,
		registry: registry,
		orders:   orders,
		fills:    fills,
		stops:    NewStopManager(),
		market:   market,
		ledger:   ledger,
	}
}

// Place validates an incoming order against the instrument registry,
// assigns its identity, and runs it through the engine.
//
// Limit orders match while they cross and rest the remainder. Market
// orders consume the opposite side until exhausted or the book is empty;
// an unfilled remainder is reported via PlaceResult.NoLiquidity and is
// never rested. Stop orders rest untriggered until the last trade price
// crosses the trigger, then are resubmitted with market semantics.
//
// The caller provides Type, Account, Side, Symbol, Quantity, and Price
// or StopPrice as the type requires. Validation failures are returned
// synchronously; nothing is stored for a rejected order.
func (m *Matcher) Place(order *domain.Order) (*PlaceResult, error) {
	inst, err := m.registry.Lookup(order.Symbol)
	if err != nil {
		return nil, err
	}
	if err := inst.ValidateQuantity(order.Quantity); err != nil {
		return nil, err
	}
	switch order.Type {
	case domain.OrderTypeLimit:
		if err := inst.ValidatePrice(order.Price); err != nil {
			return nil, err
		}
	case domain.OrderTypeStop:
		if err := inst.ValidatePrice(order.StopPrice); err != nil {
			return nil, err
		}
	}

	order.OrderID = uuid.New().String()
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	order.RemainingQuantity = order.Quantity
	order.FilledQuantity = 0
	order.Status = domain.OrderStatusPending
	order.Fills = []*domain.Fill{}

	m.orders.Create(order)

	if order.Type == domain.OrderTypeStop {
		m.stops.Add(order)
		return &PlaceResult{Order: order}, nil
	}

	return m.execute(order), nil
}

// execute runs one matching pass for a limit or market order (or a
// triggered stop, which matches with market semantics). Fills, trade
// prints, and the book-top update are published while the book lock is
// still held so per-symbol ordering is preserved across passes; stop
// triggering runs after the lock is released since resubmission
// re-enters the engine.
func (m *Matcher) execute(order *domain.Order) *PlaceResult {
	book := m.books.GetOrCreate(order.Symbol)

	book.mu.Lock()
	prevTop := book.Top()

	fills := m.matchLocked(book, order)

	if order.Type == domain.OrderTypeLimit && order.RemainingQuantity > 0 {
		book.Insert(OrderBookEntry{
			Price:    order.Price,
			RestedAt: time.Now(),
			OrderID:  order.OrderID,
			Order:    order,
		})
	}

	book.assertUncrossed()
	newTop := book.Top()

	var incoming []*domain.Fill
	var lowPrint, highPrint int64
	printed := false
	for _, f := range fills {
		if m.ledger != nil {
			m.ledger.Deliver(f)
		}
		if f.OrderID != order.OrderID {
			continue
		}
		incoming = append(incoming, f)
		// One trade print per match, taken from the incoming side.
		if m.market != nil {
			m.market.PublishTrade(order.Symbol, f.Price, f.Quantity, f.ExecutedAt)
		}
		if !printed || f.Price < lowPrint {
			lowPrint = f.Price
		}
		if !printed || f.Price > highPrint {
			highPrint = f.Price
		}
		printed = true
	}
	if m.market != nil && !topsEqual(prevTop, newTop) {
		m.market.PublishBookTop(newTop)
	}
	book.mu.Unlock()

	if printed {
		m.triggerStopsBetween(order.Symbol, lowPrint, highPrint)
	}

	return &PlaceResult{
		Order:       order,
		Fills:       incoming,
		NoLiquidity: order.Type != domain.OrderTypeLimit && order.RemainingQuantity > 0,
	}
}

// matchLocked consumes resting liquidity for the incoming order in price
// then time priority. Limit orders stop at the first non-crossing level;
// market (and triggered stop) orders accept any price. Returns every
// fill of the pass, both sides interleaved in execution order. The
// caller must hold the book write lock.
func (m *Matcher) matchLocked(book *OrderBook, order *domain.Order) []*domain.Fill {
	executedAt := time.Now()
	var fills []*domain.Fill

	for order.RemainingQuantity > 0 {
		var best OrderBookEntry
		var found bool
		if order.Side == domain.SideBuy {
			best, found = book.BestAsk()
		} else {
			best, found = book.BestBid()
		}
		if !found {
			break
		}

		if order.Type == domain.OrderTypeLimit {
			if order.Side == domain.SideBuy && order.Price < best.Price {
				break
			}
			if order.Side == domain.SideSell && best.Price < order.Price {
				break
			}
		}

		resting := best.Order

		fillQty := order.RemainingQuantity
		if resting.RemainingQuantity < fillQty {
			fillQty = resting.RemainingQuantity
		}
		// Execution at the resting order's price: a crossing incoming
		// order gives price improvement to the book.
		price := resting.Price

		order.RemainingQuantity -= fillQty
		order.FilledQuantity += fillQty
		resting.RemainingQuantity -= fillQty
		resting.FilledQuantity += fillQty
		resting.UpdatedAt = executedAt
		order.UpdatedAt = executedAt

		if resting.RemainingQuantity < 0 {
			panic(fmt.Sprintf("engine: negative resting quantity on order %s", resting.OrderID))
		}

		if order.RemainingQuantity == 0 {
			order.Status = domain.OrderStatusFilled
		} else {
			order.Status = domain.OrderStatusPartiallyFilled
		}
		if resting.RemainingQuantity == 0 {
			resting.Status = domain.OrderStatusFilled
		} else {
			resting.Status = domain.OrderStatusPartiallyFilled
		}

		incomingFill := &domain.Fill{
			FillID:     uuid.New().String(),
			OrderID:    order.OrderID,
			Account:    order.Account,
			Symbol:     order.Symbol,
			Side:       order.Side,
			Price:      price,
			Quantity:   fillQty,
			ExecutedAt: executedAt,
		}
		restingFill := &domain.Fill{
			FillID:     uuid.New().String(),
			OrderID:    resting.OrderID,
			Account:    resting.Account,
			Symbol:     resting.Symbol,
			Side:       resting.Side,
			Price:      price,
			Quantity:   fillQty,
			ExecutedAt: executedAt,
		}

		order.Fills = append(order.Fills, incomingFill)
		resting.Fills = append(resting.Fills, restingFill)

		m.fills.Append(incomingFill)
		m.fills.Append(restingFill)
		fills = append(fills, incomingFill, restingFill)

		// Partial consumption keeps the remainder's time priority: the
		// entry stays where it is.
		if resting.RemainingQuantity == 0 {
			book.Remove(resting.OrderID)
		}
	}

	return fills
}

// triggerStops resubmits every stop order whose trigger is crossed by a
// single trade price.
func (m *Matcher) triggerStops(symbol string, lastPrice int64) {
	m.triggerStopsBetween(symbol, lastPrice, lastPrice)
}

// triggerStopsBetween resubmits every stop order whose trigger is
// crossed anywhere in a pass's [low, high] fill-price range: a sweep
// prints a trade at every level it consumes, and a stop fires on any of
// them. Resubmission runs a fresh matching pass, whose own trades may
// trigger further stops; recursion is bounded by the number of resting
// stops.
func (m *Matcher) triggerStopsBetween(symbol string, low, high int64) {
	for _, order := range m.stops.TriggeredBetween(symbol, low, high) {
		m.execute(order)
	}
}

// Cancel cancels a pending or partially filled order. It acquires the
// per-symbol write lock, validates the order status, removes the order
// from the book (or the stop manager), and marks it cancelled.
//
// Returns domain.ErrOrderNotFound if the order does not exist and
// domain.ErrOrderTerminal if it is already filled, cancelled, or
// rejected.
func (m *Matcher) Cancel(orderID string) (*domain.Order, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return nil, err
	}

	book := m.books.GetOrCreate(order.Symbol)
	book.mu.Lock()
	defer book.mu.Unlock()

	if order.Terminal() {
		return nil, domain.ErrOrderTerminal
	}

	prevTop := book.Top()
	m.stops.Remove(orderID)
	book.Remove(orderID)

	order.RemainingQuantity = 0
	order.Status = domain.OrderStatusCancelled
	order.UpdatedAt = time.Now()

	book.assertUncrossed()
	newTop := book.Top()
	if m.market != nil && !topsEqual(prevTop, newTop) {
		m.market.PublishBookTop(newTop)
	}

	return order, nil
}

// Amend atomically replaces an order's quantity and price as a
// cancel+re-place under the symbol lock. The re-placed order loses its
// original time priority — it is equivalent to a new order at the back
// of its price level. The new quantity must exceed the filled quantity.
// Market orders cannot be amended.
func (m *Matcher) Amend(orderID string, newQty, newPrice int64) (*PlaceResult, error) {
	order, err := m.orders.Get(orderID)
	if err != nil {
		return nil, err
	}
	inst, err := m.registry.Lookup(order.Symbol)
	if err != nil {
		return nil, err
	}

	book := m.books.GetOrCreate(order.Symbol)
	book.mu.Lock()

	if order.Terminal() {
		book.mu.Unlock()
		return nil, domain.ErrOrderTerminal
	}
	if order.Type == domain.OrderTypeMarket {
		book.mu.Unlock()
		return nil, &domain.ValidationError{Message: "market orders cannot be amended"}
	}
	if err := inst.ValidateQuantity(newQty); err != nil {
		book.mu.Unlock()
		return nil, err
	}
	if newQty <= order.FilledQuantity {
		book.mu.Unlock()
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("new quantity must exceed filled quantity %d", order.FilledQuantity),
		}
	}
	if err := inst.ValidatePrice(newPrice); err != nil {
		book.mu.Unlock()
		return nil, err
	}

	prevTop := book.Top()

	// Cancel leg. An untriggered stop lives in the stop manager; a
	// triggered one behaves like a market order and cannot be amended.
	if order.Type == domain.OrderTypeStop {
		if !m.stops.Remove(orderID) {
			book.mu.Unlock()
			return nil, &domain.ValidationError{Message: "triggered stop orders cannot be amended"}
		}
		order.Quantity = newQty
		order.RemainingQuantity = newQty - order.FilledQuantity
		order.StopPrice = newPrice
		order.UpdatedAt = time.Now()
		m.stops.Add(order)
		book.mu.Unlock()
		return &PlaceResult{Order: order}, nil
	}
	book.Remove(orderID)

	// Re-place leg.
	order.Quantity = newQty
	order.RemainingQuantity = newQty - order.FilledQuantity
	order.UpdatedAt = time.Now()

	order.Price = newPrice
	fills := m.matchLocked(book, order)
	if order.RemainingQuantity > 0 {
		book.Insert(OrderBookEntry{
			Price:    order.Price,
			RestedAt: time.Now(),
			OrderID:  order.OrderID,
			Order:    order,
		})
	}

	book.assertUncrossed()
	newTop := book.Top()

	var incoming []*domain.Fill
	var lowPrint, highPrint int64
	printed := false
	for _, f := range fills {
		if m.ledger != nil {
			m.ledger.Deliver(f)
		}
		if f.OrderID != order.OrderID {
			continue
		}
		incoming = append(incoming, f)
		if m.market != nil {
			m.market.PublishTrade(order.Symbol, f.Price, f.Quantity, f.ExecutedAt)
		}
		if !printed || f.Price < lowPrint {
			lowPrint = f.Price
		}
		if !printed || f.Price > highPrint {
			highPrint = f.Price
		}
		printed = true
	}
	if m.market != nil && !topsEqual(prevTop, newTop) {
		m.market.PublishBookTop(newTop)
	}
	book.mu.Unlock()

	if printed {
		m.triggerStopsBetween(order.Symbol, lowPrint, highPrint)
	}

	return &PlaceResult{Order: order, Fills: incoming}, nil
}

// Simulate performs a read-only walk of the opposite side of the book
// to estimate the result of a market order without placing it. For buy
// quotes it walks asks (lowest first); for sell quotes it walks bids
// (highest first).
func (m *Matcher) Simulate(symbol string, side domain.Side, quantity int64) *QuoteResult {
	book := m.books.GetOrCreate(symbol)

	book.mu.RLock()
	defer book.mu.RUnlock()

	result := &QuoteResult{
		PriceLevels: make([]QuotePriceLevel, 0),
	}

	remaining := quantity
	var totalCost int64

	walkFn := func(entry OrderBookEntry) bool {
		if remaining <= 0 {
			return false
		}
		fillQty := entry.Order.RemainingQuantity
		if fillQty > remaining {
			fillQty = remaining
		}
		totalCost += entry.Price * fillQty
		result.QuantityAvailable += fillQty
		remaining -= fillQty

		// Aggregate into price levels.
		if len(result.PriceLevels) > 0 && result.PriceLevels[len(result.PriceLevels)-1].Price == entry.Price {
			result.PriceLevels[len(result.PriceLevels)-1].Quantity += fillQty
		} else {
			result.PriceLevels = append(result.PriceLevels, QuotePriceLevel{
				Price:    entry.Price,
				Quantity: fillQty,
			})
		}
		return true
	}

	if side == domain.SideBuy {
		book.WalkAsks(walkFn)
	} else {
		book.WalkBids(walkFn)
	}

	if result.QuantityAvailable > 0 {
		avgPrice := totalCost / result.QuantityAvailable
		result.EstimatedAvgPrice = &avgPrice
		result.EstimatedTotal = &totalCost
	}
	result.FullyFillable = result.QuantityAvailable >= quantity

	return result
}

// TriggerStops resubmits stop orders whose trigger is crossed by an
// externally observed last trade price. Used when trade prints arrive
// from outside the engine.
func (m *Matcher) TriggerStops(symbol string, lastPrice int64) {
	m.triggerStops(symbol, lastPrice)
}

// Books exposes the book manager for snapshot queries.
func (m *Matcher) Books() *BookManager {
	return m.books
}

// PendingStops returns the number of untriggered stop orders for a
// symbol.
func (m *Matcher) PendingStops(symbol string) int {
	return m.stops.PendingCount(symbol)
}

func topsEqual(a, b domain.BookTop) bool {
	return quotesEqual(a.Bid, b.Bid) && quotesEqual(a.Ask, b.Ask)
}

func quotesEqual(a, b *domain.Quote) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Price == b.Price && a.Quantity == b.Quantity
}
