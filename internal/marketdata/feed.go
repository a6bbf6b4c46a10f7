package marketdata

import (
	"sync"
	"time"

	"github.com/efreitasn/tradecore/internal/domain"
)

// subscriptionBuffer is the per-subscriber channel depth before a slow
// consumer is dropped.
const subscriptionBuffer = 64

// Summary is the per-symbol session snapshot consumed by the dashboard's
// market data list: last price, change against the session open, day
// high/low, and cumulative volume.
type Summary struct {
	Symbol        string
	HasTrade      bool
	LastPrice     int64 // cents
	Change        int64 // cents, last − session open
	ChangePercent float64
	High          int64
	Low           int64
	Volume        int64
	LastTradeAt   time.Time
}

// Feed maintains per-symbol market data state: last trade, session
// stats, the best-quote slot pushed by the order book engine, and an
// OHLCV candle series per configured timeframe. Ingestion is serialized
// per symbol; symbols never share mutable state.
type Feed struct {
	registry   *domain.InstrumentRegistry
	timeframes []domain.Timeframe

	mu     sync.RWMutex
	states map[string]*symbolState
}

type symbolState struct {
	mu sync.Mutex

	hasTrade     bool
	lastPrice    int64
	lastTradeAt  time.Time
	lastIngestTS time.Time
	sessionOpen  int64
	high         int64
	low          int64
	volume       int64

	top domain.BookTop

	open       map[domain.Timeframe]*domain.Candle
	closed     map[domain.Timeframe][]domain.Candle
	candleSubs map[domain.Timeframe]*fanout[domain.Candle]
	topSubs    *fanout[domain.BookTop]
}

// NewFeed creates a feed for the given registry and candle timeframes.
func NewFeed(registry *domain.InstrumentRegistry, timeframes []domain.Timeframe) *Feed {
	return &Feed{
		registry:   registry,
		timeframes: timeframes,
		states:     make(map[string]*symbolState),
	}
}

// state returns the per-symbol state, creating it if needed. The caller
// must have validated the symbol against the registry.
func (f *Feed) state(symbol string) *symbolState {
	f.mu.RLock()
	st, ok := f.states[symbol]
	f.mu.RUnlock()
	if ok {
		return st
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if st, ok = f.states[symbol]; ok {
		return st
	}
	st = &symbolState{
		top:        domain.BookTop{Symbol: symbol},
		open:       make(map[domain.Timeframe]*domain.Candle),
		closed:     make(map[domain.Timeframe][]domain.Candle),
		candleSubs: make(map[domain.Timeframe]*fanout[domain.Candle]),
		topSubs:    newFanout[domain.BookTop](),
	}
	for _, tf := range f.timeframes {
		st.candleSubs[tf] = newFanout[domain.Candle]()
	}
	f.states[symbol] = st
	return st
}

// IngestTrade ingests an external trade print. It fails with
// domain.ErrUnknownSymbol for unregistered symbols and with
// domain.ErrNonMonotonicTimestamp when ts precedes the last ingested
// timestamp for the symbol — the feed assumes ordered delivery.
func (f *Feed) IngestTrade(symbol string, price, qty int64, ts time.Time) error {
	if !f.registry.Exists(symbol) {
		return domain.ErrUnknownSymbol
	}

	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if ts.Before(st.lastIngestTS) {
		return domain.ErrNonMonotonicTimestamp
	}

	f.applyTrade(symbol, st, price, qty, ts)
	return nil
}

// PublishTrade records a trade produced by the matching engine. Engine
// prints are already serialized per symbol by the book lock, so the
// monotonic-delivery check does not apply; a print carrying an earlier
// wall-clock timestamp than an external ingest is clamped forward.
func (f *Feed) PublishTrade(symbol string, price, qty int64, executedAt time.Time) {
	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	if executedAt.Before(st.lastIngestTS) {
		executedAt = st.lastIngestTS
	}
	f.applyTrade(symbol, st, price, qty, executedAt)
}

// applyTrade updates session stats and rolls the trade into the open
// candle of every timeframe, closing and opening candles across bucket
// boundaries. The caller holds st.mu.
func (f *Feed) applyTrade(symbol string, st *symbolState, price, qty int64, ts time.Time) {
	if !st.hasTrade {
		st.hasTrade = true
		st.sessionOpen = price
		st.high = price
		st.low = price
	}
	st.lastPrice = price
	st.lastTradeAt = ts
	st.lastIngestTS = ts
	if price > st.high {
		st.high = price
	}
	if price < st.low {
		st.low = price
	}
	st.volume += qty

	for _, tf := range f.timeframes {
		open := st.open[tf]
		if open != nil && ts.Sub(open.StartsAt) >= tf.Duration() {
			// Bucket boundary crossed: the candle is now immutable.
			st.closed[tf] = append(st.closed[tf], *open)
			st.candleSubs[tf].publish(*open)
			open = nil
		}
		if open == nil {
			st.open[tf] = &domain.Candle{
				Symbol:    symbol,
				Timeframe: tf,
				Open:      price,
				High:      price,
				Low:       price,
				Close:     price,
				Volume:    qty,
				StartsAt:  tf.BucketStart(ts),
			}
			continue
		}
		open.Apply(price, qty)
	}
}

// PublishBookTop updates the symbol's best-quote slot and fans the
// update out to book-top subscribers.
func (f *Feed) PublishBookTop(top domain.BookTop) {
	st := f.state(top.Symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	st.top = top
	st.topSubs.publish(top)
}

// BestQuote returns the current best-bid/best-ask snapshot. Both sides
// are nil when no orders rest on the book.
func (f *Feed) BestQuote(symbol string) (domain.BookTop, error) {
	if !f.registry.Exists(symbol) {
		return domain.BookTop{}, domain.ErrUnknownSymbol
	}

	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.top, nil
}

// LastPrice returns the mark price for a symbol: the last trade print,
// engine or external. The bool is false before the first trade.
func (f *Feed) LastPrice(symbol string) (int64, bool) {
	if !f.registry.Exists(symbol) {
		return 0, false
	}

	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.lastPrice, st.hasTrade
}

// Summary returns the session snapshot for a symbol.
func (f *Feed) Summary(symbol string) (Summary, error) {
	if !f.registry.Exists(symbol) {
		return Summary{}, domain.ErrUnknownSymbol
	}

	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	s := Summary{Symbol: symbol, HasTrade: st.hasTrade}
	if !st.hasTrade {
		return s, nil
	}
	s.LastPrice = st.lastPrice
	s.Change = st.lastPrice - st.sessionOpen
	if st.sessionOpen != 0 {
		s.ChangePercent = float64(s.Change) / float64(st.sessionOpen) * 100
	}
	s.High = st.high
	s.Low = st.low
	s.Volume = st.volume
	s.LastTradeAt = st.lastTradeAt
	return s, nil
}

// Candles returns up to limit of the most recent candles for a
// (symbol, timeframe), oldest first. The still-open candle, if any, is
// included as the final element as a snapshot copy.
func (f *Feed) Candles(symbol string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	if !f.registry.Exists(symbol) {
		return nil, domain.ErrUnknownSymbol
	}
	if _, err := domain.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}

	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	closed := st.closed[tf]
	out := make([]domain.Candle, 0, limit)

	total := len(closed)
	if st.open[tf] != nil {
		total++
	}
	skip := 0
	if limit > 0 && total > limit {
		skip = total - limit
	}
	for i := skip; i < len(closed); i++ {
		out = append(out, closed[i])
	}
	if open := st.open[tf]; open != nil && (limit <= 0 || len(out) < limit) {
		out = append(out, *open)
	}
	return out, nil
}

// SubscribeCandles returns a subscription delivering one event per
// closed candle for the (symbol, timeframe), in close order.
func (f *Feed) SubscribeCandles(symbol string, tf domain.Timeframe) (*Subscription[domain.Candle], error) {
	if !f.registry.Exists(symbol) {
		return nil, domain.ErrUnknownSymbol
	}

	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()

	fo, ok := st.candleSubs[tf]
	if !ok {
		return nil, domain.ErrUnknownTimeframe
	}
	return fo.subscribe(subscriptionBuffer), nil
}

// SubscribeBookTop returns a subscription delivering every book-top
// change for the symbol, in production order.
func (f *Feed) SubscribeBookTop(symbol string) (*Subscription[domain.BookTop], error) {
	if !f.registry.Exists(symbol) {
		return nil, domain.ErrUnknownSymbol
	}

	st := f.state(symbol)
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.topSubs.subscribe(subscriptionBuffer), nil
}
