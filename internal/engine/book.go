package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/tradecore/internal/domain"
)

// OrderBookEntry represents a single order resting on the book. RestedAt
// is the moment the order (re-)entered the book: an amended order gets a
// fresh RestedAt and therefore loses its time priority. Seq is a
// per-book insertion sequence assigned by Insert; it makes the FIFO
// tie-break unconditional when two entries share a RestedAt nanosecond.
type OrderBookEntry struct {
	Price    int64
	RestedAt time.Time
	Seq      uint64
	OrderID  string
	Order    *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         int64
	TotalQuantity int64
	OrderCount    int
}

// bidLess defines ordering for the bid side: price descending, then
// rested_at ascending, then insertion sequence ascending. This means
// Min() returns the best bid (highest price, earliest arrival).
func bidLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price > b.Price
	}
	if !a.RestedAt.Equal(b.RestedAt) {
		return a.RestedAt.Before(b.RestedAt)
	}
	return a.Seq < b.Seq
}

// askLess defines ordering for the ask side: price ascending, then
// rested_at ascending, then insertion sequence ascending. Min()
// returns the best ask (lowest price, earliest arrival).
func askLess(a, b OrderBookEntry) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	if !a.RestedAt.Equal(b.RestedAt) {
		return a.RestedAt.Before(b.RestedAt)
	}
	return a.Seq < b.Seq
}

// OrderBook maintains the bid and ask sides for a single symbol using
// B-trees with a secondary index for O(log n) removal by order ID.
type OrderBook struct {
	symbol string
	mu     sync.RWMutex
	seq    uint64
	bids   *btree.BTreeG[OrderBookEntry]
	asks   *btree.BTreeG[OrderBookEntry]
	index  map[string]OrderBookEntry // order_id → entry
}

// NewOrderBook creates an order book for the given symbol.
func NewOrderBook(symbol string) *OrderBook {
	const degree = 32
	return &OrderBook{
		symbol: symbol,
		bids:   btree.NewG[OrderBookEntry](degree, bidLess),
		asks:   btree.NewG[OrderBookEntry](degree, askLess),
		index:  make(map[string]OrderBookEntry),
	}
}

// RLock acquires the read lock on the order book.
func (ob *OrderBook) RLock() {
	ob.mu.RLock()
}

// RUnlock releases the read lock on the order book.
func (ob *OrderBook) RUnlock() {
	ob.mu.RUnlock()
}

// Insert adds an entry to the side matching the order's side, stamping
// it with the next insertion sequence. The caller holds the write lock.
func (ob *OrderBook) Insert(entry OrderBookEntry) {
	ob.seq++
	entry.Seq = ob.seq
	if entry.Order.Side == domain.SideBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
	ob.index[entry.OrderID] = entry
}

// Remove deletes an order from the book by order ID using the
// secondary index. It tries both sides since the caller may not
// know which side the order is on.
func (ob *OrderBook) Remove(orderID string) {
	entry, ok := ob.index[orderID]
	if !ok {
		return
	}
	delete(ob.index, orderID)
	// Try both sides — Delete is a no-op if the entry isn't found.
	ob.bids.Delete(entry)
	ob.asks.Delete(entry)
}

// BestBid returns the highest-priority bid (highest price, earliest time).
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest time).
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	return ob.asks.Min()
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

// topLevels iterates the B-tree in order and aggregates entries into
// at most n price levels.
func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	if n <= 0 {
		return nil
	}
	levels := make([]PriceLevel, 0, n)
	tree.Ascend(func(entry OrderBookEntry) bool {
		if len(levels) > 0 && levels[len(levels)-1].Price == entry.Price {
			levels[len(levels)-1].TotalQuantity += entry.Order.RemainingQuantity
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: entry.Order.RemainingQuantity,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// Top returns the best-bid/best-ask snapshot with quantities aggregated
// across the whole top price level. Either side may be nil.
func (ob *OrderBook) Top() domain.BookTop {
	top := domain.BookTop{Symbol: ob.symbol}
	if levels := topLevels(ob.bids, 1); len(levels) > 0 {
		top.Bid = &domain.Quote{Price: levels[0].Price, Quantity: levels[0].TotalQuantity}
	}
	if levels := topLevels(ob.asks, 1); len(levels) > 0 {
		top.Ask = &domain.Quote{Price: levels[0].Price, Quantity: levels[0].TotalQuantity}
	}
	return top
}

// WalkAsks iterates asks in order (lowest price first). The callback
// returns true to continue, false to stop. Used for quote simulation.
func (ob *OrderBook) WalkAsks(fn func(OrderBookEntry) bool) {
	ob.asks.Ascend(fn)
}

// WalkBids iterates bids in order (highest price first). The callback
// returns true to continue, false to stop. Used for quote simulation.
func (ob *OrderBook) WalkBids(fn func(OrderBookEntry) bool) {
	ob.bids.Ascend(fn)
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// assertUncrossed panics if best bid ≥ best ask. A crossed book after a
// completed mutation means the matching pass is corrupt; halting the
// symbol is preferable to trading on bad state.
func (ob *OrderBook) assertUncrossed() {
	bid, okBid := ob.bids.Min()
	ask, okAsk := ob.asks.Min()
	if okBid && okAsk && bid.Price >= ask.Price {
		panic(fmt.Sprintf("engine: crossed book for %s: bid %d >= ask %d", ob.symbol, bid.Price, ask.Price))
	}
}

// BookManager is a thread-safe map of symbol → OrderBook.
type BookManager struct {
	mu    sync.RWMutex
	books map[string]*OrderBook
}

// NewBookManager creates a new BookManager.
func NewBookManager() *BookManager {
	return &BookManager{
		books: make(map[string]*OrderBook),
	}
}

// GetOrCreate returns the order book for the given symbol, creating
// one if it doesn't already exist.
func (bm *BookManager) GetOrCreate(symbol string) *OrderBook {
	bm.mu.RLock()
	book, ok := bm.books[symbol]
	bm.mu.RUnlock()
	if ok {
		return book
	}

	bm.mu.Lock()
	defer bm.mu.Unlock()
	// Double-check after acquiring write lock.
	if book, ok = bm.books[symbol]; ok {
		return book
	}
	book = NewOrderBook(symbol)
	bm.books[symbol] = book
	return book
}
