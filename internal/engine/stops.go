package engine

import (
	"sort"
	"sync"

	"github.com/efreitasn/tradecore/internal/domain"
)

// StopManager tracks untriggered stop orders per symbol, sorted by
// trigger price. Buy stops trigger when the last trade price rises to or
// above the trigger; sell stops when it falls to or below. Orders with
// equal triggers keep arrival order.
type StopManager struct {
	mu    sync.Mutex
	buys  map[string][]*domain.Order // symbol → buy stops, trigger ASC
	sells map[string][]*domain.Order // symbol → sell stops, trigger DESC
}

// NewStopManager creates an empty StopManager.
func NewStopManager() *StopManager {
	return &StopManager{
		buys:  make(map[string][]*domain.Order),
		sells: make(map[string][]*domain.Order),
	}
}

// Add inserts an untriggered stop order, keeping the per-symbol slice
// sorted so triggered orders can be collected from the front.
func (sm *StopManager) Add(order *domain.Order) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if order.Side == domain.SideBuy {
		orders := sm.buys[order.Symbol]
		// Binary search for the insertion point; strict > keeps FIFO
		// among equal triggers.
		idx := sort.Search(len(orders), func(i int) bool {
			return orders[i].StopPrice > order.StopPrice
		})
		orders = append(orders, nil)
		copy(orders[idx+1:], orders[idx:])
		orders[idx] = order
		sm.buys[order.Symbol] = orders
		return
	}

	orders := sm.sells[order.Symbol]
	idx := sort.Search(len(orders), func(i int) bool {
		return orders[i].StopPrice < order.StopPrice
	})
	orders = append(orders, nil)
	copy(orders[idx+1:], orders[idx:])
	orders[idx] = order
	sm.sells[order.Symbol] = orders
}

// Remove deletes a stop order by ID. Returns true if it was tracked.
func (sm *StopManager) Remove(orderID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for symbol, orders := range sm.buys {
		for i, o := range orders {
			if o.OrderID == orderID {
				sm.buys[symbol] = append(orders[:i], orders[i+1:]...)
				return true
			}
		}
	}
	for symbol, orders := range sm.sells {
		for i, o := range orders {
			if o.OrderID == orderID {
				sm.sells[symbol] = append(orders[:i], orders[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Triggered removes and returns all stop orders for the symbol whose
// trigger is crossed by a single trade price, in trigger-then-arrival
// order.
func (sm *StopManager) Triggered(symbol string, lastPrice int64) []*domain.Order {
	return sm.TriggeredBetween(symbol, lastPrice, lastPrice)
}

// TriggeredBetween removes and returns all stop orders whose trigger is
// crossed by any trade price in [low, high]. A matching pass that sweeps
// several levels prints trades at each of them, so buy stops are checked
// against the pass's highest price and sell stops against its lowest.
func (sm *StopManager) TriggeredBetween(symbol string, low, high int64) []*domain.Order {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	var out []*domain.Order

	buys := sm.buys[symbol]
	cut := 0
	for cut < len(buys) && buys[cut].StopPrice <= high {
		out = append(out, buys[cut])
		cut++
	}
	if cut > 0 {
		sm.buys[symbol] = buys[cut:]
	}

	sells := sm.sells[symbol]
	cut = 0
	for cut < len(sells) && sells[cut].StopPrice >= low {
		out = append(out, sells[cut])
		cut++
	}
	if cut > 0 {
		sm.sells[symbol] = sells[cut:]
	}

	return out
}

// PendingCount returns the number of untriggered stop orders for the
// symbol. Useful for testing.
func (sm *StopManager) PendingCount(symbol string) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.buys[symbol]) + len(sm.sells[symbol])
}
