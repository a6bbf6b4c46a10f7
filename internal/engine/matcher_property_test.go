package engine

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/efreitasn/tradecore/internal/domain"
)

// Property: a bid matches a resting ask exactly when bid >= ask, and
// the book is never crossed afterwards.
func TestProperty_PriceCompatibilityDeterminesMatching(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		bidPrice := rapid.Int64Range(1, 10000).Draw(t, "bidPrice")
		askPrice := rapid.Int64Range(1, 10000).Draw(t, "askPrice")
		qty := rapid.Int64Range(1, 100).Draw(t, "qty")

		m, _, _ := newTestMatcher()

		if _, err := m.Place(newLimitOrder("seller", domain.SideSell, "TEST", askPrice, qty)); err != nil {
			t.Fatalf("failed to place ask: %v", err)
		}

		result, err := m.Place(newLimitOrder("buyer", domain.SideBuy, "TEST", bidPrice, qty))
		if err != nil {
			t.Fatalf("failed to place bid: %v", err)
		}

		shouldMatch := bidPrice >= askPrice
		if shouldMatch && len(result.Fills) == 0 {
			t.Fatalf("expected fill when bid=%d >= ask=%d, but got none", bidPrice, askPrice)
		}
		if !shouldMatch && len(result.Fills) != 0 {
			t.Fatalf("expected no fill when bid=%d < ask=%d, but got %d fills", bidPrice, askPrice, len(result.Fills))
		}

		book := m.books.GetOrCreate("TEST")
		bestBid, hasBid := book.BestBid()
		bestAsk, hasAsk := book.BestAsk()
		if hasBid && hasAsk && bestBid.Price >= bestAsk.Price {
			t.Fatalf("book is crossed: best bid %d >= best ask %d", bestBid.Price, bestAsk.Price)
		}
	})
}

// Property: execution always happens at the resting order's price.
func TestProperty_ExecutionAtRestingPrice(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		askPrice := rapid.Int64Range(1, 5000).Draw(t, "askPrice")
		bidPremium := rapid.Int64Range(0, 5000).Draw(t, "bidPremium")
		bidPrice := askPrice + bidPremium
		qty := rapid.Int64Range(1, 100).Draw(t, "qty")

		m, _, _ := newTestMatcher()

		if _, err := m.Place(newLimitOrder("seller", domain.SideSell, "TEST", askPrice, qty)); err != nil {
			t.Fatalf("failed to place ask: %v", err)
		}

		result, err := m.Place(newLimitOrder("buyer", domain.SideBuy, "TEST", bidPrice, qty))
		if err != nil {
			t.Fatalf("failed to place bid: %v", err)
		}
		if len(result.Fills) == 0 {
			t.Fatalf("expected fill with bid=%d >= ask=%d", bidPrice, askPrice)
		}
		for i, f := range result.Fills {
			if f.Price != askPrice {
				t.Fatalf("fill[%d]: execution price %d != resting price %d", i, f.Price, askPrice)
			}
		}
	})
}

// Property: filled + remaining always equals the original quantity, and
// the sum of an order's fills equals its filled quantity, for every
// order in a random sequence of placements.
func TestProperty_QuantityConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, _, _ := newTestMatcher()

		var placed []*domain.Order
		n := rapid.IntRange(1, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			side := domain.SideBuy
			if rapid.Bool().Draw(t, "isSell") {
				side = domain.SideSell
			}
			price := rapid.Int64Range(90, 110).Draw(t, "price")
			qty := rapid.Int64Range(1, 50).Draw(t, "qty")

			var order *domain.Order
			if rapid.Bool().Draw(t, "isMarket") {
				order = newMarketOrder("acct", side, "TEST", qty)
			} else {
				order = newLimitOrder("acct", side, "TEST", price, qty)
			}
			result, err := m.Place(order)
			if err != nil {
				t.Fatalf("place failed: %v", err)
			}
			placed = append(placed, result.Order)
		}

		for _, o := range placed {
			if o.FilledQuantity+o.RemainingQuantity != o.Quantity {
				t.Fatalf("order %s: filled %d + remaining %d != quantity %d",
					o.OrderID, o.FilledQuantity, o.RemainingQuantity, o.Quantity)
			}
			var sum int64
			for _, f := range o.Fills {
				sum += f.Quantity
			}
			if sum != o.FilledQuantity {
				t.Fatalf("order %s: fill sum %d != filled quantity %d", o.OrderID, sum, o.FilledQuantity)
			}
		}

		book := m.books.GetOrCreate("TEST")
		bestBid, hasBid := book.BestBid()
		bestAsk, hasAsk := book.BestAsk()
		if hasBid && hasAsk && bestBid.Price >= bestAsk.Price {
			t.Fatalf("book is crossed: best bid %d >= best ask %d", bestBid.Price, bestAsk.Price)
		}
	})
}

// Property: buy and sell fills balance globally — every match produces
// one fill per side with equal price and quantity.
func TestProperty_FillsBalanceAcrossSides(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m, _, fills := newTestMatcher()

		n := rapid.IntRange(1, 20).Draw(t, "n")
		for i := 0; i < n; i++ {
			side := domain.SideBuy
			if rapid.Bool().Draw(t, "isSell") {
				side = domain.SideSell
			}
			price := rapid.Int64Range(95, 105).Draw(t, "price")
			qty := rapid.Int64Range(1, 30).Draw(t, "qty")
			if _, err := m.Place(newLimitOrder("acct", side, "TEST", price, qty)); err != nil {
				t.Fatalf("place failed: %v", err)
			}
		}

		var buyQty, sellQty, buyNotional, sellNotional int64
		for _, f := range fills.BySymbol("TEST") {
			if f.Side == domain.SideBuy {
				buyQty += f.Quantity
				buyNotional += f.Price * f.Quantity
			} else {
				sellQty += f.Quantity
				sellNotional += f.Price * f.Quantity
			}
		}
		if buyQty != sellQty {
			t.Fatalf("buy quantity %d != sell quantity %d", buyQty, sellQty)
		}
		if buyNotional != sellNotional {
			t.Fatalf("buy notional %d != sell notional %d", buyNotional, sellNotional)
		}
	})
}
