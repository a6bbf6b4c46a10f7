package engine

import (
	"testing"

	"github.com/efreitasn/tradecore/internal/domain"
)

func stopOrder(id string, side domain.Side, trigger int64) *domain.Order {
	return &domain.Order{
		OrderID:   id,
		Type:      domain.OrderTypeStop,
		Side:      side,
		Symbol:    "TEST",
		StopPrice: trigger,
		Quantity:  1,
	}
}

func TestStopManager_BuyTriggersAtOrAbove(t *testing.T) {
	sm := NewStopManager()
	sm.Add(stopOrder("a", domain.SideBuy, 10000))
	sm.Add(stopOrder("b", domain.SideBuy, 10500))

	triggered := sm.Triggered("TEST", 10000)
	if len(triggered) != 1 || triggered[0].OrderID != "a" {
		t.Fatalf("expected only order a triggered, got %+v", triggered)
	}
	if sm.PendingCount("TEST") != 1 {
		t.Errorf("expected 1 pending, got %d", sm.PendingCount("TEST"))
	}

	triggered = sm.Triggered("TEST", 10500)
	if len(triggered) != 1 || triggered[0].OrderID != "b" {
		t.Fatalf("expected order b triggered, got %+v", triggered)
	}
}

func TestStopManager_SellTriggersAtOrBelow(t *testing.T) {
	sm := NewStopManager()
	sm.Add(stopOrder("a", domain.SideSell, 9000))
	sm.Add(stopOrder("b", domain.SideSell, 9500))

	// 9400 <= 9500 triggers b; 9400 > 9000 leaves a resting.
	triggered := sm.Triggered("TEST", 9400)
	if len(triggered) != 1 || triggered[0].OrderID != "b" {
		t.Fatalf("expected only order b triggered, got %+v", triggered)
	}
	if sm.PendingCount("TEST") != 1 {
		t.Errorf("expected 1 pending, got %d", sm.PendingCount("TEST"))
	}
}

func TestStopManager_FIFOAtEqualTrigger(t *testing.T) {
	sm := NewStopManager()
	sm.Add(stopOrder("first", domain.SideBuy, 10000))
	sm.Add(stopOrder("second", domain.SideBuy, 10000))

	triggered := sm.Triggered("TEST", 10000)
	if len(triggered) != 2 {
		t.Fatalf("expected both triggered, got %d", len(triggered))
	}
	if triggered[0].OrderID != "first" || triggered[1].OrderID != "second" {
		t.Errorf("expected arrival order, got %s then %s", triggered[0].OrderID, triggered[1].OrderID)
	}
}

func TestStopManager_TriggeredBetween(t *testing.T) {
	sm := NewStopManager()
	sm.Add(stopOrder("buyLow", domain.SideBuy, 10000))
	sm.Add(stopOrder("buyHigh", domain.SideBuy, 10200))
	sm.Add(stopOrder("sellHigh", domain.SideSell, 10000))
	sm.Add(stopOrder("sellLow", domain.SideSell, 9800))

	// A sweep printing trades from 9900 up to 10100: buy stops fire
	// against the high, sell stops against the low.
	triggered := sm.TriggeredBetween("TEST", 9900, 10100)
	ids := make(map[string]bool, len(triggered))
	for _, o := range triggered {
		ids[o.OrderID] = true
	}
	if len(triggered) != 2 || !ids["buyLow"] || !ids["sellHigh"] {
		t.Fatalf("expected buyLow and sellHigh triggered, got %+v", ids)
	}
	if sm.PendingCount("TEST") != 2 {
		t.Errorf("expected 2 pending, got %d", sm.PendingCount("TEST"))
	}
}

func TestStopManager_Remove(t *testing.T) {
	sm := NewStopManager()
	sm.Add(stopOrder("a", domain.SideBuy, 10000))

	if !sm.Remove("a") {
		t.Error("expected Remove to find the order")
	}
	if sm.Remove("a") {
		t.Error("expected second Remove to fail")
	}
	if sm.PendingCount("TEST") != 0 {
		t.Errorf("expected 0 pending, got %d", sm.PendingCount("TEST"))
	}
}

func TestStopManager_TriggeredEmptyForOtherSymbol(t *testing.T) {
	sm := NewStopManager()
	sm.Add(stopOrder("a", domain.SideBuy, 10000))

	if got := sm.Triggered("OTHER", 20000); len(got) != 0 {
		t.Errorf("expected no triggers for other symbol, got %d", len(got))
	}
}
