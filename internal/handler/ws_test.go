package handler

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/marketdata"
)

func newTestHub(t *testing.T) (*Hub, *marketdata.Feed) {
	t.Helper()

	registry := domain.NewInstrumentRegistry()
	if err := registry.Register(domain.Instrument{
		Symbol: "TEST", TickSize: 1, LotSize: 1, MinPrice: 1, MaxPrice: 100_000_000,
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	feed := marketdata.NewFeed(registry, []domain.Timeframe{domain.Timeframe1m})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewHub(feed, logger), feed
}

func (h *Hub) bridgeActive(channel string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.bridges[channel]
}

func TestHub_BridgeRestartsAfterSubscriptionEnds(t *testing.T) {
	hub, feed := newTestHub(t)

	sub, err := feed.SubscribeBookTop("TEST")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	hub.mu.Lock()
	hub.bridges["book:TEST"] = true
	hub.mu.Unlock()

	done := make(chan struct{})
	go func() {
		hub.pumpBookTops("book:TEST", sub)
		close(done)
	}()

	// The feed ending the subscription (slow-consumer drop or close)
	// must clear the bridge entry so a later subscribe restarts it.
	sub.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pump did not exit after the subscription closed")
	}

	if hub.bridgeActive("book:TEST") {
		t.Fatal("expected the bridge entry cleared after the pump exited")
	}

	if err := hub.ensureBridge("book:TEST"); err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	if !hub.bridgeActive("book:TEST") {
		t.Error("expected a fresh bridge after resubscribe")
	}
}

func TestHub_EnsureBridgeRejectsUnknownChannels(t *testing.T) {
	hub, _ := newTestHub(t)

	for _, channel := range []string{"book:NOPE", "candles:TEST:2m", "trades"} {
		if err := hub.ensureBridge(channel); err == nil {
			t.Errorf("expected an error for %q", channel)
		}
		if hub.bridgeActive(channel) {
			t.Errorf("expected no bridge entry left for %q", channel)
		}
	}
}
