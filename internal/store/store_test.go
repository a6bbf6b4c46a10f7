package store

import (
	"errors"
	"testing"
	"time"

	"github.com/efreitasn/tradecore/internal/domain"
)

func TestOrderStore_CreateAndGet(t *testing.T) {
	s := NewOrderStore()

	o := &domain.Order{OrderID: "o1", Account: "alice", Status: domain.OrderStatusPending}
	s.Create(o)

	got, err := s.Get("o1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != o {
		t.Error("expected the same order instance")
	}

	if _, err := s.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderStore_ListByAccount(t *testing.T) {
	s := NewOrderStore()
	for i, status := range []domain.OrderStatus{
		domain.OrderStatusPending,
		domain.OrderStatusFilled,
		domain.OrderStatusPending,
	} {
		s.Create(&domain.Order{OrderID: string(rune('a' + i)), Account: "alice", Status: status})
	}
	s.Create(&domain.Order{OrderID: "z", Account: "bob", Status: domain.OrderStatusPending})

	// Newest first, no filter.
	orders, total := s.ListByAccount("alice", nil, 1, 10)
	if total != 3 || len(orders) != 3 {
		t.Fatalf("expected 3 orders, got %d (total %d)", len(orders), total)
	}
	if orders[0].OrderID != "c" || orders[2].OrderID != "a" {
		t.Errorf("expected reverse chronological order, got %s..%s", orders[0].OrderID, orders[2].OrderID)
	}

	// Status filter.
	pending := domain.OrderStatusPending
	orders, total = s.ListByAccount("alice", &pending, 1, 10)
	if total != 2 {
		t.Errorf("expected 2 pending, got %d", total)
	}

	// Pagination.
	orders, total = s.ListByAccount("alice", nil, 2, 2)
	if total != 3 || len(orders) != 1 {
		t.Errorf("expected page 2 to hold 1 order, got %d (total %d)", len(orders), total)
	}

	// Out-of-range page.
	orders, _ = s.ListByAccount("alice", nil, 5, 2)
	if len(orders) != 0 {
		t.Errorf("expected empty page, got %d", len(orders))
	}
}

func TestFillStore_AppendAndRecent(t *testing.T) {
	s := NewFillStore()
	for i := 0; i < 5; i++ {
		s.Append(&domain.Fill{FillID: string(rune('a' + i)), Symbol: "TEST"})
	}

	all := s.BySymbol("TEST")
	if len(all) != 5 || all[0].FillID != "a" {
		t.Fatalf("expected 5 fills oldest first, got %+v", all)
	}

	recent := s.Recent("TEST", 2)
	if len(recent) != 2 || recent[0].FillID != "e" || recent[1].FillID != "d" {
		t.Errorf("expected [e d], got %+v", recent)
	}

	if got := s.Recent("TEST", 10); len(got) != 5 {
		t.Errorf("expected all 5, got %d", len(got))
	}
	if got := s.Recent("OTHER", 3); len(got) != 0 {
		t.Errorf("expected none for other symbol, got %d", len(got))
	}
}

func TestWebhookStore_UpsertDedupes(t *testing.T) {
	s := NewWebhookStore()
	now := time.Now()

	created := s.Upsert(&domain.Webhook{WebhookID: "w1", Event: "fill.executed", URL: "https://a.example", CreatedAt: now, UpdatedAt: now})
	if !created {
		t.Error("expected first upsert to create")
	}

	later := now.Add(time.Minute)
	created = s.Upsert(&domain.Webhook{WebhookID: "w2", Event: "fill.executed", URL: "https://a.example", UpdatedAt: later})
	if created {
		t.Error("expected duplicate (event, url) to update, not create")
	}

	got := s.GetByKey("fill.executed", "https://a.example")
	if got == nil || got.WebhookID != "w1" {
		t.Fatalf("expected original webhook, got %+v", got)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Error("expected UpdatedAt refreshed on duplicate upsert")
	}
}

func TestWebhookStore_ListAndDelete(t *testing.T) {
	s := NewWebhookStore()

	s.Upsert(&domain.Webhook{WebhookID: "w1", Event: "fill.executed", URL: "https://a.example"})
	s.Upsert(&domain.Webhook{WebhookID: "w2", Event: "order.cancelled", URL: "https://a.example"})
	s.Upsert(&domain.Webhook{WebhookID: "w3", Event: "fill.executed", URL: "https://b.example"})

	if got := s.ListByEvent("fill.executed"); len(got) != 2 {
		t.Errorf("expected 2 fill.executed subscribers, got %d", len(got))
	}
	if got := s.List(); len(got) != 3 {
		t.Errorf("expected 3 webhooks, got %d", len(got))
	}

	if err := s.Delete("w1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Delete("w1"); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Errorf("expected ErrWebhookNotFound, got %v", err)
	}
	if got := s.ListByEvent("fill.executed"); len(got) != 1 {
		t.Errorf("expected 1 subscriber after delete, got %d", len(got))
	}
}
