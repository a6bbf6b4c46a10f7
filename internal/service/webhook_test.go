package service

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/store"
)

func TestWebhookUpsert_Validation(t *testing.T) {
	svc := NewWebhookService(store.NewWebhookStore(), time.Second)

	tests := []struct {
		name string
		req  UpsertWebhookRequest
	}{
		{"empty url", UpsertWebhookRequest{URL: "", Events: []string{"fill.executed"}}},
		{"url too long", UpsertWebhookRequest{URL: "https://x.example/" + strings.Repeat("a", 2048), Events: []string{"fill.executed"}}},
		{"relative url", UpsertWebhookRequest{URL: "/hooks", Events: []string{"fill.executed"}}},
		{"http scheme", UpsertWebhookRequest{URL: "http://x.example/hook", Events: []string{"fill.executed"}}},
		{"no events", UpsertWebhookRequest{URL: "https://x.example/hook", Events: nil}},
		{"unknown event", UpsertWebhookRequest{URL: "https://x.example/hook", Events: []string{"order.filled"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Upsert(tt.req)
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestWebhookUpsert_DedupesEventsAndPairs(t *testing.T) {
	svc := NewWebhookService(store.NewWebhookStore(), time.Second)

	webhooks, created, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://x.example/hook",
		Events: []string{"fill.executed", "fill.executed", "order.cancelled"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !created {
		t.Error("expected first upsert to create")
	}
	if len(webhooks) != 2 {
		t.Fatalf("expected 2 webhooks after event dedupe, got %d", len(webhooks))
	}

	// Re-registering the same pairs updates instead of creating.
	again, created, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://x.example/hook",
		Events: []string{"fill.executed"},
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created {
		t.Error("expected update, not create")
	}
	if len(again) != 1 || again[0].WebhookID != webhooks[0].WebhookID {
		t.Errorf("expected the original webhook back, got %+v", again)
	}

	if got := svc.List(); len(got) != 2 {
		t.Errorf("expected 2 stored webhooks, got %d", len(got))
	}
}

func TestWebhookDelete(t *testing.T) {
	svc := NewWebhookService(store.NewWebhookStore(), time.Second)

	webhooks, _, err := svc.Upsert(UpsertWebhookRequest{
		URL:    "https://x.example/hook",
		Events: []string{"fill.executed"},
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := svc.Delete(webhooks[0].WebhookID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(webhooks[0].WebhookID); !errors.Is(err, domain.ErrWebhookNotFound) {
		t.Errorf("expected ErrWebhookNotFound, got %v", err)
	}
}

func TestDispatchFillExecuted_DeliversPayload(t *testing.T) {
	var mu sync.Mutex
	var received []fillExecutedPayload
	var headers http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p fillExecutedPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		mu.Lock()
		received = append(received, p)
		headers = r.Header.Clone()
		mu.Unlock()
	}))
	defer srv.Close()

	webhookStore := store.NewWebhookStore()
	// Registered directly: Upsert rejects non-https URLs and the test
	// server speaks plain HTTP.
	webhookStore.Upsert(&domain.Webhook{
		WebhookID: "w1", Event: "fill.executed", URL: srv.URL,
	})
	svc := NewWebhookService(webhookStore, time.Second)

	order := &domain.Order{
		OrderID: "o1", Account: "alice", Symbol: "TEST",
		Side: domain.SideBuy, Status: domain.OrderStatusFilled,
		FilledQuantity: 5,
	}
	fill := &domain.Fill{
		FillID: "f1", OrderID: "o1", Account: "alice", Symbol: "TEST",
		Side: domain.SideBuy, Price: 10100, Quantity: 5,
		ExecutedAt: time.Now().UTC(),
	}

	svc.DispatchFillExecuted(fill, order)

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("webhook was not delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	p := received[0]
	if p.Event != "fill.executed" || p.Data.FillID != "f1" || p.Data.FillPrice != 101.00 {
		t.Errorf("unexpected payload: %+v", p)
	}
	if headers.Get("X-Webhook-Id") != "w1" || headers.Get("X-Event-Type") != "fill.executed" {
		t.Errorf("missing delivery headers: %+v", headers)
	}
	if headers.Get("X-Delivery-Id") == "" {
		t.Error("expected an X-Delivery-Id header")
	}
}

func TestDispatchOrderCancelled_NoSubscribersIsNoop(t *testing.T) {
	svc := NewWebhookService(store.NewWebhookStore(), time.Second)

	// Must not panic or block with an empty subscriber set.
	svc.DispatchOrderCancelled(&domain.Order{OrderID: "o1", Status: domain.OrderStatusCancelled})
}
