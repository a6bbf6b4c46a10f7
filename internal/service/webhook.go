package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/efreitasn/tradecore/internal/domain"
	"github.com/efreitasn/tradecore/internal/store"
)

// Valid webhook event types.
var validWebhookEvents = map[string]bool{
	"fill.executed":   true,
	"order.cancelled": true,
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and event dispatch.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
}

// NewWebhookService creates a new WebhookService with the given delivery
// timeout.
func NewWebhookService(webhookStore *store.WebhookStore, webhookTimeout time.Duration) *WebhookService {
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
	}
}

// Upsert validates the request and creates or updates webhook
// subscriptions, one per (event, url) pair. Returns the resulting
// webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !validWebhookEvents[event] {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: fill.executed, order.cancelled",
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created := s.store.Upsert(w)
		if created {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else {
			existing := s.store.GetByKey(event, req.URL)
			if existing != nil {
				webhooks = append(webhooks, existing)
			}
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions in registration order.
func (s *WebhookService) List() []*domain.Webhook {
	return s.store.List()
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// fillExecutedPayload is the JSON payload for fill.executed webhooks.
type fillExecutedPayload struct {
	Event     string           `json:"event"`
	Timestamp string           `json:"timestamp"`
	Data      fillExecutedData `json:"data"`
}

type fillExecutedData struct {
	FillID                 string  `json:"fill_id"`
	OrderID                string  `json:"order_id"`
	Account                string  `json:"account"`
	Symbol                 string  `json:"symbol"`
	Side                   string  `json:"side"`
	FillPrice              float64 `json:"fill_price"`
	FillQuantity           int64   `json:"fill_quantity"`
	OrderStatus            string  `json:"order_status"`
	OrderFilledQuantity    int64   `json:"order_filled_quantity"`
	OrderRemainingQuantity int64   `json:"order_remaining_quantity"`
}

// orderCancelledPayload is the JSON payload for order.cancelled webhooks.
type orderCancelledPayload struct {
	Event     string             `json:"event"`
	Timestamp string             `json:"timestamp"`
	Data      orderCancelledData `json:"data"`
}

type orderCancelledData struct {
	OrderID           string  `json:"order_id"`
	Account           string  `json:"account"`
	Symbol            string  `json:"symbol"`
	Side              string  `json:"side"`
	Type              string  `json:"type"`
	Price             float64 `json:"price"`
	Quantity          int64   `json:"quantity"`
	FilledQuantity    int64   `json:"filled_quantity"`
	RemainingQuantity int64   `json:"remaining_quantity"`
	Status            string  `json:"status"`
}

// DispatchFillExecuted dispatches a fill.executed webhook notification
// to every subscriber. Fire-and-forget — errors are silently ignored.
func (s *WebhookService) DispatchFillExecuted(fill *domain.Fill, order *domain.Order) {
	subscribers := s.store.ListByEvent("fill.executed")
	if len(subscribers) == 0 {
		return
	}

	payload := fillExecutedPayload{
		Event:     "fill.executed",
		Timestamp: fill.ExecutedAt.UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: fillExecutedData{
			FillID:                 fill.FillID,
			OrderID:                order.OrderID,
			Account:                order.Account,
			Symbol:                 order.Symbol,
			Side:                   string(order.Side),
			FillPrice:              domain.CentsToDollars(fill.Price),
			FillQuantity:           fill.Quantity,
			OrderStatus:            string(order.Status),
			OrderFilledQuantity:    order.FilledQuantity,
			OrderRemainingQuantity: order.RemainingQuantity,
		},
	}

	for _, wh := range subscribers {
		go s.deliver(wh, "fill.executed", payload)
	}
}

// DispatchOrderCancelled dispatches an order.cancelled webhook
// notification to every subscriber. Fire-and-forget.
func (s *WebhookService) DispatchOrderCancelled(order *domain.Order) {
	subscribers := s.store.ListByEvent("order.cancelled")
	if len(subscribers) == 0 {
		return
	}

	payload := orderCancelledPayload{
		Event:     "order.cancelled",
		Timestamp: time.Now().UTC().Truncate(time.Second).Format(time.RFC3339),
		Data: orderCancelledData{
			OrderID:           order.OrderID,
			Account:           order.Account,
			Symbol:            order.Symbol,
			Side:              string(order.Side),
			Type:              string(order.Type),
			Price:             domain.CentsToDollars(order.Price),
			Quantity:          order.Quantity,
			FilledQuantity:    order.FilledQuantity,
			RemainingQuantity: order.RemainingQuantity,
			Status:            string(order.Status),
		},
	}

	for _, wh := range subscribers {
		go s.deliver(wh, "order.cancelled", payload)
	}
}

// deliver sends the webhook payload via HTTP POST with the required
// headers. Errors are silently ignored (fire-and-forget).
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}
