package store

import (
	"sync"

	"github.com/efreitasn/tradecore/internal/domain"
)

type webhookKey struct {
	event string
	url   string
}

// WebhookStore is a thread-safe in-memory store for webhook
// subscriptions, unique per (event, url) pair.
type WebhookStore struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Webhook
	byKey    map[webhookKey]*domain.Webhook
	ordered  []*domain.Webhook // insertion order for stable listings
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		byID:  make(map[string]*domain.Webhook),
		byKey: make(map[webhookKey]*domain.Webhook),
	}
}

// Upsert inserts a webhook, or refreshes UpdatedAt on the existing
// subscription for the same (event, url). Returns true when a new
// subscription was created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := webhookKey{event: w.Event, url: w.URL}
	if existing, ok := s.byKey[key]; ok {
		existing.UpdatedAt = w.UpdatedAt
		return false
	}

	s.byID[w.WebhookID] = w
	s.byKey[key] = w
	s.ordered = append(s.ordered, w)
	return true
}

// GetByKey returns the webhook for an (event, url) pair, or nil.
func (s *WebhookStore) GetByKey(event, url string) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.byKey[webhookKey{event: event, url: url}]
}

// ListByEvent returns all webhooks subscribed to an event, in
// registration order.
func (s *WebhookStore) ListByEvent(event string) []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Webhook
	for _, w := range s.ordered {
		if w.Event == event {
			out = append(out, w)
		}
	}
	return out
}

// List returns all webhooks in registration order.
func (s *WebhookStore) List() []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Webhook, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Delete removes a webhook by ID. It returns domain.ErrWebhookNotFound
// if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.byID[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.byID, id)
	delete(s.byKey, webhookKey{event: w.Event, url: w.URL})
	for i, o := range s.ordered {
		if o.WebhookID == id {
			s.ordered = append(s.ordered[:i], s.ordered[i+1:]...)
			break
		}
	}
	return nil
}
