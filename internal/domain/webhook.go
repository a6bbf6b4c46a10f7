package domain

import "time"

// Webhook represents a subscription to an engine event notification,
// delivered as an HTTP POST to the registered URL.
type Webhook struct {
	WebhookID string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
