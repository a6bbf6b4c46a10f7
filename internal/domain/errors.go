package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrDuplicateSymbol       = errors.New("duplicate_symbol")
	ErrUnknownSymbol         = errors.New("unknown_symbol")
	ErrInvalidIncrement      = errors.New("invalid_increment")
	ErrPriceOutOfBounds      = errors.New("price_out_of_bounds")
	ErrOrderNotFound         = errors.New("order_not_found")
	ErrOrderTerminal         = errors.New("order_already_terminal")
	ErrNonMonotonicTimestamp = errors.New("non_monotonic_timestamp")
	ErrUnknownTimeframe      = errors.New("unknown_timeframe")
	ErrWebhookNotFound       = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
