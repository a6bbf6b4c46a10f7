package store

import (
	"sync"

	"github.com/efreitasn/tradecore/internal/domain"
)

// FillStore is an append-only, thread-safe log of fills per symbol, in
// execution order.
type FillStore struct {
	mu    sync.RWMutex
	fills map[string][]*domain.Fill // symbol → fills
}

// NewFillStore creates an empty FillStore.
func NewFillStore() *FillStore {
	return &FillStore{
		fills: make(map[string][]*domain.Fill),
	}
}

// Append adds a fill to the symbol's log.
func (s *FillStore) Append(f *domain.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fills[f.Symbol] = append(s.fills[f.Symbol], f)
}

// BySymbol returns a copy of the fill log for a symbol, oldest first.
func (s *FillStore) BySymbol(symbol string) []*domain.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.fills[symbol]
	out := make([]*domain.Fill, len(src))
	copy(out, src)
	return out
}

// Recent returns up to n of the most recent fills for a symbol, newest
// first.
func (s *FillStore) Recent(symbol string, n int) []*domain.Fill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.fills[symbol]
	if n > len(src) {
		n = len(src)
	}
	out := make([]*domain.Fill, 0, n)
	for i := len(src) - 1; i >= len(src)-n; i-- {
		out = append(out, src[i])
	}
	return out
}
