package domain

import (
	"sort"
	"sync"
)

// Instrument holds the static metadata for a tradable symbol. Prices are
// int64 cents; TickSize is the minimum price increment and LotSize the
// minimum quantity increment. Instruments are immutable after registration.
type Instrument struct {
	Symbol   string
	TickSize int64 // cents
	LotSize  int64
	MinPrice int64 // cents
	MaxPrice int64 // cents
}

// ValidatePrice checks that a price is within the instrument's bounds and
// is an exact multiple of the tick size.
func (i Instrument) ValidatePrice(price int64) error {
	if price < i.MinPrice || price > i.MaxPrice {
		return ErrPriceOutOfBounds
	}
	if price%i.TickSize != 0 {
		return ErrInvalidIncrement
	}
	return nil
}

// ValidateQuantity checks that a quantity is positive and an exact
// multiple of the lot size.
func (i Instrument) ValidateQuantity(qty int64) error {
	if qty <= 0 || qty%i.LotSize != 0 {
		return ErrInvalidIncrement
	}
	return nil
}

// InstrumentRegistry tracks registered instruments in a thread-safe manner.
// Registration happens at startup from the instruments config file;
// re-registration is rejected, not merged.
type InstrumentRegistry struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
}

// NewInstrumentRegistry creates an empty InstrumentRegistry.
func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{
		instruments: make(map[string]Instrument),
	}
}

// Register adds an instrument to the registry. It returns
// ErrDuplicateSymbol if the symbol is already registered.
func (r *InstrumentRegistry) Register(inst Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instruments[inst.Symbol]; exists {
		return ErrDuplicateSymbol
	}
	r.instruments[inst.Symbol] = inst
	return nil
}

// Lookup retrieves an instrument by symbol. It returns ErrUnknownSymbol
// if the symbol has not been registered.
func (r *InstrumentRegistry) Lookup(symbol string) (Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instruments[symbol]
	if !ok {
		return Instrument{}, ErrUnknownSymbol
	}
	return inst, nil
}

// Exists returns true if the symbol has been registered.
func (r *InstrumentRegistry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.instruments[symbol]
	return ok
}

// List returns all registered instruments sorted by symbol.
func (r *InstrumentRegistry) List() []Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(a, b int) bool {
		return out[a].Symbol < out[b].Symbol
	})
	return out
}
