package domain

import (
	"errors"
	"testing"
)

var testInstrument = Instrument{
	Symbol:   "ACME",
	TickSize: 5,
	LotSize:  10,
	MinPrice: 100,
	MaxPrice: 100_000,
}

func TestInstrument_ValidatePrice(t *testing.T) {
	tests := []struct {
		name  string
		price int64
		want  error
	}{
		{"valid", 10000, nil},
		{"at min", 100, nil},
		{"at max", 100_000, nil},
		{"below min", 95, ErrPriceOutOfBounds},
		{"above max", 100_005, ErrPriceOutOfBounds},
		{"off tick", 10002, ErrInvalidIncrement},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := testInstrument.ValidatePrice(tt.price); !errors.Is(err, tt.want) {
				t.Errorf("ValidatePrice(%d) = %v, want %v", tt.price, err, tt.want)
			}
		})
	}
}

func TestInstrument_ValidateQuantity(t *testing.T) {
	if err := testInstrument.ValidateQuantity(20); err != nil {
		t.Errorf("ValidateQuantity(20) = %v, want nil", err)
	}
	if err := testInstrument.ValidateQuantity(15); !errors.Is(err, ErrInvalidIncrement) {
		t.Errorf("ValidateQuantity(15) = %v, want ErrInvalidIncrement", err)
	}
	if err := testInstrument.ValidateQuantity(0); !errors.Is(err, ErrInvalidIncrement) {
		t.Errorf("ValidateQuantity(0) = %v, want ErrInvalidIncrement", err)
	}
	if err := testInstrument.ValidateQuantity(-10); !errors.Is(err, ErrInvalidIncrement) {
		t.Errorf("ValidateQuantity(-10) = %v, want ErrInvalidIncrement", err)
	}
}

func TestInstrumentRegistry(t *testing.T) {
	r := NewInstrumentRegistry()

	if err := r.Register(testInstrument); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(testInstrument); !errors.Is(err, ErrDuplicateSymbol) {
		t.Errorf("expected ErrDuplicateSymbol, got %v", err)
	}

	got, err := r.Lookup("ACME")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.TickSize != 5 {
		t.Errorf("expected tick size 5, got %d", got.TickSize)
	}

	if _, err := r.Lookup("NOPE"); !errors.Is(err, ErrUnknownSymbol) {
		t.Errorf("expected ErrUnknownSymbol, got %v", err)
	}
	if !r.Exists("ACME") || r.Exists("NOPE") {
		t.Error("Exists mismatch")
	}

	_ = r.Register(Instrument{Symbol: "AAPL", TickSize: 1, LotSize: 1, MinPrice: 1, MaxPrice: 1})
	list := r.List()
	if len(list) != 2 || list[0].Symbol != "AAPL" || list[1].Symbol != "ACME" {
		t.Errorf("expected sorted [AAPL ACME], got %+v", list)
	}
}
