package domain

import "testing"

func TestDollarsToCents(t *testing.T) {
	tests := []struct {
		name    string
		in      float64
		want    int64
		wantErr bool
	}{
		{"whole dollars", 150, 15000, false},
		{"two decimals", 99.95, 9995, false},
		{"one decimal", 0.1, 10, false},
		{"float artifact", 1.10, 110, false},
		{"three decimals", 1.005, 0, true},
		{"tiny fraction", 0.001, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DollarsToCents(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DollarsToCents(%v) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("DollarsToCents(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestCentsToDollars(t *testing.T) {
	if got := CentsToDollars(9995); got != 99.95 {
		t.Errorf("CentsToDollars(9995) = %v, want 99.95", got)
	}
	if got := CentsToDollars(0); got != 0 {
		t.Errorf("CentsToDollars(0) = %v, want 0", got)
	}
}
