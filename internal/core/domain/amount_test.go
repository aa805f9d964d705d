package domain

import (
	"errors"
	"math"
	"testing"
)

func TestNewPrecision(t *testing.T) {
	for _, places := range []int{0, 4, 8, MaxDecimalPlaces} {
		if _, err := NewPrecision(places); err != nil {
			t.Errorf("NewPrecision(%d) failed: %v", places, err)
		}
	}
	for _, places := range []int{-1, MaxDecimalPlaces + 1, 64} {
		if _, err := NewPrecision(places); !errors.Is(err, ErrInvalidPrecision) {
			t.Errorf("NewPrecision(%d) err = %v, want ErrInvalidPrecision", places, err)
		}
	}
}

func TestPrecision_ToAtomic(t *testing.T) {
	p := MustPrecision(4)

	tests := []struct {
		display float64
		want    uint64
	}{
		{0, 0},
		{1, 10000},
		{0.3452, 3452},
		{345.2, 3452000},
		{0.00009, 0}, // truncated toward zero
	}

	for _, tt := range tests {
		got, err := p.ToAtomic(tt.display)
		if err != nil {
			t.Fatalf("ToAtomic(%v) failed: %v", tt.display, err)
		}
		if got != tt.want {
			t.Errorf("ToAtomic(%v) = %d, want %d", tt.display, got, tt.want)
		}
	}
}

func TestPrecision_ToAtomic_Rejects(t *testing.T) {
	p := MustPrecision(18)

	for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
		if _, err := p.ToAtomic(v); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("ToAtomic(%v) err = %v, want ErrInvalidArgument", v, err)
		}
	}
	if _, err := p.ToAtomic(1e9); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("ToAtomic(1e9) at 18 places err = %v, want ErrBalanceOverflow", err)
	}
}

func TestPrecision_RoundTrip(t *testing.T) {
	p := MustPrecision(6)

	for _, x := range []float64{0, 1.5, 12.345678, 1000000.000001} {
		atomic, err := p.ToAtomic(x)
		if err != nil {
			t.Fatalf("ToAtomic(%v) failed: %v", x, err)
		}
		back := p.ToDecimal(atomic)
		if math.Abs(back-x) > 1e-6 {
			t.Errorf("ToDecimal(ToAtomic(%v)) = %v", x, back)
		}
	}
}

func TestPrecision_ZeroValue(t *testing.T) {
	var p Precision
	if got := p.ToDecimal(42); got != 42 {
		t.Errorf("zero Precision ToDecimal(42) = %v, want 42", got)
	}
}

func TestPrecision_ParseAndFormat(t *testing.T) {
	p := MustPrecision(4)

	tests := []struct {
		in     string
		atomic uint64
		format string
	}{
		{"0", 0, "0.0000"},
		{"12.5", 125000, "12.5000"},
		{"0.34529", 3452, "0.3452"},
		{"1000", 10000000, "1000.0000"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := p.ParseAtomic(tt.in)
			if err != nil {
				t.Fatalf("ParseAtomic(%q) failed: %v", tt.in, err)
			}
			if got != tt.atomic {
				t.Errorf("ParseAtomic(%q) = %d, want %d", tt.in, got, tt.atomic)
			}
			if s := p.FormatDecimal(got); s != tt.format {
				t.Errorf("FormatDecimal(%d) = %q, want %q", got, s, tt.format)
			}
		})
	}

	if _, err := p.ParseAtomic("-1"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseAtomic(-1) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := p.ParseAtomic("abc"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("ParseAtomic(abc) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := p.ParseAtomic("99999999999999999999"); !errors.Is(err, ErrBalanceOverflow) {
		t.Errorf("ParseAtomic(huge) err = %v, want ErrBalanceOverflow", err)
	}
}

func TestAccount_BalanceUI(t *testing.T) {
	acc := NewAccount("pk1")
	acc.Balance = 3452
	if got := acc.BalanceUI(MustPrecision(4)); got != 0.3452 {
		t.Errorf("BalanceUI = %v, want 0.3452", got)
	}
}
