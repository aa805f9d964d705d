package domain

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

// MaxDecimalPlaces bounds the precision so that 10^places fits in a uint64.
const MaxDecimalPlaces = 18

// Precision converts between atomic units and display amounts.
type Precision struct {
	places uint8
	scale  uint64
}

// NewPrecision creates a Precision for the given number of decimal places.
func NewPrecision(places int) (Precision, error) {
	if places < 0 || places > MaxDecimalPlaces {
		return Precision{}, ErrInvalidPrecision.WithDetailsf("decimal places %d outside [0, %d]", places, MaxDecimalPlaces)
	}
	scale := uint64(1)
	for i := 0; i < places; i++ {
		scale *= 10
	}
	return Precision{places: uint8(places), scale: scale}, nil
}

// MustPrecision is NewPrecision that panics on error. For constants and tests.
func MustPrecision(places int) Precision {
	p, err := NewPrecision(places)
	if err != nil {
		panic(err)
	}
	return p
}

// Places returns the configured number of decimal places.
func (p Precision) Places() int {
	return int(p.places)
}

// ToAtomic multiplies by 10^places and truncates toward zero.
func (p Precision) ToAtomic(display float64) (uint64, error) {
	if math.IsNaN(display) || math.IsInf(display, 0) || display < 0 {
		return 0, ErrInvalidArgument.WithDetailsf("amount %v is not a non-negative number", display)
	}
	v := math.Trunc(display * float64(p.scaleOrOne()))
	// float64(math.MaxUint64) rounds up to 2^64.
	if v >= math.Exp2(64) {
		return 0, ErrBalanceOverflow.WithDetailsf("amount %v exceeds atomic range", display)
	}
	return uint64(v), nil
}

// ToDecimal divides by 10^places.
func (p Precision) ToDecimal(atomic uint64) float64 {
	return float64(atomic) / float64(p.scaleOrOne())
}

// ParseAtomic parses a decimal string exactly, truncating digits beyond the
// configured precision.
func (p Precision) ParseAtomic(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidArgument.WithDetailsf("amount %q", s).WithCause(err)
	}
	if d.IsNegative() {
		return 0, ErrInvalidArgument.WithDetailsf("amount %q is negative", s)
	}
	atomic := d.Shift(int32(p.places)).Truncate(0)
	if atomic.GreaterThan(decimalFromUint64(math.MaxUint64)) {
		return 0, ErrBalanceOverflow.WithDetailsf("amount %q exceeds atomic range", s)
	}
	return atomic.BigInt().Uint64(), nil
}

// FormatDecimal renders atomic units as an exact decimal string.
func (p Precision) FormatDecimal(atomic uint64) string {
	return decimalFromUint64(atomic).Shift(-int32(p.places)).StringFixed(int32(p.places))
}

// scaleOrOne treats the zero Precision as zero decimal places.
func (p Precision) scaleOrOne() uint64 {
	if p.scale == 0 {
		return 1
	}
	return p.scale
}

func decimalFromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}
