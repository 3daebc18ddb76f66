package engine

import "github.com/shopspring/decimal"

// =============================================================================
// UNITS - Leave quantity (1.0 = full day, 0.5 = half day)
// =============================================================================

// Units is a quantity of leave. There is a single currency in this system:
// a full day is 1.0 and a half day is 0.5. Decimal arithmetic keeps
// 0.5 + 0.5 + 0.5 exact where float64 would drift.
type Units struct {
	Value decimal.Decimal
}

func NewUnits(value float64) Units      { return Units{Value: decimal.NewFromFloat(value)} }
func UnitsFromInt(value int) Units      { return Units{Value: decimal.NewFromInt(int64(value))} }
func ZeroUnits() Units                  { return Units{Value: decimal.Zero} }
func FullDay() Units                    { return UnitsFromInt(1) }
func HalfDay() Units                    { return NewUnits(0.5) }

func (u Units) Add(b Units) Units          { return Units{Value: u.Value.Add(b.Value)} }
func (u Units) Sub(b Units) Units          { return Units{Value: u.Value.Sub(b.Value)} }
func (u Units) IsZero() bool               { return u.Value.IsZero() }
func (u Units) IsPositive() bool           { return u.Value.IsPositive() }
func (u Units) IsNegative() bool           { return u.Value.IsNegative() }
func (u Units) GreaterThan(b Units) bool   { return u.Value.GreaterThan(b.Value) }
func (u Units) LessThan(b Units) bool      { return u.Value.LessThan(b.Value) }
func (u Units) LessThanOrEqual(b Units) bool { return u.Value.LessThanOrEqual(b.Value) }
func (u Units) Equal(b Units) bool         { return u.Value.Equal(b.Value) }

// FloorZero clamps negative amounts to zero. Pending reservations can push
// an arithmetic balance below zero; the displayed balance never goes there.
func (u Units) FloorZero() Units {
	if u.IsNegative() {
		return ZeroUnits()
	}
	return u
}

// Float64 returns the value for display serialization only. Domain logic
// stays in decimal.
func (u Units) Float64() float64 {
	f, _ := u.Value.Float64()
	return f
}

func (u Units) String() string { return u.Value.String() }
