package retention

import (
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Bracket is a single tier of the progressive withholding scale.
// Bounds are half-open [Lower, Upper); the last bracket of a scale
// leaves Upper nil and matches everything from Lower up.
type Bracket struct {
	Lower decimal.Decimal
	Upper *decimal.Decimal
	Fixed decimal.Decimal
	Rate  decimal.Decimal
}

// Contains reports whether the taxable base falls inside this bracket
func (b Bracket) Contains(taxable decimal.Decimal) bool {
	if taxable.LessThan(b.Lower) {
		return false
	}
	if b.Upper == nil {
		return true
	}
	return taxable.LessThan(*b.Upper)
}

// Scale is the ordered, immutable progressive bracket table.
// Brackets must be contiguous, non-overlapping and sorted ascending
// by lower bound; Validate enforces this at load time.
type Scale []Bracket

// Validate checks the structural invariants of the scale
func (s Scale) Validate() error {
	if len(s) == 0 {
		return shared.NewDomainError("INVALID_SCALE", "Retention scale must have at least one bracket")
	}
	if !s[0].Lower.IsZero() {
		return shared.NewDomainError("INVALID_SCALE", "First bracket must start at zero")
	}
	for i, b := range s {
		last := i == len(s)-1
		if b.Upper == nil && !last {
			return shared.NewDomainError("INVALID_SCALE", "Only the last bracket may be unbounded")
		}
		if b.Upper != nil && !b.Upper.GreaterThan(b.Lower) {
			return shared.NewDomainError("INVALID_SCALE", "Bracket upper bound must exceed its lower bound")
		}
		if b.Rate.IsNegative() || b.Fixed.IsNegative() {
			return shared.NewDomainError("INVALID_SCALE", "Bracket amounts cannot be negative")
		}
		if b.Upper == nil && last {
			continue
		}
		if last {
			return shared.NewDomainError("INVALID_SCALE", "Last bracket must be unbounded")
		}
		if !s[i+1].Lower.Equal(*b.Upper) {
			return shared.NewDomainError("INVALID_SCALE", "Brackets must be contiguous")
		}
	}
	return nil
}

// bracketFor finds the bracket containing the taxable base.
// A base exactly on a boundary belongs to the bracket whose lower
// bound equals it (inclusive-lower, exclusive-upper).
func (s Scale) bracketFor(taxable decimal.Decimal) (Bracket, bool) {
	for _, b := range s {
		if b.Contains(taxable) {
			return b, true
		}
	}
	return Bracket{}, false
}
