package retention

import (
	"sort"

	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CategoryRule is the withholding rule for one AFIP category code.
// A nil RegisteredRate on a flat category means no withholding is
// defined for registered taxpayers; on a scale category the rate
// fields are ignored and the progressive scale governs instead.
type CategoryRule struct {
	Code             string
	Description      string
	RegisteredRate   *decimal.Decimal
	UnregisteredRate decimal.Decimal
	ExemptThreshold  decimal.Decimal
	UsesScale        bool
}

// Validate checks the rule's internal consistency
func (r CategoryRule) Validate() error {
	if r.Code == "" {
		return shared.NewDomainError("INVALID_CATEGORY", "Category code cannot be empty")
	}
	if r.ExemptThreshold.IsNegative() {
		return shared.NewDomainError("INVALID_CATEGORY", "Exempt threshold cannot be negative")
	}
	if r.UnregisteredRate.IsNegative() {
		return shared.NewDomainError("INVALID_CATEGORY", "Unregistered rate cannot be negative")
	}
	if r.RegisteredRate != nil && r.RegisteredRate.IsNegative() {
		return shared.NewDomainError("INVALID_CATEGORY", "Registered rate cannot be negative")
	}
	return nil
}

// Table is the full static rate configuration: the progressive scale
// plus the per-category rules. Loaded once at startup and treated as
// immutable for the lifetime of the process.
type Table struct {
	Scale      Scale
	Categories map[string]CategoryRule
}

// Validate checks the whole table
func (t Table) Validate() error {
	if err := t.Scale.Validate(); err != nil {
		return err
	}
	if len(t.Categories) == 0 {
		return shared.NewDomainError("INVALID_CATEGORY", "At least one withholding category is required")
	}
	for code, rule := range t.Categories {
		if rule.Code != code {
			return shared.NewDomainError("INVALID_CATEGORY", "Category rule code must match its table key")
		}
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Rule returns the rule for a category code
func (t Table) Rule(code string) (CategoryRule, bool) {
	rule, ok := t.Categories[code]
	return rule, ok
}

// Rules returns all category rules sorted by code, for display
func (t Table) Rules() []CategoryRule {
	rules := make([]CategoryRule, 0, len(t.Categories))
	for _, rule := range t.Categories {
		rules = append(rules, rule)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].Code < rules[j].Code })
	return rules
}
