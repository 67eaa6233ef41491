package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// VAT is the fixed value-added tax rate applied to every invoice
var VAT = decimal.NewFromFloat(0.21)

var one = decimal.NewFromInt(1)

// LedgerEntry is the slice of a prior payment the monthly aggregation
// needs: its net amount and the withholding already applied to it.
type LedgerEntry struct {
	PaymentID       uuid.UUID
	NetAmount       decimal.Decimal
	RetentionAmount decimal.Decimal
}

// MonthlyLedger is the read-side port over the payment store. The
// implementation must return only live (non soft-deleted) payments for
// the (supplierTaxID, categoryCode, registered) tuple whose issue date
// falls inside the calendar month of `month`, excluding `excludeID`
// when non-nil. A failed read must surface as an error; it is never
// equivalent to an empty result.
type MonthlyLedger interface {
	EntriesForMonth(ctx context.Context, supplierTaxID, categoryCode string, registered bool, month time.Time, excludeID *uuid.UUID) ([]LedgerEntry, error)
}

// Split is the net/VAT decomposition of an invoice total
type Split struct {
	Net decimal.Decimal
	VAT decimal.Decimal
}

// Result is a single-invoice withholding calculation
type Result struct {
	Retention decimal.Decimal
	// Method is the human-readable label of the branch that applied,
	// for audit display only. It feeds no further computation.
	Method string
}

// MonthlyResult is the outcome of the month-cumulative calculation
type MonthlyResult struct {
	// Retention is the incremental withholding to apply to this invoice
	Retention decimal.Decimal
	// TotalNet is the cumulative month net including this invoice
	TotalNet decimal.Decimal
	// AlreadyRetained is the sum withheld on prior invoices this month
	AlreadyRetained decimal.Decimal
	Method          string
}

// Engine computes income-tax withholdings from an immutable rate
// table. It holds no mutable state and is safe for concurrent use.
type Engine struct {
	table Table
}

// NewEngine creates an Engine after validating the rate table
func NewEngine(table Table) (*Engine, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &Engine{table: table}, nil
}

// Table returns the engine's rate table
func (e *Engine) Table() Table {
	return e.table
}

// round2 rounds to two decimals, ties away from zero
func round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// SplitNetAndVAT decomposes a gross invoice total into net amount and
// VAT at the fixed 21% rate. Both outputs are rounded to two decimals
// and always re-add exactly to the input: VAT is derived as
// total - net rather than rounded independently.
func (e *Engine) SplitNetAndVAT(total decimal.Decimal) (Split, error) {
	if total.IsNegative() {
		return Split{}, shared.ErrInvalidAmount
	}
	net := round2(total.Div(one.Add(VAT)))
	return Split{Net: net, VAT: total.Sub(net)}, nil
}

// ScaleRetention computes the progressive-scale withholding for a net
// amount: zero at or below the exempt threshold, otherwise the bracket
// fixed amount plus the marginal rate over the bracket floor.
func (e *Engine) ScaleRetention(net, exemptThreshold decimal.Decimal) decimal.Decimal {
	if net.LessThanOrEqual(exemptThreshold) {
		return decimal.Zero
	}
	taxable := net.Sub(exemptThreshold)
	bracket, ok := e.table.Scale.bracketFor(taxable)
	if !ok {
		// Unreachable for a validated scale: the last bracket is unbounded.
		return decimal.Zero
	}
	return round2(bracket.Fixed.Add(taxable.Sub(bracket.Lower).Mul(bracket.Rate)))
}

// Retention computes the withholding for a single invoice net amount.
// Scale categories use the progressive scale for both registration
// statuses; flat categories apply the status rate over the amount
// exceeding the exempt threshold. A missing category is an error the
// caller must surface - never a silent zero or a fabricated rate.
func (e *Engine) Retention(categoryCode string, net decimal.Decimal, registered bool) (Result, error) {
	if net.IsNegative() {
		return Result{}, shared.ErrInvalidAmount
	}
	rule, ok := e.table.Rule(categoryCode)
	if !ok {
		return Result{}, shared.ErrUnknownCategory
	}

	if rule.UsesScale {
		amount := e.ScaleRetention(net, rule.ExemptThreshold)
		if amount.IsZero() {
			return Result{Method: fmt.Sprintf("category %s: below exempt threshold %s", rule.Code, rule.ExemptThreshold.StringFixed(2))}, nil
		}
		return Result{
			Retention: amount,
			Method:    fmt.Sprintf("category %s: progressive scale over %s", rule.Code, rule.ExemptThreshold.StringFixed(2)),
		}, nil
	}

	rate := &rule.UnregisteredRate
	status := "unregistered"
	if registered {
		rate = rule.RegisteredRate
		status = "registered"
	}
	if rate == nil {
		return Result{Method: fmt.Sprintf("category %s: no withholding defined for registered taxpayers", rule.Code)}, nil
	}
	if net.LessThanOrEqual(rule.ExemptThreshold) {
		return Result{Method: fmt.Sprintf("category %s: below exempt threshold %s", rule.Code, rule.ExemptThreshold.StringFixed(2))}, nil
	}
	return Result{
		Retention: round2(net.Sub(rule.ExemptThreshold).Mul(*rate)),
		Method:    fmt.Sprintf("category %s: flat %s%% (%s)", rule.Code, rate.Mul(decimal.NewFromInt(100)).StringFixed(2), status),
	}, nil
}

// MonthlyRetention computes the incremental withholding for an invoice
// given everything already withheld from the same supplier and
// category this calendar month. The withholding rules apply to the
// cumulative monthly amount, so the increment is the cumulative
// retention minus what prior invoices already carried, floored at
// zero. Splitting a month's billing across invoices therefore never
// changes the total withheld.
//
// The caller owns consistency of the ledger read: two concurrent
// submissions for the same tuple can both read a view missing the
// other's uncommitted payment and under-withhold. Serialize the
// read-compute-persist sequence per (supplier, category, registered,
// month) key when that matters.
func (e *Engine) MonthlyRetention(ctx context.Context, ledger MonthlyLedger, categoryCode string, net decimal.Decimal, registered bool, supplierTaxID string, issueDate time.Time, excludePaymentID *uuid.UUID) (MonthlyResult, error) {
	if net.IsNegative() {
		return MonthlyResult{}, shared.ErrInvalidAmount
	}
	if _, ok := e.table.Rule(categoryCode); !ok {
		return MonthlyResult{}, shared.ErrUnknownCategory
	}

	entries, err := ledger.EntriesForMonth(ctx, supplierTaxID, categoryCode, registered, issueDate, excludePaymentID)
	if err != nil {
		return MonthlyResult{}, fmt.Errorf("reading monthly payment ledger: %w", err)
	}

	totalNet := net
	alreadyRetained := decimal.Zero
	for _, entry := range entries {
		totalNet = totalNet.Add(entry.NetAmount)
		alreadyRetained = alreadyRetained.Add(entry.RetentionAmount)
	}

	cumulative, err := e.Retention(categoryCode, totalNet, registered)
	if err != nil {
		return MonthlyResult{}, err
	}

	increment := round2(cumulative.Retention.Sub(alreadyRetained))
	if increment.IsNegative() {
		increment = decimal.Zero
	}

	return MonthlyResult{
		Retention:       increment,
		TotalNet:        totalNet,
		AlreadyRetained: alreadyRetained,
		Method:          cumulative.Method,
	}, nil
}
