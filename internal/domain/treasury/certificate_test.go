package treasury

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCertificateNumber(t *testing.T) {
	date := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)

	t.Run("formats daily sequence", func(t *testing.T) {
		assert.Equal(t, "CR-20260312-0001", CertificateNumber(date, 1))
		assert.Equal(t, "CR-20260312-0042", CertificateNumber(date, 42))
	})

	t.Run("prefix matches all numbers of the day", func(t *testing.T) {
		assert.Equal(t, "CR-20260312-", CertificateNumberPrefix(date))
	})
}

func TestNewCertificate(t *testing.T) {
	t.Run("copies figures from the payment", func(t *testing.T) {
		p := newValidPayment(t)
		c, err := NewCertificate("CR-20260312-0001", p)
		require.NoError(t, err)
		assert.Equal(t, p.ID, c.PaymentID)
		assert.True(t, c.RetentionAmount.Equal(p.RetentionAmount))
		assert.Equal(t, p.SupplierTaxID, c.SupplierTaxID)
		assert.Equal(t, p.InvoiceNumber, c.InvoiceNumber)
	})

	t.Run("refuses payments without retention", func(t *testing.T) {
		p := newValidPayment(t)
		p.RetentionAmount = decimal.Zero
		_, err := NewCertificate("CR-20260312-0001", p)
		assert.Error(t, err)
	})

	t.Run("requires a number", func(t *testing.T) {
		p := newValidPayment(t)
		_, err := NewCertificate("", p)
		assert.Error(t, err)
	})
}

func TestCertificateRefreshFromPayment(t *testing.T) {
	t.Run("syncs figures but keeps the number", func(t *testing.T) {
		p := newValidPayment(t)
		c, err := NewCertificate("CR-20260312-0001", p)
		require.NoError(t, err)

		figures := RetentionFigures{
			NetAmount:       decimal.NewFromFloat(49586.78),
			VATAmount:       decimal.NewFromFloat(10413.22),
			RetentionAmount: decimal.NewFromFloat(2503.01),
		}
		require.NoError(t, p.Amend(decimal.NewFromInt(60000), nil, figures))
		require.NoError(t, c.RefreshFromPayment(p))

		assert.Equal(t, "CR-20260312-0001", c.Number)
		assert.Equal(t, "2503.01", c.RetentionAmount.StringFixed(2))
	})

	t.Run("rejects a different payment", func(t *testing.T) {
		p := newValidPayment(t)
		c, err := NewCertificate("CR-20260312-0001", p)
		require.NoError(t, err)

		other := newValidPayment(t)
		assert.Error(t, c.RefreshFromPayment(other))
	})
}
