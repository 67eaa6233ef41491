package treasury

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/retention"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/pymeadmin/backend/internal/domain/treasury"
	"github.com/pymeadmin/backend/internal/infrastructure/lock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uuid.UUID]*treasury.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: make(map[uuid.UUID]*treasury.Payment)}
}

func (r *fakePaymentRepo) Save(_ context.Context, payment *treasury.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *payment
	r.payments[payment.ID] = &copied
	return nil
}

func (r *fakePaymentRepo) Update(_ context.Context, payment *treasury.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[payment.ID]; !ok {
		return shared.ErrNotFound
	}
	copied := *payment
	r.payments[payment.ID] = &copied
	return nil
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*treasury.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakePaymentRepo) FindAll(_ context.Context, filter treasury.PaymentFilter) ([]treasury.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []treasury.Payment
	for _, p := range r.payments {
		if p.IsReversed() && !filter.IncludeReversed {
			continue
		}
		if filter.SupplierTaxID != "" && p.SupplierTaxID != filter.SupplierTaxID {
			continue
		}
		if filter.CategoryCode != "" && p.CategoryCode != filter.CategoryCode {
			continue
		}
		if filter.FromDate != nil && p.IssueDate.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && p.IssueDate.After(*filter.ToDate) {
			continue
		}
		if filter.Search != "" && !strings.Contains(p.SupplierName, filter.Search) &&
			!strings.Contains(p.InvoiceNumber, filter.Search) {
			continue
		}
		out = append(out, *p)
	}
	return out, int64(len(out)), nil
}

func (r *fakePaymentRepo) SoftDelete(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return shared.ErrNotFound
	}
	if !p.IsReversed() {
		if err := p.Reverse(reason); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakePaymentRepo) EntriesForMonth(_ context.Context, supplierTaxID, categoryCode string, registered bool, month time.Time, excludeID *uuid.UUID) ([]retention.LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []retention.LedgerEntry
	for _, p := range r.payments {
		if p.IsReversed() {
			continue
		}
		if excludeID != nil && p.ID == *excludeID {
			continue
		}
		if p.SupplierTaxID != supplierTaxID || p.CategoryCode != categoryCode || p.Registered != registered {
			continue
		}
		if p.IssueDate.Year() != month.Year() || p.IssueDate.Month() != month.Month() {
			continue
		}
		entries = append(entries, retention.LedgerEntry{
			PaymentID:       p.ID,
			NetAmount:       p.NetAmount,
			RetentionAmount: p.RetentionAmount,
		})
	}
	return entries, nil
}

func (r *fakePaymentRepo) snapshot() map[uuid.UUID]*treasury.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := make(map[uuid.UUID]*treasury.Payment, len(r.payments))
	for id, p := range r.payments {
		copied := *p
		snap[id] = &copied
	}
	return snap
}

func (r *fakePaymentRepo) restore(snap map[uuid.UUID]*treasury.Payment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payments = snap
}

type fakeCertificateRepo struct {
	mu           sync.Mutex
	certificates map[uuid.UUID]*treasury.Certificate
	retired      map[uuid.UUID]bool
	sequences    map[string]int
	saveErr      error
	updateErr    error
}

func newFakeCertificateRepo() *fakeCertificateRepo {
	return &fakeCertificateRepo{
		certificates: make(map[uuid.UUID]*treasury.Certificate),
		retired:      make(map[uuid.UUID]bool),
		sequences:    make(map[string]int),
	}
}

func (r *fakeCertificateRepo) Save(_ context.Context, c *treasury.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	copied := *c
	r.certificates[c.PaymentID] = &copied
	delete(r.retired, c.PaymentID)
	return nil
}

func (r *fakeCertificateRepo) Update(_ context.Context, c *treasury.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.certificates[c.PaymentID]; !ok {
		return shared.ErrNotFound
	}
	copied := *c
	r.certificates[c.PaymentID] = &copied
	return nil
}

func (r *fakeCertificateRepo) FindByPaymentID(_ context.Context, paymentID uuid.UUID) (*treasury.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certificates[paymentID]
	if !ok || r.retired[paymentID] {
		return nil, shared.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r *fakeCertificateRepo) NextSequence(_ context.Context, issueDate time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prefix := treasury.CertificateNumberPrefix(issueDate)
	r.sequences[prefix]++
	return r.sequences[prefix], nil
}

func (r *fakeCertificateRepo) SoftDeleteByPaymentID(_ context.Context, paymentID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.certificates[paymentID]; ok {
		r.retired[paymentID] = true
	}
	return nil
}

type certificateSnapshot struct {
	certificates map[uuid.UUID]*treasury.Certificate
	retired      map[uuid.UUID]bool
	sequences    map[string]int
}

func (r *fakeCertificateRepo) snapshot() certificateSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := certificateSnapshot{
		certificates: make(map[uuid.UUID]*treasury.Certificate, len(r.certificates)),
		retired:      make(map[uuid.UUID]bool, len(r.retired)),
		sequences:    make(map[string]int, len(r.sequences)),
	}
	for id, c := range r.certificates {
		copied := *c
		snap.certificates[id] = &copied
	}
	for id, v := range r.retired {
		snap.retired[id] = v
	}
	for prefix, seq := range r.sequences {
		snap.sequences[prefix] = seq
	}
	return snap
}

func (r *fakeCertificateRepo) restore(snap certificateSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certificates = snap.certificates
	r.retired = snap.retired
	r.sequences = snap.sequences
}

// fakeTxManager mimics transactional semantics over the in-memory
// fakes: a failing callback restores both repositories to their state
// before the transaction.
type fakeTxManager struct {
	payments     *fakePaymentRepo
	certificates *fakeCertificateRepo
}

func (m *fakeTxManager) InTransaction(_ context.Context, fn func(tx treasury.Tx) error) error {
	paymentsSnap := m.payments.snapshot()
	certificatesSnap := m.certificates.snapshot()
	if err := fn(treasury.Tx{Payments: m.payments, Certificates: m.certificates}); err != nil {
		m.payments.restore(paymentsSnap)
		m.certificates.restore(certificatesSnap)
		return err
	}
	return nil
}

func newTestService(t *testing.T) (*PaymentService, *fakePaymentRepo, *fakeCertificateRepo) {
	t.Helper()
	engine, err := retention.NewEngine(retention.DefaultTable())
	require.NoError(t, err)
	payments := newFakePaymentRepo()
	certificates := newFakeCertificateRepo()
	tx := &fakeTxManager{payments: payments, certificates: certificates}
	svc := NewPaymentService(payments, tx, engine, lock.NewInMemoryMonthlyLock(), zap.NewNop())
	return svc, payments, certificates
}

func createRequest(total int64) CreatePaymentRequest {
	return CreatePaymentRequest{
		InvoiceNumber: fmt.Sprintf("A-0001-%08d", total),
		CategoryCode:  "21",
		SupplierName:  "Ferretería San Martín SRL",
		SupplierTaxID: "30-71234567-9",
		Registered:    true,
		IssueDate:     time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC),
		TotalAmount:   decimal.NewFromInt(total),
	}
}

func TestCreatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("computes figures and issues a certificate", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		result, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)

		assert.Equal(t, "41322.31", result.Payment.NetAmount.StringFixed(2))
		assert.Equal(t, "8677.69", result.Payment.VATAmount.StringFixed(2))
		assert.Equal(t, "2007.14", result.Payment.RetentionAmount.StringFixed(2))
		assert.Equal(t, "47992.86", result.Payment.AmountPayable.StringFixed(2))

		require.NotNil(t, result.Certificate)
		assert.Equal(t, "CR-20260312-0001", result.Certificate.Number)
		assert.Equal(t, result.Payment.ID, result.Certificate.PaymentID)
	})

	t.Run("second invoice in the month is withheld incrementally", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		first, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		assert.Equal(t, "2007.14", first.Payment.RetentionAmount.StringFixed(2))

		second, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)

		// Cumulative net 82644.62 -> 4486.48 total, minus 2007.14 already withheld
		assert.Equal(t, "2479.34", second.Payment.RetentionAmount.StringFixed(2))
		assert.Equal(t, "2007.14", second.AlreadyRetained.StringFixed(2))
		assert.Equal(t, "82644.62", second.TotalNet.StringFixed(2))
		assert.Equal(t, "CR-20260312-0002", second.Certificate.Number)
	})

	t.Run("below-threshold invoice gets no certificate", func(t *testing.T) {
		svc, _, certificates := newTestService(t)

		result, err := svc.CreatePayment(ctx, createRequest(5000))
		require.NoError(t, err)

		assert.True(t, result.Payment.RetentionAmount.IsZero())
		assert.Nil(t, result.Certificate)
		assert.Empty(t, certificates.certificates)
	})

	t.Run("unknown category is rejected", func(t *testing.T) {
		svc, payments, _ := newTestService(t)

		req := createRequest(50000)
		req.CategoryCode = "999"
		_, err := svc.CreatePayment(ctx, req)
		assert.ErrorIs(t, err, shared.ErrUnknownCategory)
		assert.Empty(t, payments.payments)
	})

	t.Run("failed certificate issuance leaves no payment behind", func(t *testing.T) {
		svc, payments, certificates := newTestService(t)

		certificates.saveErr = fmt.Errorf("duplicate key value violates unique constraint")
		_, err := svc.CreatePayment(ctx, createRequest(50000))
		require.Error(t, err)

		// The rolled-back payment must not feed later aggregations
		assert.Empty(t, payments.payments)
		entries, err := payments.EntriesForMonth(ctx, "30-71234567-9", "21", true,
			time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC), nil)
		require.NoError(t, err)
		assert.Empty(t, entries)

		// A retry starts the month clean, with the first sequence number
		certificates.saveErr = nil
		result, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		assert.Equal(t, "2007.14", result.Payment.RetentionAmount.StringFixed(2))
		assert.True(t, result.AlreadyRetained.IsZero())
		assert.Equal(t, "CR-20260312-0001", result.Certificate.Number)
	})

	t.Run("concurrent submissions never under-withhold", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		const n = 5
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.CreatePayment(ctx, createRequest(50000))
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		summary, err := svc.GetMonthlySummary(ctx, "30-71234567-9", "21", true,
			time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)

		// n * 41322.31 net; the sum of increments must equal the
		// withholding of the combined net within the rounding margin.
		combined := summary.TotalNet.Amount().Sub(decimal.NewFromInt(7870)).Mul(decimal.NewFromFloat(0.06)).Round(2)
		diff := summary.TotalRetained.Amount().Sub(combined).Abs()
		assert.True(t, diff.LessThanOrEqual(decimal.NewFromFloat(0.01)),
			"retained %s vs combined %s", summary.TotalRetained, combined)
	})
}

func TestAmendPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("recomputes excluding the payment's own prior figures", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		created, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)

		amended, err := svc.AmendPayment(ctx, AmendPaymentRequest{
			PaymentID:   created.Payment.ID,
			TotalAmount: decimal.NewFromInt(60000),
		})
		require.NoError(t, err)

		assert.Equal(t, "49586.78", amended.Payment.NetAmount.StringFixed(2))
		assert.Equal(t, "2503.01", amended.Payment.RetentionAmount.StringFixed(2))
		assert.Equal(t, 2, amended.Payment.Version)
		assert.True(t, amended.AlreadyRetained.IsZero())
	})

	t.Run("refreshes the certificate but keeps its number", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		created, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		require.Equal(t, "CR-20260312-0001", created.Certificate.Number)

		amended, err := svc.AmendPayment(ctx, AmendPaymentRequest{
			PaymentID:   created.Payment.ID,
			TotalAmount: decimal.NewFromInt(60000),
		})
		require.NoError(t, err)

		require.NotNil(t, amended.Certificate)
		assert.Equal(t, "CR-20260312-0001", amended.Certificate.Number)
		assert.Equal(t, "2503.01", amended.Certificate.RetentionAmount.StringFixed(2))
	})

	t.Run("issues a certificate when retention becomes positive", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		created, err := svc.CreatePayment(ctx, createRequest(5000))
		require.NoError(t, err)
		require.Nil(t, created.Certificate)

		amended, err := svc.AmendPayment(ctx, AmendPaymentRequest{
			PaymentID:   created.Payment.ID,
			TotalAmount: decimal.NewFromInt(50000),
		})
		require.NoError(t, err)

		require.NotNil(t, amended.Certificate)
		assert.Equal(t, "CR-20260312-0001", amended.Certificate.Number)
	})

	t.Run("retires the certificate when retention drops to zero", func(t *testing.T) {
		svc, _, certificates := newTestService(t)

		created, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		require.NotNil(t, created.Certificate)

		amended, err := svc.AmendPayment(ctx, AmendPaymentRequest{
			PaymentID:   created.Payment.ID,
			TotalAmount: decimal.NewFromInt(5000),
		})
		require.NoError(t, err)

		assert.Nil(t, amended.Certificate)
		_, err = certificates.FindByPaymentID(ctx, created.Payment.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("failed certificate refresh leaves the payment untouched", func(t *testing.T) {
		svc, _, certificates := newTestService(t)

		created, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)

		certificates.updateErr = fmt.Errorf("connection reset by peer")
		_, err = svc.AmendPayment(ctx, AmendPaymentRequest{
			PaymentID:   created.Payment.ID,
			TotalAmount: decimal.NewFromInt(60000),
		})
		require.Error(t, err)

		// Both records roll back to their pre-amendment figures
		stored, err := svc.GetPayment(ctx, created.Payment.ID)
		require.NoError(t, err)
		assert.Equal(t, "50000.00", stored.TotalAmount.StringFixed(2))
		assert.Equal(t, "2007.14", stored.RetentionAmount.StringFixed(2))
		assert.Equal(t, 1, stored.Version)

		certificate, err := certificates.FindByPaymentID(ctx, created.Payment.ID)
		require.NoError(t, err)
		assert.Equal(t, "2007.14", certificate.RetentionAmount.StringFixed(2))
	})

	t.Run("unknown payment", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.AmendPayment(ctx, AmendPaymentRequest{
			PaymentID:   uuid.New(),
			TotalAmount: decimal.NewFromInt(1000),
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestReversePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("drops the payment from the monthly aggregation", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		first, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)

		require.NoError(t, svc.ReversePayment(ctx, first.Payment.ID, "invoice voided by supplier"))

		// With the first payment gone, the next invoice starts the month over
		second, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		assert.Equal(t, "2007.14", second.Payment.RetentionAmount.StringFixed(2))
		assert.True(t, second.AlreadyRetained.IsZero())
	})

	t.Run("cascades to the certificate", func(t *testing.T) {
		svc, _, certificates := newTestService(t)

		created, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		require.NotNil(t, created.Certificate)

		require.NoError(t, svc.ReversePayment(ctx, created.Payment.ID, "duplicate entry"))

		_, err = certificates.FindByPaymentID(ctx, created.Payment.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("requires a reason", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		created, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		assert.Error(t, svc.ReversePayment(ctx, created.Payment.ID, ""))
	})

	t.Run("cannot reverse twice", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		created, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)
		require.NoError(t, svc.ReversePayment(ctx, created.Payment.ID, "first"))
		assert.Error(t, svc.ReversePayment(ctx, created.Payment.ID, "second"))
	})
}

func TestPreviewRetention(t *testing.T) {
	ctx := context.Background()

	t.Run("computes without persisting", func(t *testing.T) {
		svc, payments, certificates := newTestService(t)

		preview, err := svc.PreviewRetention(ctx, createRequest(50000))
		require.NoError(t, err)

		assert.Equal(t, "41322.31", preview.Net.StringFixed(2))
		assert.Equal(t, "2007.14", preview.Retention.StringFixed(2))
		assert.Equal(t, "47992.86", preview.AmountPayable.StringFixed(2))
		assert.Empty(t, payments.payments)
		assert.Empty(t, certificates.certificates)
	})

	t.Run("sees prior payments of the month", func(t *testing.T) {
		svc, _, _ := newTestService(t)

		_, err := svc.CreatePayment(ctx, createRequest(50000))
		require.NoError(t, err)

		preview, err := svc.PreviewRetention(ctx, createRequest(50000))
		require.NoError(t, err)
		assert.Equal(t, "2479.34", preview.Retention.StringFixed(2))
		assert.Equal(t, "2007.14", preview.AlreadyRetained.StringFixed(2))
	})
}

func TestGetMonthlySummary(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.CreatePayment(ctx, createRequest(50000))
	require.NoError(t, err)
	_, err = svc.CreatePayment(ctx, createRequest(60000))
	require.NoError(t, err)

	// Different month, must not be counted
	other := createRequest(50000)
	other.IssueDate = time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC)
	_, err = svc.CreatePayment(ctx, other)
	require.NoError(t, err)

	summary, err := svc.GetMonthlySummary(ctx, "30-71234567-9", "21", true,
		time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Len(t, summary.Payments, 2)
	assert.Equal(t, "90909.09", summary.TotalNet.StringFixed(2))

	// Retained plus payable always reconstructs the invoiced totals
	combined, err := summary.TotalRetained.Add(summary.TotalPayable)
	require.NoError(t, err)
	assert.Equal(t, "110000.00", combined.StringFixed(2))
}
