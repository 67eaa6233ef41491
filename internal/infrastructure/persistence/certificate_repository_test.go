package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/pymeadmin/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockCertificateRepository creates a GormCertificateRepository with a mocked SQL connection
func newMockCertificateRepository(t *testing.T) (*GormCertificateRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormCertificateRepository(gormDB), mock, mockDB
}

func TestGormCertificateRepository_NextSequence(t *testing.T) {
	issueDate := time.Date(2026, time.March, 12, 0, 0, 0, 0, time.UTC)

	t.Run("starts at one on an empty day", func(t *testing.T) {
		repo, mock, mockDB := newMockCertificateRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT "number" FROM "retention_certificates" WHERE number LIKE \$1`).
			WithArgs("CR-20260312-%").
			WillReturnRows(sqlmock.NewRows([]string{"number"}))

		seq, err := repo.NextSequence(context.Background(), issueDate)
		require.NoError(t, err)
		assert.Equal(t, 1, seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("continues after the latest number of the day", func(t *testing.T) {
		repo, mock, mockDB := newMockCertificateRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT "number" FROM "retention_certificates" WHERE number LIKE \$1`).
			WithArgs("CR-20260312-%").
			WillReturnRows(sqlmock.NewRows([]string{"number"}).
				AddRow("CR-20260312-0007").
				AddRow("CR-20260312-0042").
				AddRow("CR-20260312-0013"))

		seq, err := repo.NextSequence(context.Background(), issueDate)
		require.NoError(t, err)
		assert.Equal(t, 43, seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("compares sequence suffixes numerically past four digits", func(t *testing.T) {
		repo, mock, mockDB := newMockCertificateRepository(t)
		defer mockDB.Close()

		// "CR-...-9999" sorts after "CR-...-10000" as a string; the
		// numeric comparison must still pick 10000 as the latest.
		mock.ExpectQuery(`SELECT "number" FROM "retention_certificates" WHERE number LIKE \$1`).
			WithArgs("CR-20260312-%").
			WillReturnRows(sqlmock.NewRows([]string{"number"}).
				AddRow("CR-20260312-9999").
				AddRow("CR-20260312-10000"))

		seq, err := repo.NextSequence(context.Background(), issueDate)
		require.NoError(t, err)
		assert.Equal(t, 10001, seq)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects malformed numbers instead of restarting the sequence", func(t *testing.T) {
		repo, mock, mockDB := newMockCertificateRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT "number" FROM "retention_certificates" WHERE number LIKE \$1`).
			WithArgs("CR-20260312-%").
			WillReturnRows(sqlmock.NewRows([]string{"number"}).
				AddRow("CR-20260312-0042").
				AddRow("CR-20260312-00XY"))

		_, err := repo.NextSequence(context.Background(), issueDate)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "malformed certificate number")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("propagates query errors", func(t *testing.T) {
		repo, mock, mockDB := newMockCertificateRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT "number" FROM "retention_certificates"`).
			WillReturnError(sql.ErrConnDone)

		_, err := repo.NextSequence(context.Background(), issueDate)
		assert.Error(t, err)
	})
}

func TestGormCertificateRepository_FindByPaymentID(t *testing.T) {
	t.Run("skips soft-deleted certificates", func(t *testing.T) {
		repo, mock, mockDB := newMockCertificateRepository(t)
		defer mockDB.Close()

		paymentID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "retention_certificates" WHERE payment_id = \$1 AND deleted_at IS NULL ORDER BY .* LIMIT .*`).
			WithArgs(paymentID, 1).
			WillReturnError(gorm.ErrRecordNotFound)

		cert, err := repo.FindByPaymentID(context.Background(), paymentID)
		assert.Nil(t, cert)
		assert.Equal(t, shared.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormCertificateRepository_SoftDeleteByPaymentID(t *testing.T) {
	t.Run("missing certificate is not an error", func(t *testing.T) {
		repo, mock, mockDB := newMockCertificateRepository(t)
		defer mockDB.Close()

		mock.ExpectExec(`UPDATE "retention_certificates" SET .* WHERE payment_id = \$\d+ AND deleted_at IS NULL`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.NoError(t, repo.SoftDeleteByPaymentID(context.Background(), uuid.New()))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
