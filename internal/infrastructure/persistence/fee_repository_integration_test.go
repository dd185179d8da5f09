//go:build integration

package persistence

import (
	"context"
	"database/sql"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/golang-migrate/migrate/v4"
	mpg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newPostgresDB starts a disposable PostgreSQL container and applies migrations/
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("fees_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	runMigrations(t, sqlDB)
	return db
}

func runMigrations(t *testing.T, sqlDB *sql.DB) {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	dir := filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")

	driver, err := mpg.WithInstance(sqlDB, &mpg.Config{})
	require.NoError(t, err)
	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	require.NoError(t, err)
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err)
	}
}

func TestPostgres_StudentFeeLedger(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	db := newPostgresDB(t)
	ctx := context.Background()

	structure := seedStructure(t, db, fee.FeeTypeTuition, "1000.00", 3, 4)
	fees := NewGormStudentFeeRepository(db)
	payments := NewGormFeePaymentRepository(db)

	key := fee.StudentFeeKey{StudentYearID: 11, FeeStructureID: structure.ID, SchoolYearID: 7}
	sf, err := fee.NewStudentFee(key, structure, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), "REC-20250110-00001-AAAA")
	require.NoError(t, err)
	require.NoError(t, fees.Create(ctx, sf))

	t.Run("installment key treats null month as one slot", func(t *testing.T) {
		dup, err := fee.NewStudentFee(key, structure, time.Now(), "REC-20250110-00002-BBBB")
		require.NoError(t, err)
		err = fees.Create(ctx, dup)
		assert.ErrorIs(t, err, shared.ErrConflict)
	})

	t.Run("year level membership survives jsonb", func(t *testing.T) {
		level := int64(4)
		list, err := NewGormFeeStructureRepository(db).FindAll(ctx, fee.FeeStructureFilter{YearLevelID: &level})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, []int64{3, 4}, list[0].YearLevelIDs)
	})

	t.Run("journal drives paid amount with version check", func(t *testing.T) {
		p, err := fee.NewFeePayment(sf.ID, d("600.00"), fee.PaymentMethodCash, fee.PaymentStatusSuccess)
		require.NoError(t, err)
		require.NoError(t, payments.Create(ctx, p))

		total, err := payments.SumSuccessful(ctx, sf.ID)
		require.NoError(t, err)
		sf.SetPaidFromJournal(total)
		require.NoError(t, fees.SaveWithLock(ctx, sf))

		stored, err := fees.FindByKey(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "600.00", stored.PaidAmount.StringFixed(2))
		assert.Equal(t, "400.00", stored.DueAmount.StringFixed(2))
		assert.Equal(t, fee.FeeStatusPartial, stored.Status)
		assert.Equal(t, 2, stored.Version)

		stale := *stored
		stale.Version = 1
		assert.ErrorIs(t, fees.SaveWithLock(ctx, &stale), shared.ErrConcurrencyConflict)
	})

	t.Run("cheque numbers are unique", func(t *testing.T) {
		first, err := fee.NewFeePayment(sf.ID, d("10.00"), fee.PaymentMethodCheque, fee.PaymentStatusSuccess)
		require.NoError(t, err)
		first.WithCheque("CHQ-" + uuid.NewString()[:8])
		require.NoError(t, payments.Create(ctx, first))

		second, err := fee.NewFeePayment(sf.ID, d("10.00"), fee.PaymentMethodCheque, fee.PaymentStatusSuccess)
		require.NoError(t, err)
		second.WithCheque(*first.ChequeNumber)
		assert.ErrorIs(t, payments.Create(ctx, second), shared.ErrConflict)
	})
}
