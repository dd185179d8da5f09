package fee_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	appfee "github.com/erp/schoolfees/internal/application/fee"
	"github.com/erp/schoolfees/internal/domain/fee"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"github.com/erp/schoolfees/internal/infrastructure/cache"
	"github.com/erp/schoolfees/internal/infrastructure/payment"
	"github.com/erp/schoolfees/internal/infrastructure/persistence"
	"github.com/erp/schoolfees/internal/infrastructure/persistence/models"
)

const (
	testKeySecret     = "key_secret"
	testWebhookSecret = "webhook_secret"

	levelGrade5    int64 = 1
	levelGrade6    int64 = 2
	studentYearID  int64 = 11
	otherStudentID int64 = 12
	schoolYearID   int64 = 3
)

// fixedNow is 20 May 2026; April installments are overdue
var fixedNow = time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC)

type fakeRoster struct {
	students    map[int64]*fee.StudentYearLevel
	levels      []fee.YearLevel
	schoolYears map[int64]*fee.SchoolYear
	down        bool
}

func newFakeRoster() *fakeRoster {
	sid := int64(100)
	return &fakeRoster{
		students: map[int64]*fee.StudentYearLevel{
			studentYearID: {
				ID: studentYearID, StudentID: &sid, StudentName: "Asha Rao",
				ScholarNumber: "SCH-100", LevelName: "grade 5", YearName: "2026-27",
			},
			otherStudentID: {
				ID: otherStudentID, StudentName: "Ravi Kumar",
				ScholarNumber: "SCH-200", LevelName: "Grade 6", YearName: "2026-27",
			},
		},
		levels: []fee.YearLevel{
			{ID: levelGrade5, LevelName: "Grade 5", LevelOrder: 5},
			{ID: levelGrade6, LevelName: "Grade 6", LevelOrder: 6},
		},
		schoolYears: map[int64]*fee.SchoolYear{schoolYearID: {ID: schoolYearID, YearName: "2026-27"}},
	}
}

func (r *fakeRoster) unavailable() error {
	return fmt.Errorf("%w: connection refused", fee.ErrRosterUnavailable)
}

func (r *fakeRoster) GetStudentYearLevel(_ context.Context, id int64) (*fee.StudentYearLevel, error) {
	if r.down {
		return nil, r.unavailable()
	}
	if s, ok := r.students[id]; ok {
		return s, nil
	}
	return nil, fee.ErrRosterNotFound
}

func (r *fakeRoster) GetYearLevelByID(_ context.Context, id int64) (*fee.YearLevel, error) {
	if r.down {
		return nil, r.unavailable()
	}
	for i := range r.levels {
		if r.levels[i].ID == id {
			return &r.levels[i], nil
		}
	}
	return nil, fee.ErrRosterNotFound
}

func (r *fakeRoster) ListYearLevels(context.Context) ([]fee.YearLevel, error) {
	if r.down {
		return nil, r.unavailable()
	}
	return r.levels, nil
}

func (r *fakeRoster) GetSchoolYear(_ context.Context, id int64) (*fee.SchoolYear, error) {
	if r.down {
		return nil, r.unavailable()
	}
	if y, ok := r.schoolYears[id]; ok {
		return y, nil
	}
	return nil, fee.ErrRosterNotFound
}

// failingGateway refuses every order
type failingGateway struct{ *payment.SandboxGateway }

func (failingGateway) CreateOrder(context.Context, fee.OrderRequest) (*fee.GatewayOrder, error) {
	return nil, fmt.Errorf("%w: 502 from gateway", fee.ErrGatewayRequestFailed)
}

type fixture struct {
	db        *gorm.DB
	roster    *fakeRoster
	gateway   *payment.SandboxGateway
	idem      *cache.InMemoryIdempotencyStore
	principal *auth.Principal

	catalog   *appfee.CatalogService
	discounts *appfee.DiscountService
	fees      *appfee.StudentFeeService
	payments  *appfee.PaymentService
	reports   *appfee.ReportService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	gateway  fee.PaymentGateway
	settings appfee.Settings
}

func withGateway(g fee.PaymentGateway) fixtureOption {
	return func(c *fixtureConfig) { c.gateway = g }
}

func withSettings(s appfee.Settings) fixtureOption {
	return func(c *fixtureConfig) { c.settings = s }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.MasterFeeModel{},
		&models.FeeStructureModel{},
		&models.AppliedFeeDiscountModel{},
		&models.StudentFeeModel{},
		&models.FeePaymentModel{},
	))

	idem := cache.NewInMemoryIdempotencyStore(time.Minute)
	t.Cleanup(func() {
		_ = idem.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	sandbox := payment.NewSandboxGateway(testKeySecret, testWebhookSecret)
	cfg := fixtureConfig{gateway: sandbox, settings: appfee.DefaultSettings()}
	for _, opt := range opts {
		opt(&cfg)
	}

	roster := newFakeRoster()
	levelCache := cache.NewInMemoryYearLevelCache(16)
	clock := appfee.Clock(func() time.Time { return fixedNow })
	settings := cfg.settings
	txScope := persistence.NewGormTransactionScope(db)

	structures := persistence.NewGormFeeStructureRepository(db)
	discounts := persistence.NewGormDiscountRepository(db)
	studentFees := persistence.NewGormStudentFeeRepository(db)
	payments := persistence.NewGormFeePaymentRepository(db)

	return &fixture{
		db:        db,
		roster:    roster,
		gateway:   sandbox,
		idem:      idem,
		principal: &auth.Principal{UserID: 42, Username: "bursar"},
		catalog: appfee.NewCatalogService(appfee.CatalogServiceConfig{
			MasterFees: persistence.NewGormMasterFeeRepository(db),
			Structures: structures,
			StudentFee: studentFees,
			Roster:     roster,
		}),
		discounts: appfee.NewDiscountService(appfee.DiscountServiceConfig{
			Structures: structures,
			Discounts:  discounts,
			StudentFee: studentFees,
			Roster:     roster,
			LevelCache: levelCache,
			Settings:   settings,
		}),
		fees: appfee.NewStudentFeeService(appfee.StudentFeeServiceConfig{
			TxScope:    txScope,
			Roster:     roster,
			Gateway:    cfg.gateway,
			LevelCache: levelCache,
			Settings:   settings,
			Clock:      clock,
		}),
		payments: appfee.NewPaymentService(appfee.PaymentServiceConfig{
			TxScope:     txScope,
			Payments:    payments,
			Roster:      roster,
			Gateway:     cfg.gateway,
			Idempotency: idem,
			Settings:    settings,
			Clock:       clock,
		}),
		reports: appfee.NewReportService(appfee.ReportServiceConfig{
			StudentFee: studentFees,
			Structures: structures,
			Discounts:  discounts,
			Payments:   payments,
			Roster:     roster,
			LevelCache: levelCache,
			Settings:   settings,
			Clock:      clock,
		}),
	}
}

// seedStructure creates a master fee and a structure billed to levels
func (f *fixture) seedStructure(t *testing.T, feeType fee.FeeType, amount string, levels ...int64) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	mf, err := f.catalog.CreateMasterFee(ctx, appfee.MasterFeeRequest{PaymentStructure: "MONTHLY"})
	require.NoError(t, err)
	fs, err := f.catalog.CreateFeeStructure(ctx, appfee.FeeStructureRequest{
		MasterFeeID:  mf.ID,
		FeeType:      feeType.String(),
		FeeAmount:    dec(amount),
		YearLevelIDs: levels,
	})
	require.NoError(t, err)
	return fs.ID
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) studentFee(t *testing.T, id uuid.UUID) *fee.StudentFee {
	t.Helper()
	sf, err := persistence.NewGormStudentFeeRepository(f.db).FindByID(context.Background(), id)
	require.NoError(t, err)
	return sf
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(i int) *int { return &i }

func ptrDec(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de), "expected a domain error, got %T: %v", err, err)
	require.Equal(t, code, de.Code, de.Message)
}

func persistenceStudentFees(f *fixture) fee.StudentFeeRepository {
	return persistence.NewGormStudentFeeRepository(f.db)
}

func persistencePayments(f *fixture) fee.FeePaymentRepository {
	return persistence.NewGormFeePaymentRepository(f.db)
}
