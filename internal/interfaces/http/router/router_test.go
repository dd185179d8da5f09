package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/auth"
	"github.com/erp/schoolfees/internal/infrastructure/cache"
	"github.com/erp/schoolfees/internal/infrastructure/config"
	"github.com/erp/schoolfees/internal/infrastructure/telemetry"
	"github.com/erp/schoolfees/internal/interfaces/http/handler"
	"github.com/erp/schoolfees/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var jwtCfg = config.JWTConfig{
	Secret:                "router-test-secret-at-least-32-chars",
	Issuer:                "sms-identity",
	AccessTokenExpiration: 15 * time.Minute,
}

type pingOK struct{}

func (pingOK) PingContext(context.Context) error { return nil }

func token(t *testing.T, roles ...string) string {
	t.Helper()
	tok, _, err := auth.NewTokenIssuer(jwtCfg).Issue(7, "bursar", roles...)
	require.NoError(t, err)
	return tok
}

// emptyErrorLogs is an error log with no entries
type emptyErrorLogs struct{}

func (emptyErrorLogs) FindByID(context.Context, uuid.UUID) (*shared.ErrorLogEntry, error) {
	return nil, shared.ErrNotFound
}

func (emptyErrorLogs) FindAll(context.Context, shared.ErrorLogFilter) ([]shared.ErrorLogEntry, int64, error) {
	return nil, 0, nil
}

func testEngine(t *testing.T, limiter *middleware.RateLimiter) *gin.Engine {
	t.Helper()
	return testEngineWith(t, func(cfg *Config) { cfg.WebhookLimiter = limiter })
}

func testEngineWith(t *testing.T, configure func(*Config)) *gin.Engine {
	t.Helper()
	cfg := Config{
		HTTP:    config.HTTPConfig{MaxBodySize: 1 << 20},
		JWT:     middleware.DefaultJWTConfig(auth.NewValidator(jwtCfg)),
		Metrics: telemetry.NewFeeMetrics(),
	}
	if configure != nil {
		configure(&cfg)
	}
	// services stay nil; every request here is answered before reaching one
	h := Handlers{
		System:      handler.NewSystemHandler("schoolfees", "test", pingOK{}),
		Catalog:     handler.NewFeeCatalogHandler(nil),
		Discounts:   handler.NewDiscountHandler(nil),
		StudentFees: handler.NewStudentFeeHandler(nil, nil, nil),
		FeePayments: handler.NewFeePaymentHandler(nil),
		Webhook:     handler.NewWebhookHandler(nil),
		Admin:       handler.NewAdminHandler(cache.NewInMemoryYearLevelCache(8)),
		ErrorLogs:   handler.NewErrorLogHandler(emptyErrorLogs{}),
	}
	return New(cfg, h)
}

func serve(engine *gin.Engine, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestNew_RegistersFeeRoutes(t *testing.T) {
	routes := Routes(testEngine(t, nil))

	expected := []Route{
		{http.MethodPost, "/api/v1/master-fees/create"},
		{http.MethodDelete, "/api/v1/master-fees/delete/:id"},
		{http.MethodPut, "/api/v1/fee-structures/update/:id"},
		{http.MethodPost, "/api/v1/fee-structures/update/:id"},
		{http.MethodGet, "/api/v1/fee-structures/getAll"},
		{http.MethodPost, "/api/v1/AppliedFeeDiscount/create"},
		{http.MethodGet, "/api/v1/AppliedFeeDiscount"},
		{http.MethodPost, "/api/v1/student-fees"},
		{http.MethodPost, "/api/v1/student-fees/submit_fee"},
		{http.MethodPost, "/api/v1/student-fees/initiate_payment"},
		{http.MethodPost, "/api/v1/student-fees/confirm_payment"},
		{http.MethodGet, "/api/v1/student-fees/fee_preview"},
		{http.MethodGet, "/api/v1/student-fees/overdue_fees/export"},
		{http.MethodGet, "/api/v1/student-fees/:id/receipt.pdf"},
		{http.MethodPut, "/api/v1/fee-payments/:id/status"},
		{http.MethodPost, "/api/v1/payments/webhook"},
		{http.MethodPost, "/api/v1/admin/cache/year-levels/invalidate"},
		{http.MethodGet, "/api/v1/admin/error-logs"},
		{http.MethodGet, "/api/v1/admin/error-logs/:id"},
		{http.MethodGet, "/swagger/*any"},
		{http.MethodGet, "/health"},
		{http.MethodGet, "/metrics"},
	}
	for _, r := range expected {
		assert.Contains(t, routes, r)
	}
}

func TestNew_ProtectedRoutesRequireToken(t *testing.T) {
	engine := testEngine(t, nil)

	for _, path := range []string{
		"/api/v1/master-fees/getAll",
		"/api/v1/student-fees/student_unpaid_fees",
		"/api/v1/fee-payments",
	} {
		w := serve(engine, http.MethodGet, path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestNew_ValidTokenReachesHandler(t *testing.T) {
	engine := testEngine(t, nil)

	// a malformed id is rejected by the handler, so the JWT layer let it through
	w := serve(engine, http.MethodGet, "/api/v1/master-fees/getById/not-a-uuid", token(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(engine, http.MethodGet, "/api/v1/student-fees/fee_preview", token(t))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNew_PublicRoutes(t *testing.T) {
	engine := testEngine(t, nil)

	for _, path := range []string{"/health", "/api/v1/health", "/api/v1/system/info", "/metrics"} {
		w := serve(engine, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := serve(engine, http.MethodPost, "/api/v1/payments/webhook", "")
	assert.Equal(t, http.StatusBadRequest, w.Code, "webhook needs a signature, not a token")
}

func TestNew_AdminRequiresRole(t *testing.T) {
	engine := testEngine(t, nil)
	path := "/api/v1/admin/cache/year-levels/invalidate"

	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodPost, path, token(t, "BURSAR")).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodPost, path, token(t, AdminRole)).Code)
}

func TestNew_ErrorLogsRequireAdmin(t *testing.T) {
	engine := testEngine(t, nil)

	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/admin/error-logs", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(engine, http.MethodGet, "/api/v1/admin/error-logs", token(t, "BURSAR")).Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/admin/error-logs", token(t, AdminRole)).Code)
	assert.Equal(t, http.StatusNotFound,
		serve(engine, http.MethodGet, "/api/v1/admin/error-logs/"+uuid.NewString(), token(t, AdminRole)).Code)
}

func TestNew_SwaggerDocs(t *testing.T) {
	t.Run("disabled by default", func(t *testing.T) {
		w := serve(testEngine(t, nil), http.MethodGet, "/swagger/index.html", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("serves the generated document", func(t *testing.T) {
		engine := testEngineWith(t, func(cfg *Config) {
			cfg.Swagger = config.SwaggerConfig{Enabled: true}
		})

		w := serve(engine, http.MethodGet, "/swagger/index.html", "")
		assert.Equal(t, http.StatusOK, w.Code)

		w = serve(engine, http.MethodGet, "/swagger/doc.json", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "/student-fees/confirm_payment")
		assert.Contains(t, w.Body.String(), "/admin/error-logs/{id}")
	})

	t.Run("requires a token when configured", func(t *testing.T) {
		engine := testEngineWith(t, func(cfg *Config) {
			cfg.Swagger = config.SwaggerConfig{Enabled: true, RequireAuth: true}
		})

		assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/swagger/doc.json", "").Code)
		assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/swagger/doc.json", token(t)).Code)
	})
}

func TestNew_WebhookRateLimit(t *testing.T) {
	engine := testEngine(t, middleware.NewRateLimiter(1, time.Minute))

	assert.Equal(t, http.StatusBadRequest, serve(engine, http.MethodPost, "/api/v1/payments/webhook", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(engine, http.MethodPost, "/api/v1/payments/webhook", "").Code)
}

func TestNew_SetsRequestIDAndSecurityHeaders(t *testing.T) {
	w := serve(testEngine(t, nil), http.MethodGet, "/health", "")

	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestDomainGroup(t *testing.T) {
	t.Run("name and prefix", func(t *testing.T) {
		g := NewDomainGroup("fees", "/fees")
		assert.Equal(t, "fees", g.Name())
		assert.Equal(t, "/fees", g.Prefix())
	})

	t.Run("registers methods, middleware and subgroups", func(t *testing.T) {
		engine := gin.New()
		ok := func(c *gin.Context) { c.String(http.StatusOK, c.Request.Method) }

		g := NewDomainGroup("fees", "/fees").
			Use(func(c *gin.Context) {
				c.Header("X-Group", "fees")
				c.Next()
			}).
			GET("", ok).
			POST("", ok).
			PUT("/:id", ok).
			DELETE("/:id", ok)
		g.Group("reports", "/reports").GET("/overdue", ok)
		g.RegisterRoutes(engine.Group("/api/v1"))

		for _, tc := range []struct{ method, path string }{
			{http.MethodGet, "/api/v1/fees"},
			{http.MethodPost, "/api/v1/fees"},
			{http.MethodPut, "/api/v1/fees/1"},
			{http.MethodDelete, "/api/v1/fees/1"},
			{http.MethodGet, "/api/v1/fees/reports/overdue"},
		} {
			w := serve(engine, tc.method, tc.path, "")
			assert.Equal(t, http.StatusOK, w.Code, tc.path)
			assert.Equal(t, "fees", w.Header().Get("X-Group"), tc.path)
		}
	})
}
