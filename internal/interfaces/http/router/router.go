package router

import (
	"net/http"

	_ "github.com/erp/schoolfees/docs"
	"github.com/erp/schoolfees/internal/domain/shared"
	"github.com/erp/schoolfees/internal/infrastructure/config"
	"github.com/erp/schoolfees/internal/infrastructure/logger"
	"github.com/erp/schoolfees/internal/infrastructure/telemetry"
	"github.com/erp/schoolfees/internal/interfaces/http/handler"
	"github.com/erp/schoolfees/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// AdminRole is required on the /admin routes
const AdminRole = "ADMIN"

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Route describes one registered endpoint
type Route struct {
	Method string
	Path   string
}

// DomainGroup collects the routes of one resource under a prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// Handle registers a route for one method
func (dg *DomainGroup) Handle(method, path string, handlers ...gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodGet, path, handlers...)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPost, path, handlers...)
}

// PUT registers a PUT route
func (dg *DomainGroup) PUT(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodPut, path, handlers...)
}

// DELETE registers a DELETE route
func (dg *DomainGroup) DELETE(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.Handle(http.MethodDelete, path, handlers...)
}

// Group creates a sub-group within this domain
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix)
	if len(dg.middleware) > 0 {
		group.Use(dg.middleware...)
	}
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Handlers bundles the HTTP handlers served by the engine
type Handlers struct {
	System      *handler.SystemHandler
	Catalog     *handler.FeeCatalogHandler
	Discounts   *handler.DiscountHandler
	StudentFees *handler.StudentFeeHandler
	FeePayments *handler.FeePaymentHandler
	Webhook     *handler.WebhookHandler
	Admin       *handler.AdminHandler
	ErrorLogs   *handler.ErrorLogHandler
}

// Config holds the engine's cross-cutting dependencies. Metrics, ErrorLogs
// and WebhookLimiter are optional.
type Config struct {
	Logger         *zap.Logger
	HTTP           config.HTTPConfig
	Tracing        middleware.TracingConfig
	JWT            middleware.JWTMiddlewareConfig
	Metrics        *telemetry.FeeMetrics
	MetricsPath    string
	ErrorLogs      shared.ErrorLogRepository
	WebhookLimiter *middleware.RateLimiter
	Swagger        config.SwaggerConfig
}

// New builds the gin engine with the global middleware chain and every route
func New(cfg Config, h Handlers) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
			_ = engine.SetTrustedProxies(nil)
		}
	} else {
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.Tracing(cfg.Tracing),
		middleware.SpanAttributes(),
	)
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.GinMiddleware())
	}
	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}
	if cfg.ErrorLogs != nil {
		engine.Use(middleware.ErrorLog(cfg.ErrorLogs, log))
	}

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}
	if cfg.Metrics != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(cfg.Metrics.Handler()))
	}

	jwtCfg := cfg.JWT
	if jwtCfg.Logger == nil {
		jwtCfg.Logger = log
	}
	authenticate := middleware.JWTAuthMiddlewareWithConfig(jwtCfg)

	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(cfg.Swagger, authenticate),
		ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group("/api/v1")
	for _, registrar := range publicGroups(cfg, h) {
		registrar.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(authenticate)
	for _, registrar := range protectedGroups(h) {
		registrar.RegisterRoutes(protected)
	}

	return engine
}

// publicGroups are served without a bearer token
func publicGroups(cfg Config, h Handlers) []RouteRegistrar {
	var groups []RouteRegistrar
	if h.System != nil {
		groups = append(groups, NewDomainGroup("system", "").
			GET("/health", h.System.Health).
			GET("/system/info", h.System.GetSystemInfo))
	}
	if h.Webhook != nil {
		payments := NewDomainGroup("payments", "/payments").
			Use(middleware.BodyLimit(middleware.WebhookMaxBodySize))
		if cfg.WebhookLimiter != nil {
			payments.Use(middleware.RateLimit(cfg.WebhookLimiter))
		}
		groups = append(groups, payments.POST("/webhook", h.Webhook.Handle))
	}
	return groups
}

func protectedGroups(h Handlers) []RouteRegistrar {
	var groups []RouteRegistrar

	if c := h.Catalog; c != nil {
		groups = append(groups,
			NewDomainGroup("master-fees", "/master-fees").
				POST("/create", c.CreateMasterFee).
				PUT("/update/:id", c.UpdateMasterFee).
				GET("/getById/:id", c.GetMasterFee).
				GET("/getAll", c.ListMasterFees).
				DELETE("/delete/:id", c.DeleteMasterFee),
			NewDomainGroup("fee-structures", "/fee-structures").
				POST("/create", c.CreateFeeStructure).
				PUT("/update/:id", c.UpdateFeeStructure).
				POST("/update/:id", c.UpdateFeeStructure).
				GET("/getById/:id", c.GetFeeStructure).
				GET("/getAll", c.ListFeeStructures).
				DELETE("/delete/:id", c.DeleteFeeStructure),
		)
	}

	if d := h.Discounts; d != nil {
		groups = append(groups, NewDomainGroup("discounts", "/AppliedFeeDiscount").
			POST("/create", d.Apply).
			PUT("/update/:id", d.Update).
			POST("/update/:id", d.Update).
			GET("", d.List).
			DELETE("/delete/:id", d.Delete))
	}

	if s := h.StudentFees; s != nil {
		groups = append(groups, NewDomainGroup("student-fees", "/student-fees").
			POST("", s.CreateOrUpdate).
			POST("/submit_fee", s.SubmitFee).
			POST("/initiate_payment", s.InitiatePayment).
			POST("/confirm_payment", s.ConfirmPayment).
			GET("/fee_preview", s.Preview).
			GET("/overdue_fees", s.Overdue).
			GET("/overdue_fees/export", s.ExportOverdue).
			GET("/pending_fees", s.Pending).
			GET("/fee_history", s.History).
			GET("/student_unpaid_fees", s.Unpaid).
			GET("/student_unpaid_fees/export", s.ExportUnpaid).
			GET("/:id/receipt.pdf", s.ReceiptPDF))
	}

	if p := h.FeePayments; p != nil {
		groups = append(groups, NewDomainGroup("fee-payments", "/fee-payments").
			POST("", p.Create).
			GET("", p.List).
			GET("/:id", p.Get).
			PUT("/:id/status", p.UpdateStatus))
	}

	if h.Admin != nil || h.ErrorLogs != nil {
		admin := NewDomainGroup("admin", "/admin").
			Use(middleware.RequireAnyRole(AdminRole))
		if a := h.Admin; a != nil {
			admin.POST("/cache/year-levels/invalidate", a.InvalidateYearLevels)
		}
		if e := h.ErrorLogs; e != nil {
			admin.GET("/error-logs", e.List).
				GET("/error-logs/:id", e.Get)
		}
		groups = append(groups, admin)
	}

	return groups
}

// Routes lists every route registered on engine
func Routes(engine *gin.Engine) []Route {
	info := engine.Routes()
	routes := make([]Route, 0, len(info))
	for _, r := range info {
		routes = append(routes, Route{Method: r.Method, Path: r.Path})
	}
	return routes
}
