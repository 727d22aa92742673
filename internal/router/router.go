package router

import (
	"time"

	"github.com/aiaimg/taxcollecotr-sub000/internal/config"
	"github.com/aiaimg/taxcollecotr-sub000/internal/handler"
	"github.com/aiaimg/taxcollecotr-sub000/internal/metrics"
	"github.com/aiaimg/taxcollecotr-sub000/internal/middleware"
	"github.com/aiaimg/taxcollecotr-sub000/internal/model"
	"github.com/aiaimg/taxcollecotr-sub000/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Services are built once in the composition root and shared with the
// worker pool and the scheduler.
type Services struct {
	Auth           service.AuthService
	Audit          service.AuditService
	Config         service.SystemConfigService
	Commission     service.CommissionService
	Sessions       service.CashSessionService
	Payments       service.CashPaymentService
	Gateway        service.GatewayPaymentService
	Reconciliation service.ReconciliationService
}

// Deps carries the infrastructure the router touches directly.
type Deps struct {
	DB          *gorm.DB
	Redis       *redis.Client
	Tax         handler.BreakerStater
	RateCounter middleware.Counter
	Location    *time.Location
}

// New returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, deps Deps, svcs Services) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	loc := deps.Location
	if loc == nil {
		loc = time.UTC
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSAllowOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(metrics.Middleware())
	r.Use(middleware.ClientInfo())
	if deps.RateCounter != nil && cfg.RateLimitPerMinute > 0 {
		r.Use(middleware.RateLimiter(deps.RateCounter, "api", cfg.RateLimitPerMinute, time.Minute))
	}

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(svcs.Auth)
	sessionsH := handler.NewSessionHandler(svcs.Sessions, svcs.Payments, loc)
	txnH := handler.NewTransactionHandler(svcs.Payments)
	commissionH := handler.NewCommissionHandler(svcs.Commission, loc)
	reconH := handler.NewReconciliationHandler(svcs.Reconciliation, loc)
	auditH := handler.NewAuditHandler(svcs.Audit, loc)
	configH := handler.NewConfigHandler(svcs.Config)
	gatewayH := handler.NewGatewayHandler(svcs.Gateway, cfg.VerifyBaseURL)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	if deps.DB != nil {
		r.GET("/health", handler.Health(deps.DB, deps.Redis, deps.Tax))
	}
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/v1/auth")
	{
		if deps.RateCounter != nil {
			auth.POST("/login", middleware.LoginRateLimiter(deps.RateCounter), authH.Login)
		} else {
			auth.POST("/login", authH.Login)
		}
	}

	anyStaff := middleware.RequireRole(model.RoleCollector, model.RoleSupervisor, model.RoleAdmin)
	supervisors := middleware.RequireRole(model.RoleSupervisor, model.RoleAdmin)
	admins := middleware.RequireRole(model.RoleAdmin)

	cash := r.Group("/v1/cash", middleware.JWTAuth(cfg.JWTSecret))
	{
		sessions := cash.Group("/sessions")
		{
			sessions.POST("", middleware.RequireRole(model.RoleCollector), sessionsH.Open)
			sessions.GET("", supervisors, sessionsH.List)
			sessions.GET("/active", anyStaff, sessionsH.Active)
			sessions.GET("/:id", anyStaff, sessionsH.Get)
			sessions.GET("/:id/totals", anyStaff, sessionsH.Totals)
			sessions.GET("/:id/transactions", anyStaff, sessionsH.Transactions)
			sessions.GET("/:id/commission", supervisors, commissionH.Session)
			sessions.POST("/:id/close", anyStaff, sessionsH.Close)
			sessions.POST("/:id/approve", supervisors, sessionsH.Approve)
		}

		txns := cash.Group("/transactions")
		{
			txns.POST("", middleware.RequireRole(model.RoleCollector), txnH.Create)
			txns.POST("/change", anyStaff, txnH.Change)
			txns.GET("/:id", anyStaff, txnH.Get)
			txns.POST("/:id/approve", supervisors, txnH.Approve)
			txns.POST("/:id/void", admins, txnH.Void)
		}

		commissions := cash.Group("/commissions")
		{
			commissions.GET("/collectors/:id", anyStaff, commissionH.Collector)
			commissions.GET("/summary", supervisors, commissionH.Summary)
			commissions.POST("/pay", admins, commissionH.MarkPaid)
		}

		recon := cash.Group("/reconciliation", supervisors)
		{
			recon.GET("/daily", reconH.Daily)
			recon.GET("/discrepancies", reconH.Discrepancies)
			recon.GET("/unreconciled", reconH.Unreconciled)
			recon.POST("/reconcile", admins, reconH.Reconcile)
		}

		audit := cash.Group("/audit", admins)
		{
			audit.GET("/verify", auditH.Verify)
			audit.GET("/trail", auditH.Trail)
			audit.GET("/export", auditH.Export)
		}

		cash.GET("/config", supervisors, configH.Get)
		cash.PUT("/config", admins, configH.Update)

		// Gateway adapters authenticate with an admin service account.
		cash.POST("/gateway/confirm", admins, gatewayH.Confirm)
	}

	// Swagger UI - only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
