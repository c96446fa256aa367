package router

import (
	"net/http"
	"time"

	"github.com/eduardojeem/Mipos-sub008/internal/config"
	"github.com/eduardojeem/Mipos-sub008/internal/handler"
	"github.com/eduardojeem/Mipos-sub008/internal/middleware"
	"github.com/eduardojeem/Mipos-sub008/internal/repository"
	"github.com/eduardojeem/Mipos-sub008/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Services is the wired service layer shared by the HTTP router, the worker
// pool and the scheduler.
type Services struct {
	Catalog service.CatalogService
	Cash    service.CashService
	Sales   service.SaleService
	Loyalty service.LoyaltyService
	Rewards service.RewardService
}

// NewServices wires services over one repository set. retry may be nil, in
// which case failed loyalty credits are only logged.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func NewServices(cfg *config.Config, repos repository.Set, retry service.CreditRetryQueue) *Services {
	policy := service.DefaultDiscountPolicy()
	if cfg.DiscountReasonThresholdPct > 0 {
		policy.ReasonThreshold = decimal.NewFromInt(int64(cfg.DiscountReasonThresholdPct))
	}
	if cfg.DiscountOverrideThresholdPct > 0 {
		policy.OverrideThreshold = decimal.NewFromInt(int64(cfg.DiscountOverrideThresholdPct))
	}
	pricing := service.NewPricingResolver(policy, service.DefaultRolePermissions())

	cashSvc := service.NewCashService(repos.Cash, nil)
	loyaltySvc := service.NewLoyaltyService(repos.Tx, repos.Loyalty, repos.Customers, repos.Sales, nil)
	saleSvc := service.NewSaleService(service.SaleDeps{
		Tx:        repos.Tx,
		Products:  repos.Products,
		Customers: repos.Customers,
		Sales:     repos.Sales,
		Movements: repos.Movements,
		Cash:      cashSvc,
		CashRepo:  repos.Cash,
		Pricing:   pricing,
		Loyalty:   loyaltySvc,
		Retry:     retry,
	})

	return &Services{
		Catalog: service.NewCatalogService(repos.Products, repos.Customers),
		Cash:    cashSvc,
		Sales:   saleSvc,
		Loyalty: loyaltySvc,
		Rewards: service.NewRewardService(repos.Tx, repos.Rewards, repos.Loyalty, repos.Sales, loyaltySvc, nil),
	}
}

// New returns a configured Gin engine. db and rdb are only used for health
// checks and rate limiting and may be nil.
func New(cfg *config.Config, svcs *Services, db *gorm.DB, rdb *redis.Client) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.Prometheus())
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())

	// ── Handlers ─────────────────────────────────────────────────────────────
	salesH := handler.NewSalesHandler(svcs.Sales)
	catalogH := handler.NewCatalogHandler(svcs.Catalog)
	cashH := handler.NewCashHandler(svcs.Cash)
	loyaltyH := handler.NewLoyaltyHandler(svcs.Loyalty)
	rewardsH := handler.NewRewardsHandler(svcs.Rewards)
	maintenanceH := handler.NewMaintenanceHandler(svcs.Loyalty)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"detail": "route not found", "kind": "not_found"})
	})

	all := middleware.RequireRole(service.RoleCashier, service.RoleSupervisor, service.RoleAdmin)
	elevated := middleware.RequireRole(service.RoleSupervisor, service.RoleAdmin)
	admin := middleware.RequireRole(service.RoleAdmin)

	// Protected routes
	v1 := r.Group("/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		middleware.RateLimiter(rdb, cfg.RateLimitPerMinute, time.Minute),
	)
	{
		v1.POST("/sales", all, salesH.CreateSale)
		v1.GET("/sales", all, salesH.ListSales)
		v1.GET("/sales/:id", all, salesH.GetSale)
		v1.GET("/inventory/movements", elevated, salesH.ListMovements)

		v1.GET("/products/:id", all, catalogH.GetProduct)
		v1.POST("/products", admin, catalogH.CreateProduct)
		v1.GET("/customers/:id", all, catalogH.GetCustomer)
		v1.POST("/customers", all, catalogH.CreateCustomer)

		cash := v1.Group("/cash", all)
		{
			cash.POST("/sessions", cashH.OpenSession)
			cash.GET("/sessions/current", cashH.CurrentSession)
			cash.GET("/sessions/:id", cashH.GetSession)
			cash.POST("/sessions/close", cashH.CloseSession)
			cash.POST("/movements", cashH.RegisterMovement)
		}

		loyalty := v1.Group("/loyalty")
		{
			loyalty.POST("/programs", admin, loyaltyH.CreateProgram)
			loyalty.GET("/programs/:id", all, loyaltyH.GetProgram)
			loyalty.GET("/programs/:id/tiers", all, loyaltyH.ListTiers)
			loyalty.POST("/programs/:id/tiers", admin, loyaltyH.CreateTier)
			loyalty.PUT("/programs/:id/tiers/:tier_id", admin, loyaltyH.UpdateTier)
			loyalty.GET("/programs/:id/rewards", all, rewardsH.ListRewards)

			loyalty.POST("/enrollments", all, loyaltyH.Enroll)
			loyalty.GET("/enrollments/:id", all, loyaltyH.GetEnrollment)
			loyalty.GET("/enrollments/:id/transactions", all, loyaltyH.ListTransactions)
			loyalty.GET("/enrollments/:id/rewards", all, rewardsH.ListCustomerRewards)
			loyalty.POST("/enrollments/:id/points", elevated, loyaltyH.AddPoints)
			loyalty.POST("/enrollments/:id/adjust", elevated, loyaltyH.AdjustPoints)
		}

		v1.POST("/rewards", admin, rewardsH.CreateReward)
		v1.POST("/rewards/redeem", all, rewardsH.RedeemReward)
		v1.POST("/customer-rewards/:id/use", all, rewardsH.UseCustomerReward)

		maint := v1.Group("/maintenance/loyalty", admin)
		{
			maint.POST("/expire", maintenanceH.ExpirePoints)
			maint.POST("/birthday", maintenanceH.BirthdayBonuses)
		}
	}

	return r
}
