// Package router assembles the HTTP API: middleware, operational endpoints and
// every /api/v1 route.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "splitledger/internal/docs" // swagger docs
	"splitledger/internal/events"
	"splitledger/internal/handlers"
	"splitledger/internal/ledger"
	"splitledger/internal/metrics"
	"splitledger/internal/middleware"
	"splitledger/internal/services"
)

// Services is the business layer the routes are bound to.
type Services struct {
	Users      services.UserServicer
	Groups     services.GroupServicer
	Expenses   services.ExpenseServicer
	Categories services.CategoryServicer
	Balances   services.BalanceServicer
	Audit      services.AuditServicer
}

// NewServices builds the database-backed implementation of every service.
func NewServices(db *gorm.DB, engine *ledger.Engine, reg *metrics.Registry) Services {
	return Services{
		Users:      services.NewUserService(db),
		Groups:     services.NewGroupService(db),
		Expenses:   services.NewExpenseService(db),
		Categories: services.NewCategoryService(db),
		Balances:   services.NewBalanceService(db, engine, reg),
		Audit:      services.NewAuditService(db),
	}
}

// Options carries the optional collaborators of the router.
type Options struct {
	// Publisher receives ledger change events. Nil disables publishing.
	Publisher events.Publisher
	// Metrics enables request metrics and GET /metrics when set.
	Metrics *metrics.Registry
	// Reminders enables POST /api/v1/internal/reminders/run when set.
	Reminders      handlers.ReminderRunner
	InternalAPIKey string
}

// New returns a gin engine serving the whole API.
func New(svc Services, opts Options) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Users, svc.Audit)
	groupHandler := handlers.NewGroupHandler(svc.Groups, svc.Audit, opts.Publisher)
	expenseHandler := handlers.NewExpenseHandler(svc.Expenses, svc.Audit, opts.Publisher)
	categoryHandler := handlers.NewCategoryHandler(svc.Categories, svc.Audit)
	balanceHandler := handlers.NewBalanceHandler(svc.Balances)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(opts.Metrics.Middleware())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")

	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	if opts.Reminders != nil {
		internal := v1.Group("/internal", middleware.APIKeyMiddleware(opts.InternalAPIKey))
		internal.POST("/reminders/run", handlers.NewReminderHandler(opts.Reminders).RunReminders)
	}

	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/auth/verify", authHandler.VerifyToken)
	protected.DELETE("/auth/me", authHandler.DeleteAccount)

	me := protected.Group("/me")
	me.GET("", authHandler.GetProfile)
	me.PUT("", authHandler.UpdateProfile)
	me.PUT("/password", authHandler.ChangePassword)
	me.GET("/balances", balanceHandler.GetUserSummary)
	me.GET("/expenses/paid", expenseHandler.GetPaidExpenses)
	me.GET("/expenses/owed", expenseHandler.GetOwedExpenses)

	groups := protected.Group("/groups")
	groups.POST("", groupHandler.CreateGroup)
	groups.GET("", groupHandler.GetUserGroups)
	groups.GET("/:id", groupHandler.GetGroupByID)
	groups.PUT("/:id", groupHandler.UpdateGroup)
	groups.DELETE("/:id", groupHandler.DeleteGroup)
	groups.GET("/:id/members", groupHandler.GetMembers)
	groups.POST("/:id/members", groupHandler.AddMember)
	groups.PUT("/:id/members/:userId", groupHandler.UpdateMemberRole)
	groups.DELETE("/:id/members/:userId", groupHandler.RemoveMember)
	groups.POST("/:id/leave", groupHandler.LeaveGroup)
	groups.GET("/:id/balances", balanceHandler.GetGroupBalances)
	groups.GET("/:id/stats", balanceHandler.GetGroupStats)
	groups.GET("/:id/expenses", expenseHandler.GetGroupExpenses)

	expenses := protected.Group("/expenses")
	expenses.POST("", expenseHandler.CreateExpense)
	expenses.GET("/:id", expenseHandler.GetExpenseByID)
	expenses.PUT("/:id", expenseHandler.UpdateExpense)
	expenses.DELETE("/:id", expenseHandler.DeleteExpense)

	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.GET("/search", categoryHandler.SearchCategories)
	categories.GET("/stats", categoryHandler.GetCategoryStats)
	categories.GET("/stats/most-used", categoryHandler.GetMostUsedCategories)
	categories.GET("/suggestions/recent", categoryHandler.GetRecentCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
