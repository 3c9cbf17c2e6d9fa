// Package server assembles services, handlers and middleware into the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/CodeSyncr/collaborative-expense-tracker/internal/config"
	apperrors "github.com/CodeSyncr/collaborative-expense-tracker/internal/errors"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/handlers"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/live"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/middleware"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/services"
	"github.com/CodeSyncr/collaborative-expense-tracker/internal/storage"

	_ "github.com/CodeSyncr/collaborative-expense-tracker/internal/docs" // Import swagger docs
)

// APIPrefix is the path prefix of the versioned API.
const APIPrefix = "/api/v1"

// Services bundles the service layer so tests can reach it directly.
type Services struct {
	Users         services.UserServicer
	Projects      services.ProjectServicer
	Expenses      services.ExpenseServicer
	Notifications services.NotificationServicer
	Analytics     services.AnalyticsServicer
	Shares        services.ShareServicer
	Exports       services.ExportServicer
	Audit         services.AuditServicer
}

// NewServices wires the service layer over db, store and hub.
func NewServices(db *gorm.DB, store storage.ObjectStore, hub *live.Hub) *Services {
	userService := services.NewUserService(db)
	notificationService := services.NewNotificationService(db, hub)
	projectService := services.NewProjectService(db, userService, store, hub)
	expenseService := services.NewExpenseService(db, store, notificationService, hub)
	analyticsService := services.NewAnalyticsService(db, userService)

	return &Services{
		Users:         userService,
		Projects:      projectService,
		Expenses:      expenseService,
		Notifications: notificationService,
		Analytics:     analyticsService,
		Shares:        services.NewShareService(projectService, analyticsService),
		Exports:       services.NewExportService(projectService, analyticsService),
		Audit:         services.NewAuditService(db),
	}
}

// NewRouter builds the gin engine serving the API.
func NewRouter(cfg *config.Config, svc *Services, store storage.ObjectStore, hub *live.Hub) *gin.Engine {
	authHandler := handlers.NewAuthHandler(svc.Users, svc.Audit)
	projectHandler := handlers.NewProjectHandler(svc.Projects, svc.Analytics, svc.Audit)
	expenseHandler := handlers.NewExpenseHandler(svc.Expenses, svc.Audit, cfg.MaxUploadBytes())
	shareHandler := handlers.NewShareHandler(svc.Shares, svc.Audit, cfg.PublicBaseURL+APIPrefix)
	notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
	eventsHandler := handlers.NewEventsHandler(hub, svc.Analytics)
	exportHandler := handlers.NewExportHandler(svc.Exports, svc.Audit)
	fileHandler := handlers.NewFileHandler(store)

	router := gin.New()
	router.MaxMultipartMemory = cfg.MaxUploadBytes()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics())
	router.Use(middleware.ErrorHandler())
	router.Use(cors())
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, middleware.ErrorBody(apperrors.ErrNotFound))
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", middleware.MetricsAuth(cfg.MetricsAPIKey), gin.WrapH(promhttp.Handler()))

	// Receipt files, addressed by the URLs stored on receipts
	router.GET("/files/*path", fileHandler.GetFile)

	v1 := router.Group(APIPrefix)

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	v1.GET("/shared/:token", shareHandler.GetShared)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.POST("/auth/logout", authHandler.Logout)
	protected.GET("/profile", authHandler.GetProfile)

	// Project routes
	projects := protected.Group("/projects")
	projects.POST("", projectHandler.CreateProject)
	projects.GET("", projectHandler.GetProjects)
	projects.GET("/:id", projectHandler.GetProject)
	projects.PUT("/:id", projectHandler.UpdateProject)
	projects.DELETE("/:id", projectHandler.DeleteProject)
	projects.GET("/:id/summary", projectHandler.GetSummary)
	projects.GET("/:id/share", shareHandler.GetShareLink)
	projects.POST("/:id/share", shareHandler.RegenerateShareLink)
	projects.GET("/:id/events", eventsHandler.ProjectEvents)
	projects.GET("/:id/export", exportHandler.ExportProject)

	// Expense routes
	projects.POST("/:id/expenses", expenseHandler.CreateExpense)
	projects.GET("/:id/expenses", expenseHandler.GetExpenses)
	projects.POST("/:id/receipts", expenseHandler.UploadReceipts)
	projects.GET("/:id/expenses/:expenseId", expenseHandler.GetExpense)
	projects.PUT("/:id/expenses/:expenseId", expenseHandler.UpdateExpense)
	projects.DELETE("/:id/expenses/:expenseId", expenseHandler.DeleteExpense)

	// Notification routes
	notifications := protected.Group("/notifications")
	notifications.GET("", notificationHandler.GetNotifications)
	notifications.DELETE("", notificationHandler.ClearNotifications)
	notifications.GET("/events", eventsHandler.NotificationEvents)

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, If-Match, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "ETag, X-Request-ID, Content-Disposition")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
