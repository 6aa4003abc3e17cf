package router

import (
	"fiduciaire/internal/handlers"
	"fiduciaire/internal/middleware"
	"fiduciaire/internal/models"
	"fiduciaire/internal/services"
	"fiduciaire/pkg/config"
	"fiduciaire/pkg/jwt"
	"fiduciaire/pkg/queue"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Services every service the HTTP layer and the process need.
type Services struct {
	DB            *gorm.DB
	Queue         *queue.RedisQueue
	Notifications *services.NotificationService
	Users         *services.UserService
	Societes      *services.SocieteService
	Associes      *services.AssocieService
	Gerants       *services.GerantService
	TypesPV       *services.TypePVService
	Documents     *services.DocumentService
	Stats         *services.StatsService
	Scheduler     *services.CleanupScheduler
}

// NewServices wires the services. q may be nil: no mail outbox, no live push.
func NewServices(db *gorm.DB, q *queue.RedisQueue, cfg *config.Config) *Services {
	var (
		mail      services.MailQueue
		publisher services.Publisher
	)
	if q != nil {
		mail, publisher = q, q
	}

	notifications := services.NewNotificationService(db, publisher)
	users := services.NewUserService(db, mail, notifications, cfg.Account)
	societes := services.NewSocieteService(db, notifications)
	documents := services.NewDocumentService(db, societes, notifications, cfg.PV)

	return &Services{
		DB:            db,
		Queue:         q,
		Notifications: notifications,
		Users:         users,
		Societes:      societes,
		Associes:      services.NewAssocieService(db, societes),
		Gerants:       services.NewGerantService(db, societes),
		TypesPV:       services.NewTypePVService(db),
		Documents:     documents,
		Stats:         services.NewStatsService(db, users, societes, documents),
		Scheduler:     services.NewCleanupScheduler(users, notifications, cfg.Account),
	}
}

// SetupRouter builds the engine
func SetupRouter(cfg *config.Config, svc *Services, jwtManager *jwt.Manager) *gin.Engine {
	handlers.RegisterValidator()

	router := gin.New()
	router.Use(middleware.RequestLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetupCORS(cfg.CORS))

	registerRoutes(router, cfg, svc, jwtManager)
	return router
}

func registerRoutes(router *gin.Engine, cfg *config.Config, svc *Services, jwtManager *jwt.Manager) {
	auth := middleware.NewAuthMiddleware(svc.Users, jwtManager)
	adminOnly := auth.RequireRole(models.RoleAdmin)
	reviewers := auth.RequireRole(models.RoleAdmin, models.RoleComptable)

	systemHandler := handlers.NewSystemHandler(svc.DB, svc.Queue, svc.Stats, svc.Scheduler)
	wsHandler := handlers.NewWebSocketHandler(svc.Queue, auth, svc.Notifications, cfg.CORS.AllowOrigins)

	api := router.Group("/api/v1")
	{
		api.GET("/health", systemHandler.Health)

		// websocket authenticates with ?token=
		api.GET("/ws/notifications", wsHandler.Notifications)

		authHandler := handlers.NewAuthHandler(svc.Users, jwtManager)
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/verify-email", authHandler.VerifyEmail)
			authGroup.POST("/resend-verification", authHandler.ResendVerification)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", auth.RequireLogin(), authHandler.RefreshToken)
			authGroup.GET("/me", auth.RequireLogin(), authHandler.GetProfile)
		}

		// everything below requires an approved account
		secured := api.Group("", auth.RequireLogin())

		userHandler := handlers.NewUserHandler(svc.Users)
		profile := secured.Group("/profile")
		{
			profile.PUT("", userHandler.UpdateProfile)
			profile.POST("/password", userHandler.ChangePassword)
		}

		users := secured.Group("/users")
		{
			users.GET("", adminOnly, userHandler.List)
			users.GET("/stats", adminOnly, userHandler.Stats)
			users.GET("/pending", reviewers, userHandler.Pending)
			users.GET("/:id", userHandler.Get)
			users.DELETE("/:id", adminOnly, userHandler.Delete)

			// service checks the reviewer/target role pair
			users.POST("/:id/approve", reviewers, userHandler.Approve)
			users.POST("/:id/reject", reviewers, userHandler.Reject)
			users.POST("/:id/suspend", adminOnly, userHandler.Suspend)
			users.POST("/:id/reactivate", adminOnly, userHandler.Reactivate)
		}

		societeHandler := handlers.NewSocieteHandler(svc.Societes)
		associeHandler := handlers.NewAssocieHandler(svc.Associes)
		gerantHandler := handlers.NewGerantHandler(svc.Gerants)
		societes := secured.Group("/societes")
		{
			societes.GET("", societeHandler.List)
			societes.POST("", societeHandler.Create)
			societes.GET("/export", societeHandler.Export)
			societes.GET("/:id", societeHandler.Get)
			societes.PUT("/:id", societeHandler.Update)
			societes.DELETE("/:id", societeHandler.Delete)

			societes.GET("/:id/members", societeHandler.ListMembers)
			societes.POST("/:id/members", societeHandler.Share)
			societes.DELETE("/:id/members/:user_id", societeHandler.Unshare)

			societes.GET("/:id/associes", associeHandler.List)
			societes.POST("/:id/associes", associeHandler.Create)
			societes.PUT("/:id/associes/:associe_id", associeHandler.Update)
			societes.DELETE("/:id/associes/:associe_id", associeHandler.Delete)

			societes.GET("/:id/gerants", gerantHandler.List)
			societes.POST("/:id/gerants", gerantHandler.Create)
			societes.PUT("/:id/gerants/:gerant_id", gerantHandler.Update)
			societes.DELETE("/:id/gerants/:gerant_id", gerantHandler.Delete)
		}

		typePVHandler := handlers.NewTypePVHandler(svc.TypesPV)
		typesPV := secured.Group("/types-pv")
		{
			typesPV.GET("", typePVHandler.List)
			typesPV.GET("/:id", typePVHandler.Get)
			typesPV.POST("", adminOnly, typePVHandler.Create)
			typesPV.PUT("/:id", adminOnly, typePVHandler.Update)
			typesPV.DELETE("/:id", adminOnly, typePVHandler.Delete)
		}

		documentHandler := handlers.NewDocumentHandler(svc.Documents)
		documents := secured.Group("/documents")
		{
			documents.POST("/preview", documentHandler.Preview)
			documents.POST("", documentHandler.Generate)
			documents.GET("", documentHandler.List)
			documents.GET("/:id", documentHandler.Get)
			documents.GET("/:id/download", documentHandler.Download)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		notificationHandler := handlers.NewNotificationHandler(svc.Notifications)
		notifications := secured.Group("/notifications")
		{
			notifications.GET("", notificationHandler.List)
			notifications.GET("/unread-count", notificationHandler.UnreadCount)
			notifications.POST("/read-all", notificationHandler.MarkAllRead)
			notifications.POST("/:id/read", notificationHandler.MarkRead)
			notifications.DELETE("/:id", notificationHandler.Delete)
		}

		secured.GET("/stats/dashboard", systemHandler.Dashboard)

		system := secured.Group("/system", adminOnly)
		{
			system.GET("/scheduler", systemHandler.SchedulerStatus)
			system.POST("/cleanup", systemHandler.RunCleanup)
		}
	}
}
