package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/cohort/calendar"
	"github.com/cppla/cohort/config"
	"github.com/cppla/cohort/content"
	"github.com/cppla/cohort/controllers"
	"github.com/cppla/cohort/middleware"
	"github.com/cppla/cohort/notify"
	"github.com/cppla/cohort/profiles"
	"github.com/cppla/cohort/storage"
	"github.com/cppla/cohort/uploads"
	"github.com/cppla/cohort/utils"
)

// Deps are the services the HTTP layer is built from.
type Deps struct {
	DB       *gorm.DB
	Config   config.AppConfig
	Content  *content.Service
	Uploads  *uploads.Service
	Storage  storage.Storage
	Notify   *notify.Service
	Calendar *calendar.Service
	Profiles *profiles.Service
	Metrics  *utils.Metrics
	// Gatherer backs /metrics; the default registry when nil.
	Gatherer prometheus.Gatherer
	// AccessLog receives one line per request; a rolling file from config when nil.
	AccessLog *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	cfg := d.Config
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl := d.AccessLog
	if gl == nil {
		var err error
		gl, err = utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
		if err != nil {
			gl = utils.L()
		}
	}
	r.Use(utils.Ginzap(gl, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(gl, false))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	// Record content views after each request
	r.Use(middleware.PageViewRecorder(d.DB))

	// Locally stored attachments are served straight from disk
	if cfg.StorageBackend == "local" && strings.HasPrefix(cfg.PublicBaseURL, "/") {
		r.Static(cfg.PublicBaseURL, cfg.LocalUploadDir)
	}

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	limits := d.Uploads.Limits()
	authController := controllers.NewAuthController(d.DB, cfg)
	postController := controllers.NewPostController(d.Content.Store)
	contentController := controllers.NewContentController(d.Content)
	attachmentController := controllers.NewAttachmentController(d.Uploads, d.Content.Linker, d.Storage,
		time.Duration(cfg.SignedURLTTLMinutes)*time.Minute)
	reactionController := controllers.NewReactionController(d.Content.Store)
	notificationController := controllers.NewNotificationController(d.Notify)
	eventController := controllers.NewEventController(d.Calendar)
	statsController := controllers.NewStatsController(d.DB, d.Content.Store)
	configController := controllers.NewConfigController(limits)
	profileController := controllers.NewProfileController(d.Profiles)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	// Public reads
	api.GET("/content/:kind/:id", contentController.Get)
	api.GET("/posts", postController.ListPosts)
	api.GET("/posts/:id/comments", postController.ListComments)
	api.GET("/comments/:id/replies", postController.ListReplies)
	api.GET("/attachments/:kind/:id", attachmentController.List)
	api.GET("/reactions/:kind/:id", middleware.OptionalAuth(), reactionController.Summary)
	api.GET("/events", eventController.List)
	api.GET("/events/upcoming", eventController.Upcoming)
	api.GET("/events/month", eventController.Month)
	api.GET("/events/:id", eventController.Get)
	api.GET("/stats", statsController.GetStats)
	api.GET("/stats/posts/:id", statsController.GetPostStats)
	api.GET("/config/uploads", configController.GetUploads)
	api.GET("/users/:id/profile", middleware.OptionalAuth(), profileController.Public)
	api.GET("/users/:id/portfolio", profileController.Portfolio)

	protected := api.Group("")
	protected.Use(middleware.AuthRequired(), middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	protected.POST("/content", contentController.Create)
	protected.POST("/content/:kind/:id", contentController.Update)
	protected.POST("/content/:kind/:id/delete", contentController.Delete)
	protected.POST("/content/:kind/:id/pin", contentController.SetPinned)

	protected.POST("/uploads", middleware.UploadRateLimit(cfg.UploadsPerMinute), attachmentController.Upload)
	protected.POST("/attachments/commit", attachmentController.Commit)
	protected.POST("/attachments/urls", attachmentController.SignURLs)

	protected.POST("/reactions/:kind/:id/toggle", reactionController.Toggle)

	protected.GET("/notifications", notificationController.List)
	protected.GET("/notifications/unread-count", notificationController.UnreadCount)
	protected.POST("/notifications/read-all", notificationController.MarkAllRead)
	protected.POST("/notifications/:id/read", notificationController.MarkRead)

	protected.POST("/events", eventController.Create)
	protected.PUT("/events/:id", eventController.Update)
	protected.DELETE("/events/:id", eventController.Delete)

	protected.GET("/members", profileController.Members)
	protected.GET("/profile", profileController.Mine)
	protected.PATCH("/profile", profileController.UpdateMine)
	protected.POST("/portfolio", profileController.CreateItem)
	protected.PUT("/portfolio/:id", profileController.UpdateItem)
	protected.DELETE("/portfolio/:id", profileController.DeleteItem)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/api/") {
			utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "not found")
	})

	return r
}
