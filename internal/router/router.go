package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/confhub-api/internal/handler"
	"github.com/noah-isme/confhub-api/internal/middleware"
	"github.com/noah-isme/confhub-api/internal/models"
	"github.com/noah-isme/confhub-api/internal/service"
	"github.com/noah-isme/confhub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/confhub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/confhub-api/pkg/middleware/requestid"
)

// Options carries the cross-cutting settings of the HTTP surface.
type Options struct {
	APIPrefix        string
	AllowedOrigins   []string
	DocsEnabled      bool
	DashboardEnabled bool
	ReportsEnabled   bool
}

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth          *handler.AuthHandler
	Users         *handler.UserHandler
	Events        *handler.EventHandler
	Attendance    *handler.AttendanceHandler
	Requests      *handler.RequestHandler
	Notifications *handler.NotificationHandler
	Feedback      *handler.FeedbackHandler
	Dashboard     *handler.DashboardHandler
	Reports       *handler.ReportHandler
	Metrics       *handler.MetricsHandler
}

// Deps are the middleware collaborators.
type Deps struct {
	Auth    middleware.Authenticator
	Audit   middleware.AuditWriter
	Metrics *service.MetricsService
	Logger  *zap.Logger
}

// New builds the gin engine with every route registered.
func New(opts Options, deps Deps, h Handlers) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.DocsEnabled {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/signup", h.Auth.Signup)
	auth.POST("/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Auth))
	secured.GET("/auth/me", h.Auth.Me)

	admin := middleware.RequireRoles(models.RoleAdmin)
	moderator := middleware.RequireModerator()

	users := secured.Group("/users")
	users.GET("", admin, h.Users.List)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfKeyword), h.Users.Get)
	users.PATCH("/:id/role", admin, h.Users.UpdateRole)

	events := secured.Group("/events")
	events.GET("", h.Events.List)
	events.GET("/:id", h.Events.Get)
	events.POST("", moderator, h.Events.Create)
	events.PUT("/:id", moderator, h.Events.Update)
	events.PATCH("/:id/status", moderator, h.Events.UpdateStatus)
	events.DELETE("/:id", moderator, h.Events.Delete)
	events.POST("/:id/register", h.Attendance.Register)
	events.DELETE("/:id/register", h.Attendance.Cancel)
	events.GET("/:id/attendees", moderator, h.Attendance.ListAttendees)
	events.POST("/:id/checkin-token", h.Attendance.IssueToken)
	secured.POST("/checkins", moderator, h.Attendance.CheckIn)

	mics := secured.Group("/mic-requests")
	mics.POST("", h.Requests.SubmitMic)
	mics.GET("", h.Requests.ListMic)
	mics.GET("/:id", h.Requests.GetMic)
	mics.POST("/:id/transition", moderator, h.Requests.TransitionMic)

	complaints := secured.Group("/complaints")
	complaints.POST("", h.Requests.SubmitComplaint)
	complaints.GET("", h.Requests.ListComplaints)
	complaints.GET("/:id", h.Requests.GetComplaint)
	complaints.POST("/:id/transition", moderator, h.Requests.TransitionComplaint)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.GET("/unread-count", h.Notifications.UnreadCount)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)
	notifications.POST("/:id/read", h.Notifications.MarkRead)
	notifications.POST("", moderator, h.Notifications.Send)

	if h.Feedback != nil {
		feedback := secured.Group("/feedback")
		feedback.POST("", h.Feedback.Submit)
		feedback.GET("", moderator, h.Feedback.List)
		feedback.GET("/summary", moderator, h.Feedback.Summary)
	}

	if opts.DashboardEnabled && h.Dashboard != nil {
		dashboard := secured.Group("/dashboard")
		dashboard.GET("/summary", moderator, h.Dashboard.Summary)
		dashboard.GET("/leaderboard", h.Dashboard.Leaderboard)
	}

	if opts.ReportsEnabled && h.Reports != nil {
		secured.GET("/reports/requests", moderator,
			middleware.Audit(deps.Audit, deps.Logger, models.AuditActionReportExport, "reports"),
			h.Reports.ExportRequests)
	}

	return r
}
