package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"
	"path/filepath"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/decision-board/internal/config"
	"github.com/iliyamo/decision-board/internal/handler"
	"github.com/iliyamo/decision-board/internal/logger"
	"github.com/iliyamo/decision-board/internal/middleware"
	"github.com/iliyamo/decision-board/internal/model"
	"github.com/iliyamo/decision-board/internal/repository"
	"github.com/iliyamo/decision-board/internal/service"
)

// Deps carries everything the HTTP layer is built from.  Redis and Events
// may be nil: rate limiting and caching then pass through and approval
// events are dropped.  Approvals is built from DB and Events when nil.
type Deps struct {
	Cfg            config.Config
	DB             *sql.DB
	Redis          *redis.Client
	Events         service.EventPublisher
	Approvals      *service.ApprovalCoordinator
	Log            logger.Logger
	RateLimit      config.RateLimitConfig
	LoginRateLimit config.RateLimitConfig
	Cache          config.CacheConfig
}

// New builds the echo instance with every route and middleware attached.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = logger.Default()
	}
	users := repository.NewUserRepo(d.DB)
	sessions := repository.NewSessionRepo(d.DB)
	decisions := repository.NewDecisionRepo(d.DB)
	approvals := d.Approvals
	if approvals == nil {
		approvals = service.NewApprovalCoordinator(decisions, d.Events, d.Log)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(d.Log))
	// The gateway runs before every handler, including 404s.
	e.Use(middleware.Gateway(&middleware.Authorizer{Sessions: sessions}, d.Cfg.SessionCookie, d.Log))

	RegisterRoutes(e, &handler.HealthHandler{DB: d.DB, Redis: d.Redis})
	RegisterPages(e, &handler.PageHandler{Dir: d.Cfg.WebDir})
	RegisterAuth(e, handler.NewAuthHandler(d.Cfg, users, sessions, d.Log),
		middleware.NewTokenBucket(d.LoginRateLimit, d.Redis, d.Log))

	api := []echo.MiddlewareFunc{
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log),
		middleware.NewRedisCache(d.Cache, d.Redis, d.Log),
	}
	RegisterDecisions(e, handler.NewDecisionHandler(decisions, approvals, d.Log), api...)
	RegisterAdmin(e, handler.NewAdminHandler(decisions, d.Log), api...)
	return e
}

// RegisterRoutes registers the health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// RegisterPages maps the HTML pages and their assets.
func RegisterPages(e *echo.Echo, p *handler.PageHandler) {
	e.GET("/", p.Page("index.html"))
	e.GET("/history", p.Page("history.html"))
	e.GET("/admin", p.Page("admin.html"))
	e.GET("/login", p.Page("login.html"))
	e.GET("/favicon.ico", p.Page("favicon.ico"))
	e.Static("/assets", filepath.Join(p.Dir, "assets"))
}

// RegisterAuth registers login, logout and the current-user endpoint.
// loginLimit throttles password attempts.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, loginLimit echo.MiddlewareFunc) {
	g := e.Group("/auth")
	g.POST("/login", a.Login, loginLimit)
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me)
}

// RegisterDecisions registers the endpoints open to any signed-in user.
func RegisterDecisions(e *echo.Echo, h *handler.DecisionHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/decisions", mw...)
	g.GET("/pending", h.Pending)
	g.GET("/history", h.History)
	g.POST("/:id/approve", h.Approve)
}

// RegisterAdmin registers the developer-only authoring endpoints.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/admin/decisions", append([]echo.MiddlewareFunc{middleware.RequireRole(model.RoleDeveloper)}, mw...)...)
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.DELETE("/:id", h.Delete)
}

func requestLogger(log logger.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			kv := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				kv = append(kv, "err", v.Error)
			}
			log.Info("request", kv...)
			return nil
		},
	})
}
