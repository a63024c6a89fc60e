package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petdor/identity/internal/config"
	"github.com/petdor/identity/internal/http/handlers"
	"github.com/petdor/identity/internal/http/middlewares"
	"github.com/petdor/identity/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router wires together. main builds the concrete
// services; tests can pass fakes through the handler interfaces instead.
type Deps struct {
	Log      *slog.Logger
	Cfg      config.Config
	Accounts handlers.AccountService
	Resets   handlers.ResetService
	JWT      handlers.TokenIssuer
	Verifier middlewares.TokenVerifier
	Ping     func() error
	Prom     *observability.Prom
	PromReg  *prometheus.Registry
	Redis    *redis.Client
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(otelgin.Middleware("petdor-identity"))
	r.Use(d.Prom.GinHandleMiddleware())

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.PromReg, promhttp.HandlerOpts{})))

	authHandler := handlers.NewAuthHandler(d.Accounts, d.Resets, d.JWT, d.Prom)
	authMw := middlewares.NewAuthMiddleware(d.Verifier)

	// brute-force protection on the unauthenticated endpoints; redis keeps
	// the counters shared across replicas, the in-memory limiter is the
	// single-node fallback
	window := time.Duration(d.Cfg.RateLimitWindowSec) * time.Second

	var limiter gin.HandlerFunc

	if d.Redis != nil {
		limiter = middlewares.NewRedisRateLimiter(d.Redis, d.Cfg.RateLimitRequests, window, d.Log).
			RateLimiterMiddleware(middlewares.KeyByIP)
	} else {
		limiter = middlewares.NewRateLimiter(d.Cfg.RateLimitRequests, window).
			RateLimiterMiddleware(middlewares.KeyByIP)
	}

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.RequireJSON())
	{
		authGroup.POST("/signup", limiter, authHandler.SignUp)
		authGroup.POST("/login", limiter, authHandler.Login)
		authGroup.POST("/password-reset", limiter, authHandler.RequestPasswordReset)
		authGroup.POST("/password-reset/confirm", limiter, authHandler.ConfirmPasswordReset)

		authGroup.POST("/password", authMw.RequireAuth(), authHandler.ChangePassword)
		authGroup.DELETE("/account", authMw.RequireAuth(), authHandler.DeactivateAccount)
	}

	me := r.Group("/me")
	me.Use(authMw.RequireAuth())
	{
		me.GET("", authHandler.Me)
		me.PATCH("", middlewares.RequireJSON(), authHandler.UpdateProfile)
	}

	admin := r.Group("/admin")
	admin.Use(authMw.RequireAuth(), authMw.RequireAdmin())
	{
		admin.POST("/users/:id/reactivate", authHandler.ReactivateAccount)
		admin.POST("/users/:id/admin", middlewares.RequireJSON(), authHandler.SetAdmin)
	}

	return r
}
