package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/petdor/identity/internal/accounts"
	"github.com/petdor/identity/internal/auth"
	"github.com/petdor/identity/internal/clock"
	"github.com/petdor/identity/internal/config"
	"github.com/petdor/identity/internal/db"
	httpx "github.com/petdor/identity/internal/http"
	"github.com/petdor/identity/internal/notifications"
	"github.com/petdor/identity/internal/observability"
	"github.com/petdor/identity/internal/redisclient"
	"github.com/petdor/identity/internal/repo/postgres"
	"github.com/petdor/identity/internal/reset"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// .env is a dev convenience; in prod the environment is the config
	_ = godotenv.Load()

	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if cfg.JWTSecret == "" {
		log.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	// tracing is optional; without an endpoint we just don't export
	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "petdor-identity", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}

		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()

			if err := shutdownTracer(ctx); err != nil {
				log.Error("tracer shutdown failed", "err", err)
			}
		}()
	}

	pool, err := db.NewPool(cfg.DBURL)

	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	migrateCtx, cancelMigrate := config.WithTimeout(30 * time.Second)
	err = db.RunMigrations(migrateCtx, cfg.DBURL)
	cancelMigrate()

	if err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		seedCtx, cancelSeed := config.WithTimeout(10 * time.Second)
		err = db.EnsureAdminUser(seedCtx, pool, cfg)
		cancelSeed()

		if err != nil {
			log.Error("admin seed failed", "err", err)
			os.Exit(1)
		}
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(promReg)

	// mail: real SMTP behind a circuit breaker when configured, otherwise
	// log-only so dev environments work out of the box
	var notifier notifications.Notifier

	if cfg.SMTPHost != "" {
		notifier = notifications.NewProtectedNotifier(
			notifications.NewSMTPNotifier(notifications.SMTPConfig{
				Host:     cfg.SMTPHost,
				Port:     cfg.SMTPPort,
				User:     cfg.SMTPUser,
				Password: cfg.SMTPPassword,
				From:     cfg.SMTPFrom,
				AppURL:   cfg.AppURL,
			}),
			notifications.ProtectedNotifierConfig{
				Timeout:          3 * time.Second,
				FailureThreshold: 3,
				Cooldown:         15 * time.Second,
				HalfOpenMaxCalls: 1,
			},
		)
	} else {
		log.Warn("SMTP not configured, emails go to the log only")
		notifier = notifications.NewLogNotifier()
	}

	usersRepo := postgres.NewUsersRepo(pool, prom)
	tokensRepo := postgres.NewResetTokensRepo(pool, prom)

	clk := clock.NewSystem()

	accountsSvc := accounts.NewService(usersRepo, clk, notifier, log, cfg.PasswordMinLength)
	resetSvc := reset.NewService(usersRepo, tokensRepo, clk, notifier, log, cfg.ResetTokenTTL(), cfg.ResetMaxPerDay, cfg.PasswordMinLength)

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL())

	var rds *redisclient.Client

	if cfg.RedisAddr != "" {
		rds = redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancelPing := config.WithTimeout(2 * time.Second)
		err = rds.Ping(pingCtx)
		cancelPing()

		if err != nil {
			// the limiter fails open anyway, but a bad addr is worth knowing
			log.Warn("redis unreachable, falling back to in-memory rate limiting", "err", err)
			rds = nil
		} else {
			defer rds.Close()
		}
	}

	ping := func() error {
		ctx, cancel := config.WithTimeout(1 * time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	deps := httpx.Deps{
		Log:      log,
		Cfg:      cfg,
		Accounts: accountsSvc,
		Resets:   resetSvc,
		JWT:      jwtManager,
		Verifier: jwtManager,
		Ping:     ping,
		Prom:     prom,
		PromReg:  promReg,
	}

	if rds != nil {
		deps.Redis = rds.Raw()
	}

	router := httpx.NewRouter(deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
