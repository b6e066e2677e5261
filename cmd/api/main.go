package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/estategate/internal/auth"
	"github.com/geocoder89/estategate/internal/cache"
	"github.com/geocoder89/estategate/internal/config"
	"github.com/geocoder89/estategate/internal/db"
	"github.com/geocoder89/estategate/internal/domain/user"
	httpx "github.com/geocoder89/estategate/internal/http"
	"github.com/geocoder89/estategate/internal/observability"
	"github.com/geocoder89/estategate/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	// Load the config set up
	cfg := config.Load()

	// start up the observability logger
	log := observability.NewLogger(cfg.Env)

	if cfg.OTELEnabled {
		shutdownTracer, err := observability.InitTracer(context.Background(), observability.TracingConfig{
			ServiceName: "estategate-api",
			Environment: cfg.Env,
			Endpoint:    cfg.OTELEndpoint,
			SampleRatio: cfg.OTELSampleRatio,
		})
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
		defer func() {
			ctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdownTracer(ctx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := observability.NewProm(reg)

	startCtx, cancelStart := config.WithTimeout(30 * time.Second)
	st, err := openStores(startCtx, cfg, prom, log)
	cancelStart()
	if err != nil {
		log.Error("store setup failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}
	defer st.close()

	seedCtx, cancelSeed := config.WithTimeout(5 * time.Second)
	if err := db.EnsureAdminUser(seedCtx, st.users, cfg, log); err != nil {
		log.Error("admin seed failed", "err", err)
	}
	cancelSeed()

	deliveries := observability.NewDeliveryMetrics(prom)
	mailer, err := buildNotifier(cfg, log, deliveries)
	if err != nil {
		log.Error("notifier setup failed", "driver", cfg.MailDriver, "err", err)
		os.Exit(1)
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL(), auth.WithClaimTTL(cfg.ClaimTTL()))

	accounts := service.NewAccounts(st.users, tokens, mailer, service.AccountsConfig{
		FrontendURL:    cfg.FrontendURL,
		MailFrom:       cfg.MailFrom,
		LoginAccessTTL: cfg.LoginAccessTTL(),
	},
		service.WithClaimLedger(st.ledger),
		service.WithUserCache(cache.New[user.User](cfg.UserCacheTTL())),
		service.WithAccountsLogger(log),
	)

	registry := service.NewRegistry(st.tokens,
		service.WithPassRecorder(prom),
		service.WithRegistryLogger(log),
	)

	// set up routers with the log
	router := httpx.NewRouter(httpx.Deps{
		Log:         log,
		Config:      cfg,
		Accounts:    accounts,
		Registry:    registry,
		Prom:        prom,
		Gatherer:    reg,
		ReadyChecks: st.checks,
		ReadyExtras: func() gin.H {
			return gin.H{
				"store":      cfg.StoreDriver,
				"mail":       cfg.MailDriver,
				"deliveries": deliveries.Snapshot(),
			}
		},
	})

	// server set up
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
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

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown failed", "err", err)
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}
