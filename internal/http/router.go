package http

import (
	"log/slog"

	"github.com/geocoder89/estategate/internal/config"
	"github.com/geocoder89/estategate/internal/domain/user"
	"github.com/geocoder89/estategate/internal/http/handlers"
	"github.com/geocoder89/estategate/internal/http/middlewares"
	"github.com/geocoder89/estategate/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

// Accounts is everything the router needs from the credential store.
type Accounts interface {
	handlers.AccountService
	middlewares.Authenticator
}

type Deps struct {
	Log      *slog.Logger
	Config   config.Config
	Accounts Accounts
	Registry handlers.PassRegistry

	// optional
	Prom        *observability.Prom
	Gatherer    prometheus.Gatherer
	ReadyChecks []handlers.ReadyCheck
	ReadyExtras func() gin.H
}

func NewRouter(d Deps) *gin.Engine {
	if d.Config.Env != "dev" && gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	if d.Config.OTELEnabled {
		r.Use(otelgin.Middleware("estategate-api"))
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}

	// health
	h := handlers.NewHealthHandler(d.ReadyChecks, d.ReadyExtras)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Accounts, d.Log)
	authHandler := handlers.NewAuthHandler(d.Accounts, d.Log)
	passHandler := handlers.NewGatePassHandler(d.Registry, d.Log)

	api := r.Group("/api", middlewares.RequireJSON())

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/verify/:token", authHandler.Verify)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.GET("/me", authMW.RequireAuth(), authHandler.Me)

	passes := api.Group("/gate_pass", authMW.RequireAuth())
	issuers := authMW.RequireRole(user.RoleResident, user.RoleAdmin)

	passes.POST("/generate_gate_pass", issuers, passHandler.Generate)
	passes.GET("/validate_gate_pass/:token_id", authMW.RequireRole(user.RoleSecurity), passHandler.Validate)
	passes.POST("/generate_exit_gate_pass/:token_id", issuers, passHandler.GenerateExit)
	passes.GET("/active", issuers, passHandler.Active)

	return r
}
