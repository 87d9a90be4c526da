package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/spendtrack/spendtrack/internal/auth"
	"github.com/spendtrack/spendtrack/internal/cache"
	"github.com/spendtrack/spendtrack/internal/config"
	"github.com/spendtrack/spendtrack/internal/http/handlers"
	"github.com/spendtrack/spendtrack/internal/http/middlewares"
	"github.com/spendtrack/spendtrack/internal/observability"
	"github.com/spendtrack/spendtrack/internal/repo/postgres"
)

const maxRequestBody = 1 << 20 // 1 MiB, plenty for any expense payload

func NewRouter(log *slog.Logger, pool *pgxpool.Pool, listCache *cache.ListCache, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// own registry so building a second router (tests) never double-registers
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	// middleware, outermost first

	r.Use(recovery(log))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(maxRequestBody))
	r.Use(middlewares.RequireJSON())

	if cfg.OTLPEndpoint != "" {
		r.Use(otelgin.Middleware("spendtrack"))
	}

	r.Use(prom.GinHandleMiddleware())

	// wire up repositories and managers

	jwtManager := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	googleVerifier := auth.NewGoogleVerifier(cfg.GoogleClientID)

	usersRepo := postgres.NewUsersRepo(pool, prom)
	expensesRepo := postgres.NewExpensesRepo(pool, prom)

	authHandler := handlers.NewAuthHandler(usersRepo, jwtManager, googleVerifier)
	expensesHandler := handlers.NewExpensesHandler(expensesRepo, listCache)
	authMW := middlewares.NewAuthMiddleware(jwtManager)

	ping := func() error {
		if pool == nil {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		return pool.Ping(ctx)
	}

	healthHandler := handlers.NewHealthHandler(ping)

	// operational endpoints
	r.GET("/health", healthHandler.Health)
	r.GET("/readyz", healthHandler.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// open auth endpoints
	r.POST("/register", authHandler.Register)
	r.POST("/signup", authHandler.SignUp)
	r.POST("/login", authHandler.Login)
	r.POST("/auth/google", authHandler.GoogleAuth)
	r.POST("/verify-email", authHandler.VerifyEmail)

	// everything behind the bearer token
	protected := r.Group("", authMW.RequireAuth())
	protected.GET("/verify-token", authHandler.VerifyToken)
	protected.GET("/expenses", expensesHandler.List)
	protected.POST("/expenses", expensesHandler.Create)
	protected.DELETE("/expenses/:id", expensesHandler.Delete)

	return r
}

// recovery is the catch-all for panics anywhere in the pipeline: log the
// detail internally, answer with the generic 500 envelope.
func recovery(log *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		log.Error("panic recovered", "err", err, "path", c.Request.URL.Path)

		handlers.RespondInternal(c, "Something went wrong")
		c.Abort()
	})
}
