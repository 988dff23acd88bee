package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	httpadapter "query_router/adapter/in/http"
	"query_router/infra/middleware"
	"query_router/pkg/metrics"
)

const maxBodyBytes = 1 << 20

// NewAPI builds the fiber app on top of deps. The returned cleanup stops
// background middleware goroutines.
func NewAPI(deps *Dependencies) (*fiber.App, func()) {
	cfg := deps.Config
	ctx, cancel := context.WithCancel(context.Background())

	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: cfg.IsProduction(),
		StrictRouting:         false,
		CaseSensitive:         false,

		// go-json for request and response bodies
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,

		BodyLimit:    maxBodyBytes,
		ServerHeader: "",
	})

	// Global middleware stack (order matters)
	app.Use(middleware.RequestID(deps.IDs))
	app.Use(middleware.RequestLogger())
	app.Use(middleware.Recover())
	app.Use(middleware.SecurityHeaders())

	allowOrigins := strings.Join(cfg.AllowedOrigins, ",")
	if allowOrigins == "" || allowOrigins == "*" {
		if cfg.IsProduction() {
			allowOrigins = ""
		} else {
			allowOrigins = "http://localhost:3000"
		}
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowMethods:  "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-Request-ID",
		ExposeHeaders: "X-Request-ID,X-RateLimit-Limit,X-RateLimit-Remaining,X-RateLimit-Reset",
	}))

	health := httpadapter.NewHealthHandler().
		WithCheck("database", httpadapter.HealthCheckFunc(func(ctx context.Context) error {
			if err := deps.DB.PingContext(ctx); err != nil {
				return err
			}
			pool := metrics.AssessDBPoolHealth(metrics.GetDBPoolStats(deps.DB.DB))
			if pool.Status == metrics.PoolUnhealthy {
				return fmt.Errorf("connection pool exhausted: %s", pool.Message)
			}
			return nil
		}))
	if deps.Redis != nil {
		health.WithCheck("redis", httpadapter.HealthCheckFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		}))
	} else {
		health.WithCheck("redis", nil)
	}
	health.Register(app)

	rateLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimitPerMin, time.Minute)

	api := app.Group("/api/v1",
		middleware.JWTAuth(cfg.JWTSecret),
		rateLimiter.Handler(),
	)

	httpadapter.NewQueryHandler(deps.Router).Register(api)
	httpadapter.NewTicketHandler(deps.Tickets, deps.Router).Register(api)

	var queue httpadapter.AnalysisQueue
	if deps.Queue != nil {
		queue = deps.Queue
	}
	httpadapter.NewLearningHandler(deps.Learning, deps.Classifier, queue).Register(api)

	return app, cancel
}
