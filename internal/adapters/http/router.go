package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/baenkli/internal/pkg/metrics"
)

const (
	// APIVersion is sent in X-API-Version and matches api/openapi.yaml.
	APIVersion = "1.0.0"

	requestTimeout = 15 * time.Second
	// photo uploads to the bucket take longer than reads
	mutationTimeout = 60 * time.Second
)

// SetupRoutes registers the bench REST API, GraphQL, docs and the board WebSocket.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))
	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())
	app.Use(rateLimit(120))
	app.Use(securityHeaders)
	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// No timeout on health checks; ReadyHandler bounds its own pings.
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	v1 := app.Group("/v1")
	v1.Get("/benches", withTimeout(ListBenchesHandler(deps), requestTimeout))
	v1.Get("/benches/nearby", withTimeout(NearbyBenchesHandler(deps), requestTimeout))
	v1.Get("/benches/:id", withTimeout(GetBenchHandler(deps), requestTimeout))

	// Writes carry photos and get a tighter per-IP budget.
	writes := rateLimit(20)
	v1.Post("/benches", writes, withTimeout(CreateBenchHandler(deps), mutationTimeout))
	v1.Put("/benches/:id", writes, withTimeout(UpdateBenchHandler(deps), mutationTimeout))
	v1.Delete("/benches/:id", writes, withTimeout(DeleteBenchHandler(deps), requestTimeout))

	app.Post("/graphql", withTimeout(GraphQLHandler(deps), requestTimeout))

	SetupDocs(app)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps)))
}

func withTimeout(h fiber.Handler, d time.Duration) fiber.Handler {
	return timeout.NewWithContext(h, d)
}

// rateLimit allows max requests per minute per client IP.
func rateLimit(max int) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	})
}

func securityHeaders(c *fiber.Ctx) error {
	c.Set("X-Content-Type-Options", "nosniff")
	c.Set("X-Frame-Options", "DENY")
	c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Set("X-API-Version", APIVersion)
	return c.Next()
}
