// handlers/app.go
package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"watch-reward-system/config"
	"watch-reward-system/middleware"
	"watch-reward-system/services"
)

// AppDeps is everything the HTTP layer needs.
type AppDeps struct {
	Config  config.Config
	Ledger  *services.LedgerService
	Catalog *services.CatalogService
	Stream  *services.BalanceStream
	Auth    middleware.TokenValidator // optional; enables query-token SSE auth
}

// NewApp builds the fiber app with public health endpoints, gateway auth and the watch routes.
func NewApp(deps AppDeps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "watchd",
		BodyLimit: 64 * 1024,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(deps.Config.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-Device-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health and metrics stay outside gateway auth.
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 🔐❗ GLOBAL: only Gateway requests past this point
	app.Use(middleware.GatewayAuthMiddleware(deps.Config.ServiceToken))

	SetupWatchRoutes(app, NewWatchHandler(deps.Ledger, deps.Catalog), deps.Stream, deps.Auth)
	return app
}
