package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsRouter exposes the Prometheus scrape endpoint plus a liveness
// probe.
type MetricsRouter struct {
}

func NewMetricsRouter() *MetricsRouter {
	return &MetricsRouter{}
}

func (r MetricsRouter) InstallRouter(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics/prometheus", adaptor.HTTPHandler(promhttp.Handler()))
}
