package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/paymirror/paymirror/app/controllers"
	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/cache"
	"github.com/paymirror/paymirror/internal/pkg/database"
	"github.com/paymirror/paymirror/internal/pkg/env"
	"github.com/paymirror/paymirror/internal/pkg/remote"
	"github.com/paymirror/paymirror/internal/pkg/router"
	"github.com/paymirror/paymirror/internal/pkg/syncengine"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	applog.Setup()
	database.SetupDatabase()
	cache.SetupCache()

	schemas := syncengine.DefaultSchemas()
	store := syncengine.NewGormStore(database.GetDB(), schemas)
	client := remote.NewClientFromEnv()
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{
		DefaultAPIKey:    env.GetEnv("REMOTE_SECRET_KEY", ""),
		DefaultAccountID: env.GetEnv("REMOTE_DEFAULT_ACCOUNT_ID", ""),
		UseSharedCache:   cache.IsAvailable(),
	})
	sync := syncengine.NewSynchronizer(store, client, schemas, resolver)

	registry := syncengine.NewRegistry()
	syncengine.RegisterDefaultHandlers(registry)
	processor := syncengine.NewProcessor(store, sync, resolver, registry)

	app := fiber.New(fiber.Config{
		BodyLimit: 1 << 20,
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app,
		router.NewWebhookRouter(controllers.NewWebhookController(store, processor)),
		router.NewMetricsRouter(),
	)

	return app
}
