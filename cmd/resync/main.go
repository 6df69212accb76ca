package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/database"
	"github.com/paymirror/paymirror/internal/pkg/env"
	"github.com/paymirror/paymirror/internal/pkg/remote"
	"github.com/paymirror/paymirror/internal/pkg/syncengine"
)

// resync re-lists remote objects and writes every one through the regular
// synchronizer, repairing a mirror that drifted from missed webhooks.
func main() {
	types := flag.String("types", "all", "comma-separated entity types to resync, or 'all'")
	timeout := flag.Duration("timeout", 30*time.Minute, "overall timeout")
	flag.Parse()

	env.SetupEnvFile()
	applog.Setup()
	database.SetupDatabase()

	schemas := syncengine.DefaultSchemas()
	store := syncengine.NewGormStore(database.GetDB(), schemas)
	client := remote.NewClientFromEnv()
	resolver := syncengine.NewAccountResolver(store, client, syncengine.ResolverConfig{
		DefaultAPIKey:    env.GetEnv("REMOTE_SECRET_KEY", ""),
		DefaultAccountID: env.GetEnv("REMOTE_DEFAULT_ACCOUNT_ID", ""),
	})
	sync := syncengine.NewSynchronizer(store, client, schemas, resolver)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var selected []string
	if *types == "all" {
		selected = schemas.EntityTypes()
	} else {
		for _, t := range strings.Split(*types, ",") {
			selected = append(selected, strings.TrimSpace(t))
		}
	}

	for _, entityType := range selected {
		n, err := sync.ResyncAll(ctx, entityType, "")
		if err != nil {
			log.Fatalf("resync %s failed after %d objects: %v", entityType, n, err)
		}
		log.Printf("resynced %d %s objects", n, entityType)
	}
}
