package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/database"
	"github.com/paymirror/paymirror/internal/pkg/env"
	"github.com/paymirror/paymirror/internal/pkg/syncengine"
)

// clear-idempotency-keys removes keys past their TTL. Expiry is otherwise
// only derived at lookup time, so without this maintenance pass the table
// grows forever.
func main() {
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	env.SetupEnvFile()
	applog.Setup()
	database.SetupDatabase()

	store := syncengine.NewGormStore(database.GetDB(), syncengine.DefaultSchemas())
	guard := syncengine.NewGuard(store)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	n, err := guard.ClearExpired(ctx)
	if err != nil {
		log.Fatalf("clearing expired idempotency keys: %v", err)
	}
	log.Printf("deleted %d expired idempotency keys", n)
}
