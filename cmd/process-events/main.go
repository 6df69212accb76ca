package main

import (
	"context"
	"flag"
	"log"
	"path"
	"strings"
	"time"

	"github.com/paymirror/paymirror/internal/pkg/applog"
	"github.com/paymirror/paymirror/internal/pkg/database"
	"github.com/paymirror/paymirror/internal/pkg/env"
	"github.com/paymirror/paymirror/internal/pkg/remote"
	"github.com/paymirror/paymirror/internal/pkg/syncengine"
)

// process-events replays events through the processor: either specific
// remote event IDs, the recent remote event window filtered by a type
// pattern, or locally stored triggers that validated but never processed.
func main() {
	ids := flag.String("ids", "", "comma-separated remote event IDs to fetch and process")
	typeGlob := flag.String("type", "", "event type pattern for the remote event window, e.g. 'customer.*'")
	failed := flag.Bool("failed", false, "reprocess stored triggers that are valid but unprocessed")
	timeout := flag.Duration("timeout", 10*time.Minute, "overall timeout")
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
	registry := syncengine.NewRegistry()
	syncengine.RegisterDefaultHandlers(registry)
	processor := syncengine.NewProcessor(store, sync, resolver, registry)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *failed:
		processFailedTriggers(ctx, store, processor)
	case *ids != "":
		for _, id := range strings.Split(*ids, ",") {
			processRemoteEvent(ctx, client, processor, strings.TrimSpace(id))
		}
	default:
		processRemoteWindow(ctx, client, processor, *typeGlob)
	}
}

func processRemoteEvent(ctx context.Context, client remote.Client, processor *syncengine.Processor, id string) {
	payload, err := client.GetObject(ctx, "event", id, remote.CallOptions{})
	if err != nil {
		log.Printf("event %s: fetch failed: %v", id, err)
		return
	}
	if _, ran, err := processor.ProcessPayload(ctx, payload); err != nil {
		log.Printf("event %s: processing failed: %v", id, err)
	} else if !ran {
		log.Printf("event %s: already processed", id)
	} else {
		log.Printf("event %s: processed", id)
	}
}

func processRemoteWindow(ctx context.Context, client remote.Client, processor *syncengine.Processor, typeGlob string) {
	events, err := client.ListObjects(ctx, "event", remote.CallOptions{})
	if err != nil {
		log.Fatalf("listing remote events failed: %v", err)
	}
	for _, payload := range events {
		eventType, _ := payload["type"].(string)
		if typeGlob != "" {
			if ok, _ := path.Match(typeGlob, eventType); !ok {
				continue
			}
		}
		id, _ := payload["id"].(string)
		if _, ran, err := processor.ProcessPayload(ctx, payload); err != nil {
			log.Printf("event %s: processing failed: %v", id, err)
		} else if ran {
			log.Printf("event %s (%s): processed", id, eventType)
		}
	}
}

func processFailedTriggers(ctx context.Context, store syncengine.Store, processor *syncengine.Processor) {
	triggers, err := store.ListFailedTriggers(ctx)
	if err != nil {
		log.Fatalf("listing failed triggers: %v", err)
	}
	log.Printf("found %d valid unprocessed triggers", len(triggers))

	for i := range triggers {
		trigger := triggers[i]
		payload, err := syncengine.ParsePayload([]byte(trigger.Body))
		if err != nil {
			log.Printf("trigger %s: unparseable body: %v", trigger.ID, err)
			continue
		}
		event, _, err := processor.ProcessPayload(ctx, payload)
		if err != nil {
			log.Printf("trigger %s: processing failed: %v", trigger.ID, err)
			continue
		}
		trigger.Processed = true
		trigger.EventID = &event.ID
		trigger.Exception = ""
		if err := store.UpdateTrigger(ctx, &trigger); err != nil {
			log.Printf("trigger %s: could not mark processed: %v", trigger.ID, err)
			continue
		}
		log.Printf("trigger %s: processed as event %s", trigger.ID, event.ID)
	}
}
