package main

import (
	"flag"
	"log"

	"github.com/google/uuid"
	"github.com/paymirror/paymirror/app/models"
	"github.com/paymirror/paymirror/internal/pkg/database"
	"github.com/paymirror/paymirror/internal/pkg/env"
)

// create-endpoint registers a webhook endpoint mount and prints the opaque
// path token the sender must be configured with.
func main() {
	id := flag.String("id", "", "remote endpoint ID (we_...)")
	secret := flag.String("secret", "", "endpoint signing secret (whsec_...)")
	tolerance := flag.Uint("tolerance", models.DefaultWebhookTolerance, "allowed clock skew in seconds")
	validation := flag.String("validation", models.WebhookValidationHeader, "validation method: HEADER or NONE")
	flag.Parse()

	if *id == "" || (*secret == "" && *validation != models.WebhookValidationNone) {
		log.Fatal("both -id and -secret are required (secret may be omitted with -validation NONE)")
	}

	env.SetupEnvFile()
	database.SetupDatabase()

	endpoint := &models.WebhookEndpoint{
		ID:               *id,
		UUID:             uuid.NewString(),
		Secret:           *secret,
		Tolerance:        *tolerance,
		ValidationMethod: *validation,
		Status:           "enabled",
	}
	if err := endpoint.Validate(); err != nil {
		log.Fatalf("invalid endpoint: %v", err)
	}
	if err := database.GetDB().Create(endpoint).Error; err != nil {
		log.Fatalf("could not create endpoint: %v", err)
	}

	log.Printf("endpoint %s created", endpoint.ID)
	log.Printf("webhook path: /stripe/webhook/%s", endpoint.UUID)
}
