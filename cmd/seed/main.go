package main

// Seed demo subscriptions into the configured backend:
//   go run ./cmd/seed

import (
	"context"
	"log"
	"os"
	"strings"

	"costopt-backend/internal/bootstrap"
	"costopt-backend/internal/mockdata"
	"costopt-backend/internal/shared/config"
)

func main() {
	cfg := config.Load()
	// Build wires repos against Postgres when DATABASE_URL is set; seeding a
	// memory backend from a CLI would be pointless.
	cfg.SeedDemoData = false

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	if app.DB == nil {
		log.Printf("DATABASE_URL not set or unreachable; nothing to seed")
		os.Exit(1)
	}

	userID := strings.TrimSpace(os.Getenv("SEED_USER_ID"))
	if userID == "" {
		userID = mockdata.DemoUserID
	}

	if err := mockdata.Seed(context.Background(), app.SubscriptionsService, userID); err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("seeded demo subscriptions for %s", userID)
}
