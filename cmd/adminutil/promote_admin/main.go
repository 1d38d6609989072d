package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"github.com/sudo-init-do/tradeexchange/internal/config"
	"github.com/sudo-init-do/tradeexchange/internal/db"
	"github.com/sudo-init-do/tradeexchange/internal/logging"
	"github.com/sudo-init-do/tradeexchange/internal/store"
	"github.com/sudo-init-do/tradeexchange/internal/store/postgres"
)

func main() {
	email := flag.String("email", "", "Email of the user to promote to admin")
	flag.Parse()

	if *email == "" {
		log.Fatalf("usage: go run ./cmd/adminutil/promote_admin -email user@example.com")
	}

	_ = godotenv.Load()
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatalf("DATABASE_URL (or DB_HOST/DB_USER/DB_NAME) must be set")
	}

	ctx := context.Background()
	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	logger := logging.New(cfg.Logging)
	if err := db.EnsureSchema(ctx, pool, logger); err != nil {
		log.Fatalf("schema: %v", err)
	}

	st := postgres.New(pool, true, logger)
	u, err := st.GetUserByEmail(ctx, *email)
	if err != nil {
		log.Fatalf("no user found with email %s: %v", *email, err)
	}
	u.Role = store.RoleAdmin
	if err := st.UpdateUser(ctx, u); err != nil {
		log.Fatalf("failed to promote user to admin: %v", err)
	}

	fmt.Printf("User %s promoted to admin.\n", u.Email)
}
