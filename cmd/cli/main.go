package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/cache"
	"github.com/rybaukrainy/portal/internal/config"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/storage"
)

func main() {
	addAdminCmd := flag.NewFlagSet("add-admin", flag.ExitOnError)
	email := addAdminCmd.String("email", "", "Email of the admin account")
	password := addAdminCmd.String("password", "", "Password for a new account")

	if len(os.Args) < 2 {
		fmt.Println("expected 'add-admin' subcommand")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add-admin":
		addAdminCmd.Parse(os.Args[2:])
		if *email == "" || *password == "" {
			fmt.Println("email and password are required")
			addAdminCmd.PrintDefaults()
			os.Exit(1)
		}
		addAdmin(*email, *password)
	default:
		fmt.Println("expected 'add-admin' subcommand")
		os.Exit(1)
	}
}

// addAdmin creates the account or promotes an existing one. An existing
// account keeps its password.
func addAdmin(email, password string) {
	cfg := config.Load()
	if err := logger.Init(logger.Config{Level: cfg.LogLevel, Output: "stderr", Pretty: true}); err != nil {
		panic(err)
	}
	log := logger.Get()
	ctx := context.Background()

	db, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()
	// The CLI may run before the server ever did
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	provider := auth.NewProvider(storage.NewProfileRepository(db), storage.NewMemberRepository(db))
	profile, err := provider.EnsureAdmin(ctx, email, password)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create admin")
	}

	// A running server would keep the cached member role until it expires
	roles, err := cache.New(cfg)
	if err != nil {
		log.Warn().Err(err).Msg("Role cache unavailable, the new role applies after the cache TTL")
	} else {
		if err := roles.InvalidateRole(ctx, profile.ID); err != nil {
			log.Warn().Err(err).Msg("Failed to invalidate cached role")
		}
		roles.Close()
	}

	fmt.Printf("Admin '%s' is ready.\n", profile.Email)
}
