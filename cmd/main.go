package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rybaukrainy/portal/internal/analytics"
	"github.com/rybaukrainy/portal/internal/api"
	"github.com/rybaukrainy/portal/internal/auth"
	"github.com/rybaukrainy/portal/internal/cache"
	"github.com/rybaukrainy/portal/internal/config"
	"github.com/rybaukrainy/portal/internal/draft"
	"github.com/rybaukrainy/portal/internal/editor"
	"github.com/rybaukrainy/portal/internal/ingest"
	"github.com/rybaukrainy/portal/internal/logger"
	"github.com/rybaukrainy/portal/internal/metrics"
	"github.com/rybaukrainy/portal/internal/objectstore"
	"github.com/rybaukrainy/portal/internal/register"
	"github.com/rybaukrainy/portal/internal/storage"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	output := "stdout"
	if cfg.LogFile != "" {
		output = cfg.LogFile
	}
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: output,
		Pretty: cfg.LogPretty,
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Str("env", cfg.Env).Msg("Starting application...")

	ctx := context.Background()

	db, err := storage.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database")
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	roles, err := cache.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize role cache")
	}
	defer func() {
		log.Info().Msg("Closing role cache...")
		if err := roles.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing role cache")
		}
	}()

	profiles := storage.NewProfileRepository(db)
	members := storage.NewMemberRepository(db)
	payments := storage.NewPaymentRepository(db)

	provider := auth.NewProvider(profiles, members)
	gate := auth.NewGate(profiles, roles, cfg.RoleCacheTTL)
	stopWatch := gate.Watch(provider)
	defer stopWatch()

	if cfg.AdminEmail != "" {
		if _, err := provider.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure admin account")
		}
	}

	m := metrics.New()

	articles, err := register.NewArticleRegister(storage.NewArticleRepository(db), m)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load sample articles")
	}

	images, err := objectstore.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize image storage")
	}
	if err := images.EnsureBucket(ctx); err != nil {
		// Uploads report their own failure; the rest of the portal works.
		log.Error().Err(err).Msg("Image storage is not ready")
	}
	uploader := ingest.NewUploader(gate, images, cfg, m)

	scratch, err := draft.OpenBuffer(cfg.ScratchPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open draft buffer")
	}
	defer func() {
		if err := scratch.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing draft buffer")
		}
	}()
	sessions := editor.NewRegistry(articles, scratch, uploader, cfg.AutosaveInterval, m)

	app := api.NewApp(api.NewHandlers(api.Deps{
		Config:    cfg,
		Provider:  provider,
		Gate:      gate,
		Sessions:  auth.NewSessions(cfg),
		Articles:  articles,
		Members:   register.NewMemberRegister(members),
		Payments:  register.NewPaymentRegister(payments, members),
		Analytics: analytics.NewService(members, payments),
		Editor:    sessions,
		Uploader:  uploader,
		Metrics:   m,
	}))

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Open editors flush to the scratch buffer before it closes
	sessions.Shutdown()

	log.Info().Msg("Server exited properly")
}
