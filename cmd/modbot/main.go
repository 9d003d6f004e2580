// Command modbot runs the chat moderation bot: Telegram long polling, the
// warning decay job and, when enabled, the ops HTTP server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-modbot/internal/cache"
	"github.com/tbourn/go-modbot/internal/config"
	"github.com/tbourn/go-modbot/internal/game"
	httpapi "github.com/tbourn/go-modbot/internal/http"
	"github.com/tbourn/go-modbot/internal/http/handlers"
	"github.com/tbourn/go-modbot/internal/observability"
	"github.com/tbourn/go-modbot/internal/repo"
	"github.com/tbourn/go-modbot/internal/services"
	"github.com/tbourn/go-modbot/internal/sysutil"
	"github.com/tbourn/go-modbot/internal/transport/telegram"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// sweepInterval is how often the in-memory stores drop expired entries.
const sweepInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	cfg := config.MustLoad()
	logCloser := sysutil.SetupLogger(cfg.Log)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("modbot stopped with error")
		stop()
		logCloser.Close()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenDB(cfg.DB)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	mod := cfg.Moderation
	flood := cache.NewFloodStore(cache.FloodConfig{
		Mode:     mod.SpamMode,
		Limit:    mod.SpamLimit,
		Window:   mod.SpamWindow,
		EntryTTL: mod.SpamEntryTTL,
		WarnTTL:  mod.WarnCacheTTL,
	}, nil, sweepInterval)
	defer flood.Close()
	throttle := cache.NewThrottleStore(nil, sweepInterval)
	defer throttle.Close()
	ledger := cache.NewProcessedStore(mod.ProcessedRetention, nil, sweepInterval)
	defer ledger.Close()
	settingsCache := cache.NewSettingsCache(mod.SettingsCacheSliding, nil, sweepInterval)
	defer settingsCache.Close()

	words, err := game.LoadWords(cfg.Games.CrocodileWordsPath)
	if err != nil {
		return err
	}
	croc, err := game.NewCrocodile(game.CrocodileConfig{
		Timeout:            cfg.Games.CrocodileTimeout,
		ResetTimerOnChange: cfg.Games.CrocodileResetOnChange,
	}, words)
	if err != nil {
		return err
	}
	defer croc.StopAll()
	rolls := game.NewRollStore(game.RollConfig{
		DefaultDuration: cfg.Games.RollDefaultDuration,
		MaxDuration:     cfg.Games.RollMaxDuration,
	})
	defer rolls.StopAll()

	tg, err := telegram.New(telegram.Config{Token: cfg.BotToken, PollTimeout: cfg.PollTimeout})
	if err != nil {
		return err
	}
	me, err := tg.Me(ctx)
	if err != nil {
		return err
	}

	settings := &services.SettingsService{DB: db, Repo: services.RepoShim{}, Cache: settingsCache}
	warnings := &services.WarningService{DB: db, Repo: services.RepoShim{}, Flood: flood, Window: mod.WarnDecayWindow}
	h := &services.Handlers{
		Client:     tg,
		Settings:   settings,
		Warnings:   warnings,
		DB:         db,
		Stats:      services.RepoShim{},
		Flood:      flood,
		Throttle:   throttle,
		Ledger:     ledger,
		Croc:       croc,
		Rolls:      rolls,
		Moderation: mod,
		Owners:     cfg.OwnerIDs,
		Username:   me.Username,
	}
	h.RegisterHooks(ctx)
	dispatcher := services.NewDispatcher(h.Routes()...)

	log.Info().
		Str("version", version).
		Str("username", me.Username).
		Strs("routes", dispatcher.Names()).
		Msg("modbot starting")

	go warnings.Run(ctx, mod.WarnCleanupInterval)

	if cfg.Ops.Enabled {
		srv, closeRoutes := opsServer(cfg, handlers.New(settings, croc, rolls, h))
		defer closeRoutes()
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("ops server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("ops server failed")
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				log.Warn().Err(err).Msg("ops server shutdown")
			}
		}()
	}

	// Blocks until ctx is cancelled by a signal.
	tg.Run(ctx, dispatcher.Dispatch)
	log.Info().Msg("shutting down")
	return nil
}

func opsServer(cfg config.Config, h *handlers.Handlers) (*http.Server, func()) {
	gin.SetMode(cfg.Ops.GinMode)
	r := gin.New()
	closeRoutes := httpapi.RegisterRoutes(r, h, cfg)

	return &http.Server{
		Addr:              ":" + cfg.Ops.Port,
		Handler:           r,
		ReadTimeout:       cfg.Ops.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Ops.WriteTimeout,
		IdleTimeout:       cfg.Ops.IdleTimeout,
	}, closeRoutes
}
