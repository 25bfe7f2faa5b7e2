package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/avele/studyroom/internal/adapters/http"
	"github.com/avele/studyroom/internal/app"
	"github.com/avele/studyroom/internal/channel"
	"github.com/avele/studyroom/internal/config"
	"github.com/avele/studyroom/internal/quiz"
	"github.com/avele/studyroom/internal/room"
	"github.com/avele/studyroom/internal/session"
	"github.com/avele/studyroom/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var st store.Store
	if cfg.PostgresDSN != "" {
		pg, err := store.NewPgStore(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect postgres")
		}
		defer pg.Close()
		st = pg
	} else {
		st = store.NewMemStore()
	}

	broker := channel.New(ctx, st, cfg.RefreshInterval)
	orch := &app.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    room.NewManager(st, broker),
		Channels: broker,
		Quiz:     quiz.NewCoordinator(st, broker),
		Sessions: session.NewTracker(),
	}

	r := router.SetupRouter(ctx, cfg, orch)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("StudyRoom server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
