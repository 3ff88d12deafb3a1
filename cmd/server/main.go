package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mavprep/voice/internal/adapters/auth"
	router "github.com/mavprep/voice/internal/adapters/http"
	sig "github.com/mavprep/voice/internal/adapters/signal"
	"github.com/mavprep/voice/internal/app"
	"github.com/mavprep/voice/internal/app/orch"
	"github.com/mavprep/voice/internal/config"
	"github.com/mavprep/voice/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("voice server failed")
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.LoadWatched(func(next *config.Config) {
		config.ApplyLogLevel(next.LogLevel)
	})
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	config.ApplyLogLevel(cfg.LogLevel)

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	action, err := app.ParseBackpressureAction(cfg.Rooms.Backpressure)
	if err != nil {
		return err
	}
	policy := app.ChannelPolicy{
		Channels:          st,
		DefaultMaxMembers: cfg.Rooms.MaxMembers,
		Action:            action,
	}

	o := orch.New(app.NewRegistry(), app.NewRoomTable(), policy, orch.Options{
		JoinTimeout:    cfg.Rooms.JoinTimeout,
		CleanupRetries: cfg.Rooms.CleanupRetries,
		CleanupBackoff: cfg.Rooms.CleanupBackoff,
		TombstoneTTL:   cfg.Rooms.TombstoneTTL,
		SweepWorkers:   cfg.Rooms.SweepWorkers,
	})

	var verifier *auth.Verifier
	if cfg.Auth.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.Auth.JWTSecret)
	}
	ctl := sig.NewSignalWSController(o,
		sig.NewRateLimiter(cfg.Signal.RateLimit, cfg.Signal.RateInterval),
		sig.Options{
			ReadLimit:  cfg.ReadLimit,
			PingPeriod: cfg.PingPeriod,
			PongWait:   cfg.PongWait,
			WriteWait:  cfg.WriteWait,
			SendBuffer: cfg.SendBuffer,
		})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Orch:     o,
		Store:    st,
		Verifier: verifier,
		Signal:   ctl,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("store", cfg.Store.Driver).Msg("Voice server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return o.RunSweeper(gctx, cfg.Rooms.ReconcileInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("Server exited gracefully")
	return err
}
