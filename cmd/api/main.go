package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/aituber/backend/internal/config"
	"github.com/zhouzirui/aituber/backend/internal/handler"
	"github.com/zhouzirui/aituber/backend/internal/ingest"
	"github.com/zhouzirui/aituber/backend/internal/logging"
	"github.com/zhouzirui/aituber/backend/internal/model/persona"
	"github.com/zhouzirui/aituber/backend/internal/service/broadcast"
	"github.com/zhouzirui/aituber/backend/internal/service/pipeline"
	"github.com/zhouzirui/aituber/backend/internal/store"
	"github.com/zhouzirui/aituber/backend/internal/telemetry"
)

const serviceVersion = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Setup(cfg.Log)
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file, using system environment only")
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Telemetry.OTLPEndpoint, "aituber", serviceVersion)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
		shutdownTracing = func() {}
	}
	defer shutdownTracing()

	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	defer st.Close()
	log.Info().Str("driver", cfg.Store.Driver).Msg("store ready")

	personaStore := persona.NewMemoryStore(persona.Seed())
	active, ok := persona.Resolve(personaStore, cfg.Stream.PersonaID)
	if !ok {
		log.Fatal().Str("persona", cfg.Stream.PersonaID).Msg("no persona available")
	}

	// Initialize the comment pipeline
	var proc pipeline.Processor
	orch, err := pipeline.NewFromConfig(ctx, cfg.AI, st, active, cfg.Stream.DefaultTitle)
	switch {
	case err == nil:
		proc = orch
		log.Info().Str("provider", cfg.AI.Provider).Str("persona", active.ID).Msg("comment pipeline ready")
	case errors.Is(err, pipeline.ErrGenerationDisabled):
		log.Warn().Str("provider", cfg.AI.Provider).Msg("AI credentials not configured, comment routes disabled")
	default:
		log.Warn().Err(err).Msg("failed to initialize text generation, comment routes disabled")
	}

	hub := broadcast.NewHub(broadcast.DefaultBuffer)
	defer hub.Close()

	if cfg.Twitch.Enabled() && proc != nil {
		go runTwitch(ctx, cfg, st, proc, hub)
	}

	router := handler.NewRouter(handler.Dependencies{
		Store:          st,
		Personas:       personaStore,
		ActivePersona:  active.ID,
		DefaultTitle:   cfg.Stream.DefaultTitle,
		Pipeline:       proc,
		Hub:            hub,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	startServer(ctx, cfg.Server, router, hub)
}

func runTwitch(ctx context.Context, cfg *config.Config, st store.Store, proc pipeline.Processor, hub *broadcast.Hub) {
	session, err := st.GetOrCreateSession(ctx, cfg.Twitch.SessionID, cfg.Stream.DefaultTitle)
	if err != nil {
		log.Error().Err(err).Msg("failed to open twitch session")
		return
	}
	listener := ingest.NewTwitchListener(cfg.Twitch, session.ID, proc, hub)
	if err := listener.Run(ctx); err != nil {
		log.Error().Err(err).Str("channel", cfg.Twitch.Channel).Msg("twitch listener stopped")
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, hub *broadcast.Hub) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Hijacked websocket connections are not tracked by Shutdown.
	srv.RegisterOnShutdown(hub.Close)

	log.Info().Str("addr", addr).Msg("aituber backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
