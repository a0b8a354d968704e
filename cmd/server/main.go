package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reberkhan12-ai/live-azan/internal/adapters/directory"
	"github.com/reberkhan12-ai/live-azan/internal/adapters/verifier"
	"github.com/reberkhan12-ai/live-azan/internal/adapters/ws"
	"github.com/reberkhan12-ai/live-azan/internal/auth"
	"github.com/reberkhan12-ai/live-azan/internal/config"
	"github.com/reberkhan12-ai/live-azan/internal/hub"
	transport "github.com/reberkhan12-ai/live-azan/internal/transport/http"
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
		log.Error().Err(err).Msg("failed to load config")
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	dir := directory.NewRedis(rdb)
	verif := verifier.NewFirebase(cfg.FirebaseAPIKey)
	gate := auth.NewGate(verif, cfg.Secret)

	reg := prometheus.NewRegistry()
	h := hub.New(dir, hub.Options{
		PresenceDelay: cfg.PresenceDelay,
		QueueCapacity: cfg.QueueCapacity,
		DrainBatch:    cfg.DrainBatch,
	}, reg)

	monitor := hub.NewLivenessMonitor(h, cfg.PingInterval)
	go monitor.Run(ctx)

	ctl := ws.NewController(h, gate, cfg.ReadLimit, cfg.SendBuffer)

	r := transport.SetupRouter(ctx, cfg, h, verif, ctl, reg)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("live-azan hub started")
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
	if err := rdb.Close(); err != nil {
		log.Error().Err(err).Msg("redis close")
	}
	log.Info().Msg("Server exited gracefully")
}
