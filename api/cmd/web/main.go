package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sound-predict/api/internal/config"
	"sound-predict/api/internal/httpserver"
	"sound-predict/api/internal/inference"
	"sound-predict/api/internal/logging"
	"sound-predict/api/internal/predict"
	"sound-predict/api/internal/web"
)

func main() {
	cfg := config.Load()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	client := inference.New(cfg.InferenceURL, cfg.InferenceTimeout)
	sessions := predict.NewSessions(client, cfg.SessionTTL, logger)

	srv, err := web.New(sessions, web.Options{
		Strict:    cfg.StrictUniverse,
		ImagesDir: cfg.ImagesDir,
		Limiter:   web.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", httpserver.Healthz(nil))
	srv.Routes(mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("sound-predict web client",
		"inference", client.BaseURL, "strict_universe", cfg.StrictUniverse, "images", cfg.ImagesDir)
	if err := httpserver.Start(ctx, ":"+cfg.Port, mux); err != nil {
		log.Fatal(err)
	}
}
