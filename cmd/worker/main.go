package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hibiken/asynq"
	redis "github.com/redis/go-redis/v9"

	"github.com/gbdelivering/backend-butchery/internal/config"
	"github.com/gbdelivering/backend-butchery/internal/notify"
	"github.com/gbdelivering/backend-butchery/internal/obs"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(envOrDefault("LOG_LEVEL", "info")).With().
		Str("service", "butchery-worker").
		Str("env", cfg.AppEnv).
		Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	smtpPort, err := strconv.Atoi(cfg.SMTPPort)
	if err != nil {
		logger.Fatal().Str("port", cfg.SMTPPort).Msg("invalid SMTP port")
	}
	sender := notify.SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     smtpPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	}

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr(cfg.RedisURL)},
		asynq.Config{
			Concurrency: cfg.WorkerConcurrency,
			Queues:      map[string]int{"mail": 1},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notify.TypeEmailSend, notify.NewEmailTaskHandler(sender, logger))

	if err := srv.Start(mux); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Int("concurrency", cfg.WorkerConcurrency).Msg("worker running")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")
	srv.Shutdown()
	logger.Info().Msg("worker stopped")
}

func redisAddr(redisURL string) string {
	if opts, err := redis.ParseURL(redisURL); err == nil {
		return opts.Addr
	}
	return redisURL
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
