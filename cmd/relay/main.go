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

	"github.com/lalith-99/excursia/internal/auth"
	"github.com/lalith-99/excursia/internal/config"
	"github.com/lalith-99/excursia/internal/db"
	"github.com/lalith-99/excursia/internal/observ"
	"github.com/lalith-99/excursia/internal/pubsub"
	"github.com/lalith-99/excursia/internal/relay"
	"github.com/lalith-99/excursia/internal/repository/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, "relay")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	metrics := observ.NewMetrics()
	hub := relay.NewHub(logger, metrics)

	// Without Redis this instance only reaches its own connections, and
	// messages sent over REST are seen after a reload.
	var publisher relay.Publisher
	if bus, rdb, err := connectBus(ctx, cfg.RedisURL, logger); err != nil {
		logger.Warn("chat bus unavailable, broadcasting locally", zap.Error(err))
	} else {
		defer rdb.Close()
		msgs, err := bus.Subscribe(ctx)
		if err != nil {
			return err
		}
		go hub.Run(ctx, msgs)
		publisher = bus
	}

	pool := database.Pool()
	server := relay.NewServer(
		hub,
		auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		postgres.NewChatStore(pool),
		postgres.NewMessageStore(pool),
		publisher,
		relay.Config{MessagesPerSecond: cfg.RelayMessagesPerSecond},
		logger,
		metrics,
	)

	srv := &http.Server{
		Addr:              ":" + cfg.RelayPort,
		Handler:           server.Router(database.Health),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting chat relay", zap.String("port", cfg.RelayPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// connectBus returns the bus and the client behind it; the caller
// closes the client on shutdown.
func connectBus(ctx context.Context, url string, logger *zap.Logger) (*pubsub.Bus, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return pubsub.NewBus(rdb, pubsub.DefaultChannel, logger), rdb, nil
}
