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

	"github.com/lalith-99/excursia/internal/api"
	"github.com/lalith-99/excursia/internal/auth"
	"github.com/lalith-99/excursia/internal/config"
	"github.com/lalith-99/excursia/internal/db"
	"github.com/lalith-99/excursia/internal/mail"
	"github.com/lalith-99/excursia/internal/middleware"
	"github.com/lalith-99/excursia/internal/observ"
	"github.com/lalith-99/excursia/internal/pubsub"
	"github.com/lalith-99/excursia/internal/recommend"
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
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, "server")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 3. Connect to Postgres and apply migrations
	// ---------------------------------------------------------------
	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// ---------------------------------------------------------------
	// 4. Connect to Redis (OTP quotas, rate limits, chat bus)
	// ---------------------------------------------------------------
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	// ---------------------------------------------------------------
	// 5. Create repositories
	// ---------------------------------------------------------------
	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	eventRepo := postgres.NewEventStore(pool)

	// ---------------------------------------------------------------
	// 6. Services
	// ---------------------------------------------------------------
	mailer, closeMailer, err := newMailer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeMailer()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	otp := auth.NewOTPService(
		postgres.NewOTPStore(pool),
		userRepo,
		tokens,
		mailer,
		rdb,
		auth.OTPConfig{
			TTL:             cfg.OTPTTL,
			RequestsPerHour: cfg.OTPRequestsPerHour,
			MaxAttempts:     cfg.OTPMaxAttempts,
		},
		logger,
	)
	recommender := recommend.New(recommend.Config{
		APIKey:  cfg.OpenAIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.OpenAIModel,
	}, eventRepo, userRepo, logger)
	if cfg.OpenAIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, /gpt will answer 503")
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return fmt.Errorf("create upload dir: %w", err)
	}

	// ---------------------------------------------------------------
	// 7. Set up HTTP server
	// ---------------------------------------------------------------
	router := api.NewRouter(api.Deps{
		Logger:       logger,
		Metrics:      observ.NewMetrics(),
		Tokens:       tokens,
		OTP:          otp,
		OTPLimiter:   middleware.NewRateLimiter(rdb, "ratelimit:otp", cfg.OTPRequestsPerIP, time.Hour, logger).ByIP(),
		Users:        userRepo,
		Images:       postgres.NewImageStore(pool),
		Events:       eventRepo,
		Applications: postgres.NewApplicationStore(pool),
		Comments:     postgres.NewCommentStore(pool),
		Friendships:  postgres.NewFriendshipStore(pool),
		Chats:        postgres.NewChatStore(pool),
		Messages:     postgres.NewMessageStore(pool),
		Publisher:    pubsub.NewBus(rdb, pubsub.DefaultChannel, logger),
		Recommender:  recommender,
		UploadDir:    cfg.UploadDir,
		Health:       database.Health,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting Excursia API",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.String("mail_transport", cfg.Mail.Transport),
		)
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newMailer picks the OTP mail transport. The returned close func is
// always safe to call.
func newMailer(cfg *config.Config, logger *zap.Logger) (mail.Sender, func(), error) {
	noop := func() {}
	switch cfg.Mail.Transport {
	case "smtp":
		if cfg.Mail.SMTPHost == "" {
			return nil, noop, errors.New("SMTP_HOST is required for MAIL_TRANSPORT=smtp")
		}
		m := cfg.Mail
		return mail.NewSMTPSender(m.SMTPHost, m.SMTPPort, m.SMTPUser, m.SMTPPass, m.From, logger), noop, nil
	case "kafka":
		q := mail.NewQueueSender(cfg.Kafka.Brokers, cfg.Kafka.MailTopic)
		return q, func() {
			if err := q.Close(); err != nil {
				logger.Warn("failed to close mail queue", zap.Error(err))
			}
		}, nil
	case "log":
		return mail.NewLogSender(logger), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown MAIL_TRANSPORT %q", cfg.Mail.Transport)
	}
}
