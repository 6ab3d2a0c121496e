package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lalith-99/excursia/internal/config"
	"github.com/lalith-99/excursia/internal/mail"
	"github.com/lalith-99/excursia/internal/observ"
	"go.uber.org/zap"
)

// mailer drains the Kafka mail topic written by the API when
// MAIL_TRANSPORT=kafka and delivers each job over SMTP.
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

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel, "mailer")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	var sender mail.Sender = mail.NewLogSender(logger)
	if m := cfg.Mail; m.SMTPHost != "" {
		sender = mail.NewSMTPSender(m.SMTPHost, m.SMTPPort, m.SMTPUser, m.SMTPPass, m.From, logger)
	} else {
		logger.Warn("SMTP_HOST not set, mail jobs will only be logged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := mail.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.MailTopic, cfg.Kafka.GroupID, sender, logger)
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("failed to close consumer", zap.Error(err))
		}
	}()

	logger.Info("mailer consuming",
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.MailTopic),
	)
	return consumer.Run(ctx)
}
