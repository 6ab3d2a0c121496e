package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender retries transient SMTP failures with exponential backoff
// until maxElapsed or ctx runs out.
type SMTPSender struct {
	dialer     dialer
	from       string
	maxElapsed time.Duration
	logger     *zap.Logger
}

func NewSMTPSender(host string, port int, user, pass, from string, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		dialer:     gomail.NewDialer(host, port, user, pass),
		from:       from,
		maxElapsed: 30 * time.Second,
		logger:     logger,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	attempt := 0
	operation := func() error {
		attempt++
		if err := s.dialer.DialAndSend(m); err != nil {
			s.logger.Warn("smtp send failed",
				zap.String("to", msg.To),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = s.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}
