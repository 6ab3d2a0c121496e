package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// QueueSender hands mail to cmd/mailer through a Kafka topic. Send
// returns once the broker has the job, not once the mail is delivered.
type QueueSender struct {
	writer messageWriter
}

func NewQueueSender(brokers []string, topic string) *QueueSender {
	return &QueueSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode mail job: %w", err)
	}

	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(msg.To),
		Value: value,
		Time:  time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish mail job: %w", err)
	}
	return nil
}

func (s *QueueSender) Close() error {
	return s.writer.Close()
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer drains the mail topic into a Sender. A job that cannot be
// decoded or delivered is logged and committed, never retried.
type Consumer struct {
	reader messageReader
	sender Sender
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, sender Sender, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			GroupID:  groupID,
			Topic:    topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		sender: sender,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled or the reader fails.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch mail job: %w", err)
		}

		c.handle(ctx, m)

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit mail job: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m kafka.Message) {
	var msg Message
	if err := json.Unmarshal(m.Value, &msg); err != nil {
		c.logger.Error("dropping undecodable mail job",
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return
	}

	if err := c.sender.Send(ctx, msg); err != nil {
		c.logger.Error("mail delivery failed",
			zap.String("to", msg.To),
			zap.Int64("offset", m.Offset),
			zap.Error(err),
		)
		return
	}

	c.logger.Info("mail delivered", zap.String("to", msg.To))
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
