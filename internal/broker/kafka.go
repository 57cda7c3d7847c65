package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pharmacy-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	headerEventType   = "event_type"
	headerContentType = "content_type"

	maxFetchBackoff = 30 * time.Second
)

// Event is anything carrying a routable event type
type Event interface {
	Type() string
}

type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewProducer creates a writer for the record events topic. Keys are hashed
// so events for one medicine or record stay on one partition.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		ReadTimeout:  10 * time.Second,
	}

	return &Producer{writer: writer, logger: util.GetLogger()}
}

// PublishEvent writes one event. The event type travels as a header so
// consumers can skip types they do not handle without decoding the body.
func (p *Producer) PublishEvent(ctx context.Context, key string, event Event) error {
	msg, err := encodeMessage(key, event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write %s event to kafka: %w", event.Type(), err)
	}

	p.logger.Debug("Published event", zap.String("key", key), zap.String("type", event.Type()))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func encodeMessage(key string, event Event) (kafka.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal %s event: %w", event.Type(), err)
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type())},
			{Key: headerContentType, Value: []byte("application/json")},
		},
	}, nil
}

func headerValue(msg kafka.Message, name string) string {
	for _, h := range msg.Headers {
		if h.Key == name {
			return string(h.Value)
		}
	}
	return ""
}

// Consumer reads record events as part of a consumer group
type Consumer struct {
	reader *kafka.Reader
	logger *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})

	return &Consumer{reader: reader, logger: util.GetLogger()}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// MessageHandler processes one fetched message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// StartConsuming fetches messages until ctx is cancelled. A message is
// committed only after its handler succeeds, so a failed message is seen
// again after a rebalance or restart; handlers must be idempotent.
func (c *Consumer) StartConsuming(ctx context.Context, handler MessageHandler) error {
	c.logger.Info("Starting Kafka consumer",
		zap.String("topic", c.reader.Config().Topic),
		zap.String("group", c.reader.Config().GroupID))

	backoff := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Consumer context cancelled, stopping")
				return ctx.Err()
			}
			c.logger.Warn("Error fetching message", zap.Error(err), zap.Duration("retry_in", backoff))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxFetchBackoff)
			continue
		}
		backoff = time.Second

		if err := handler(ctx, msg); err != nil {
			c.logger.Error("Error handling message",
				zap.String("type", headerValue(msg, headerEventType)),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Warn("Error committing message", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}
