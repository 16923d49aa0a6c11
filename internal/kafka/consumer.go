package kafkax

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer reads one topic as part of a consumer group. Offsets are committed
// explicitly by the caller once a message has been handled.
type Consumer struct {
	reader *kafka.Reader
	log    *zap.Logger
}

func NewConsumer(log *zap.Logger, brokers []string, group, topic string) *Consumer {
	return &Consumer{
		log: log,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			GroupID:     group,
			Topic:       topic,
			MinBytes:    1,
			MaxBytes:    10e6,
			MaxWait:     time.Second,
			StartOffset: kafka.FirstOffset,
			ErrorLogger: kafka.LoggerFunc(log.Sugar().Errorf),
		}),
	}
}

func (c *Consumer) Fetch(ctx context.Context) (kafka.Message, error) {
	return c.reader.FetchMessage(ctx)
}

func (c *Consumer) Commit(ctx context.Context, m kafka.Message) error {
	return c.reader.CommitMessages(ctx, m)
}

func (c *Consumer) Close() error {
	s := c.reader.Stats()
	c.log.Info("consumer closing",
		zap.String("topic", s.Topic),
		zap.Int64("messages", s.Messages),
		zap.Int64("errors", s.Errors),
		zap.Int64("lag", s.Lag),
	)
	return c.reader.Close()
}
