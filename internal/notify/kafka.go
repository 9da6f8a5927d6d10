package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/duynhne/sawa-admin/internal/core/domain"
)

// PushSink accepts push events; ServiceWorker is one.
type PushSink interface {
	Push(ctx context.Context, ev domain.PushEvent) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaIntake feeds push events published by the backend into a PushSink.
type KafkaIntake struct {
	reader messageReader
	logger zerolog.Logger
}

// NewKafkaIntake creates a consumer-group reader on topic.
func NewKafkaIntake(brokers []string, groupID, topic string, logger zerolog.Logger) (*KafkaIntake, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka intake requires at least one broker")
	}
	if groupID == "" {
		return nil, fmt.Errorf("kafka intake requires group id")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka intake requires a topic")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  500 * time.Millisecond,
	})
	return newKafkaIntake(reader, logger), nil
}

func newKafkaIntake(reader messageReader, logger zerolog.Logger) *KafkaIntake {
	return &KafkaIntake{
		reader: reader,
		logger: logger.With().Str("component", "kafka_intake").Logger(),
	}
}

// Run consumes until ctx is cancelled. Undecodable messages are committed
// and skipped; a message the sink refuses is not committed.
func (k *KafkaIntake) Run(ctx context.Context, sink PushSink) error {
	k.logger.Info().Msg("Kafka intake started")
	for {
		msg, err := k.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch push event: %w", err)
		}

		ev, err := DecodePushEvent(msg.Value)
		if err != nil {
			k.logger.Warn().
				Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Skipping undecodable push event")
		} else if err := sink.Push(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("hand off push event: %w", err)
		}

		if err := k.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit push event: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (k *KafkaIntake) Close() error {
	return k.reader.Close()
}

// DecodePushEvent parses {"user_id":..., "payload":{"notification":{...}, "data":{...}}}.
func DecodePushEvent(raw []byte) (domain.PushEvent, error) {
	var ev domain.PushEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.PushEvent{}, fmt.Errorf("decode push event: %w", err)
	}
	if ev.UserID == "" {
		return domain.PushEvent{}, ErrMissingRecipient
	}
	return ev, nil
}
