package events

import (
	"context"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes envelopes to one topic keyed by Envelope.Key
type KafkaPublisher struct {
	w *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Envelope) error {
	body, err := e.Marshal()
	if err != nil {
		return err
	}
	err = p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Key),
		Value: body,
		Time:  e.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.EventType)},
			{Key: "event_id", Value: []byte(e.EventID)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write %s to kafka: %w", e.EventType, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
