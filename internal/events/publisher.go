package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/adibqt/LibroTrack/internal/config"
)

// LogPublisher writes envelopes to the structured log. It is the default
// when no broker is configured.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, e Envelope) error {
	p.logger.InfoContext(ctx, "Lifecycle event",
		"event_id", e.EventID,
		"event_type", e.EventType,
		"key", e.Key,
		"payload", string(e.Payload),
	)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NopPublisher drops every envelope
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Envelope) error { return nil }
func (NopPublisher) Close() error                            { return nil }

// NewPublisher returns the publisher selected by cfg.Driver
func NewPublisher(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		if len(cfg.Brokers) == 0 {
			return nil, fmt.Errorf("events.brokers is required for the kafka driver")
		}
		return NewKafkaPublisher(cfg.Brokers, cfg.Topic), nil
	case "amqp":
		return NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	case "log", "":
		return NewLogPublisher(logger), nil
	case "none":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}
