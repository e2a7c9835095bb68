package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const exchangeType = "topic"

// AMQPPublisher publishes envelopes to a durable topic exchange using the
// event type as routing key.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchange,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e Envelope) error {
	body, err := e.Marshal()
	if err != nil {
		return err
	}
	err = p.channel.PublishWithContext(ctx,
		p.exchange,
		string(e.EventType),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    e.EventID,
			Timestamp:    e.OccurredAt,
			Type:         string(e.EventType),
			AppId:        Producer,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.EventType, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return errors.Join(p.channel.Close(), p.conn.Close())
}
