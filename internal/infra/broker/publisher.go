package broker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"pixelgrid/internal/pkg/config"
	"pixelgrid/internal/pkg/errs"
	"pixelgrid/internal/usecase/shared"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type envelope struct {
	Type       shared.EventType `json:"type"`
	Key        string           `json:"key"`
	OccurredAt time.Time        `json:"occurredAt"`
	Payload    any              `json:"payload"`
}

// AMQPPublisher publishes events to a durable topic exchange with the event type as
// routing key. The connection is dialled lazily and re-dialled after it drops.
type AMQPPublisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(cfg config.BrokerConfig) *AMQPPublisher {
	return &AMQPPublisher{url: cfg.URL, exchange: cfg.Exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event shared.Event) error {
	body, err := json.Marshal(envelope{
		Type:       event.Type,
		Key:        event.Key,
		OccurredAt: event.OccurredAt.UTC(),
		Payload:    event.Payload,
	})
	if err != nil {
		return errs.Wrap(err, "marshal event")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	err = ch.PublishWithContext(ctx,
		p.exchange,
		string(event.Type),
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.Key + ":" + string(event.Type),
			Timestamp:    event.OccurredAt.UTC(),
			Type:         string(event.Type),
			Body:         body,
		})
	if err != nil {
		p.reset()
		return errs.Wrapf(err, "publish %s", event.Type)
	}
	return nil
}

// channel must be called with mu held.
func (p *AMQPPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, errs.Wrap(err, "dial broker")
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		p.reset()
		return nil, errs.Wrap(err, "open broker channel")
	}
	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	); err != nil {
		_ = ch.Close()
		p.reset()
		return nil, errs.Wrapf(err, "declare exchange %s", p.exchange)
	}
	p.ch = ch
	return ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	slog.Info("broker publisher closed", "exchange", p.exchange)
	return nil
}
