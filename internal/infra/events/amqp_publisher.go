package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"vpn-subscription-bot/internal/domain/ports/adapter"
)

var _ adapter.TransactionLogger = (*AMQPPublisher)(nil)

const (
	RoutingKeyNew     = "transaction.new"
	RoutingKeyRenewal = "transaction.renewal"
)

// publishChannel is the subset of *amqp.Channel the publisher uses.
type publishChannel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher ships transaction log entries to a topic exchange as JSON.
type AMQPPublisher struct {
	mu       sync.Mutex // amqp channels are not safe for concurrent publishing
	conn     *amqp.Connection
	ch       publishChannel
	exchange string
	log      *zerolog.Logger
}

// DialPublisher connects with exponential backoff and declares a durable topic exchange.
func DialPublisher(ctx context.Context, url, exchange string, logger *zerolog.Logger) (*AMQPPublisher, error) {
	var conn *amqp.Connection
	op := func() error {
		c, err := amqp.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp exchange %s: %w", exchange, err)
	}

	p := newPublisher(ch, exchange, logger)
	p.conn = conn
	return p, nil
}

func newPublisher(ch publishChannel, exchange string, logger *zerolog.Logger) *AMQPPublisher {
	compLog := logger.With().Str("component", "AMQPPublisher").Logger()
	return &AMQPPublisher{ch: ch, exchange: exchange, log: &compLog}
}

func (p *AMQPPublisher) LogTransaction(ctx context.Context, e adapter.TransactionLogEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	key := RoutingKeyNew
	if e.IsRenewal {
		key = RoutingKeyRenewal
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.PaymentID,
		Timestamp:    e.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish transaction %s: %w", e.PaymentID, err)
	}
	p.log.Debug().Str("payment_id", e.PaymentID).Str("routing_key", key).Msg("transaction published")
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
