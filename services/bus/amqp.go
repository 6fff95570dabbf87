package bussvc

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nageo/backend/core"
)

// AMQPBus broadcasts events on a RabbitMQ topic exchange.
type AMQPBus struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   core.Logger
}

var _ core.Broadcaster = (*AMQPBus)(nil)

func NewAMQPBus(conf *core.Config, logger core.Logger) (*AMQPBus, error) {
	conn, err := amqp.Dial(conf.Bus.URL)
	if err != nil {
		return nil, errors.Wrap(err, "dialing broker")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "opening channel")
	}
	if err = ch.ExchangeDeclare(conf.Bus.Exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, errors.Wrap(err, "declaring exchange")
	}
	return &AMQPBus{conn: conn, ch: ch, exchange: conf.Bus.Exchange, logger: logger}, nil
}

// Broadcast publishes payload under key. Failures are logged, not raised;
// a broken broker must not fail the business operation.
func (b *AMQPBus) Broadcast(ctx context.Context, key string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		b.logger.Error("bus: encoding payload", err)
		return nil
	}
	err = b.ch.PublishWithContext(ctx, b.exchange, key, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		b.logger.Error("bus: publishing "+key, err)
	}
	return nil
}

func (b *AMQPBus) Close() error {
	if b.ch != nil {
		_ = b.ch.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}
