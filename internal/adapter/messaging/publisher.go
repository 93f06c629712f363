package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/rl1809/rent-market/internal/core/domain"
	"github.com/rl1809/rent-market/internal/port"
)

const routingKeyPrefix = "market."

// ChannelSource hands out the channel to publish on, failing when the
// broker is unreachable.
type ChannelSource interface {
	Channel() (Channel, error)
}

type Publisher struct {
	source   ChannelSource
	exchange string
	log      *zap.Logger
}

var _ port.EventPublisher = (*Publisher)(nil)

func NewPublisher(source ChannelSource, exchange string, log *zap.Logger) *Publisher {
	return &Publisher{source: source, exchange: exchange, log: log}
}

// Publish sends ev as a persistent JSON message routed by its type, e.g.
// market.booking.created.
func (p *Publisher) Publish(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	channel, err := p.source.Channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	routingKey := routingKeyPrefix + string(ev.Type)
	err = channel.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			MessageId:    ev.ID,
			Timestamp:    ev.OccurredAt,
			Type:         string(ev.Type),
			Headers: amqp.Table{
				"product_id": ev.ProductID,
				"actor_id":   ev.ActorID,
				"event_type": string(ev.Type),
			},
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	p.log.Debug("event published", zap.String("routing_key", routingKey), zap.String("event_id", ev.ID))
	return nil
}
