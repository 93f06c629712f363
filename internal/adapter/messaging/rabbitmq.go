// Package messaging publishes engine events to RabbitMQ.
package messaging

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("no connection to RabbitMQ")

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RetryCount int
	RetryDelay time.Duration
}

// Channel is the subset of *amqp.Channel the publisher uses.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQClient struct {
	config     RabbitMQConfig
	log        *zap.Logger
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	isClosing  bool
}

func NewRabbitMQClient(config RabbitMQConfig, log *zap.Logger) *RabbitMQClient {
	if config.RetryCount < 1 {
		config.RetryCount = 1
	}
	return &RabbitMQClient{config: config, log: log}
}

// Connect dials the broker and declares the durable topic exchange events
// are published to.
func (r *RabbitMQClient) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for i := 0; i < r.config.RetryCount; i++ {
		r.connection, err = amqp.Dial(r.config.URL)
		if err != nil {
			r.log.Warn("RabbitMQ connection failed",
				zap.Int("attempt", i+1), zap.Int("max_attempts", r.config.RetryCount), zap.Error(err))
			if i < r.config.RetryCount-1 {
				time.Sleep(r.config.RetryDelay)
			}
			continue
		}

		r.channel, err = r.connection.Channel()
		if err != nil {
			r.connection.Close()
			return fmt.Errorf("open RabbitMQ channel: %w", err)
		}

		err = r.channel.ExchangeDeclare(
			r.config.Exchange, // name
			"topic",           // type
			true,              // durable
			false,             // auto-deleted
			false,             // internal
			false,             // no-wait
			nil,               // arguments
		)
		if err != nil {
			r.channel.Close()
			r.connection.Close()
			return fmt.Errorf("declare exchange %s: %w", r.config.Exchange, err)
		}

		r.log.Info("connected to RabbitMQ", zap.String("exchange", r.config.Exchange))
		go r.handleReconnection(r.connection)
		return nil
	}

	return fmt.Errorf("connect to RabbitMQ: %w", err)
}

func (r *RabbitMQClient) handleReconnection(conn *amqp.Connection) {
	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

	err, ok := <-notifyClose
	if !ok {
		return
	}

	r.mu.RLock()
	closing := r.isClosing
	r.mu.RUnlock()
	if closing {
		return
	}

	r.log.Warn("RabbitMQ connection lost, reconnecting", zap.Error(err))
	time.Sleep(2 * time.Second)
	if err := r.Connect(); err != nil {
		r.log.Error("RabbitMQ reconnect failed", zap.Error(err))
	}
}

func (r *RabbitMQClient) Channel() (Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.connection == nil || r.connection.IsClosed() || r.channel == nil {
		return nil, ErrNotConnected
	}
	return r.channel, nil
}

func (r *RabbitMQClient) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.connection != nil && !r.connection.IsClosed()
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isClosing {
		return nil
	}
	r.isClosing = true

	var errs []error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if r.connection != nil {
		if err := r.connection.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	r.log.Info("RabbitMQ connection closed")
	return nil
}
