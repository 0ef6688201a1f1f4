package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/noah-isme/community-class-api/pkg/breaker"
)

const (
	minReconnectInterval = time.Second
	maxReconnectInterval = 30 * time.Second
)

// ErrNotConnected is returned while the publisher is between broker connections.
var ErrNotConnected = errors.New("rabbitmq not connected")

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// session is one live connection/channel pair. closed fires when the broker drops it.
type session struct {
	ch     amqpChannel
	closed <-chan *amqp.Error
	close  func() error
}

// RabbitMQPublisher publishes persistent JSON messages to a durable queue through
// the default exchange. Publishing is guarded by a circuit breaker, and a dropped
// connection is re-dialled in the background with exponential backoff.
type RabbitMQPublisher struct {
	queue   string
	cb      *gobreaker.CircuitBreaker
	logger  *zap.Logger
	connect func() (*session, error)

	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.RWMutex
	current   *session
	done      chan struct{}
	closeOnce sync.Once
}

// NewRabbitMQPublisher dials the broker, declares queue and starts watching the connection.
func NewRabbitMQPublisher(url, queue string, logger *zap.Logger) (*RabbitMQPublisher, error) {
	p := newPublisher(queue, logger, func() (*session, error) { return dial(url, queue) })
	s, err := p.connect()
	if err != nil {
		return nil, err
	}
	p.current = s
	go p.watch(s)
	return p, nil
}

func newPublisher(queue string, logger *zap.Logger, connect func() (*session, error)) *RabbitMQPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitMQPublisher{
		queue:      queue,
		cb:         breaker.New(breaker.RabbitMQ, logger),
		logger:     logger.With(zap.String("queue", queue)),
		connect:    connect,
		minBackoff: minReconnectInterval,
		maxBackoff: maxReconnectInterval,
		done:       make(chan struct{}),
	}
}

func dial(url, queue string) (*session, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	return &session{
		ch:     ch,
		closed: conn.NotifyClose(make(chan *amqp.Error, 1)),
		close: func() error {
			if err := ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
				return err
			}
			return conn.Close()
		},
	}, nil
}

// watch waits for s to drop and then re-dials until it succeeds or the publisher is closed.
func (p *RabbitMQPublisher) watch(s *session) {
	select {
	case <-p.done:
		return
	case reason := <-s.closed:
		select {
		case <-p.done:
			return
		default:
		}
		p.logger.Warn("rabbitmq connection lost", zap.Any("reason", reason))
	}

	p.mu.Lock()
	if p.current == s {
		p.current = nil
	}
	p.mu.Unlock()

	backoff := p.minBackoff
	for {
		select {
		case <-p.done:
			return
		case <-time.After(backoff):
		}

		next, err := p.connect()
		if err != nil {
			p.logger.Warn("rabbitmq reconnect failed", zap.Duration("retry_in", backoff), zap.Error(err))
			backoff *= 2
			if backoff > p.maxBackoff {
				backoff = p.maxBackoff
			}
			continue
		}

		p.mu.Lock()
		select {
		case <-p.done:
			p.mu.Unlock()
			_ = next.close()
			return
		default:
		}
		p.current = next
		p.mu.Unlock()

		p.logger.Info("rabbitmq reconnected")
		go p.watch(next)
		return
	}
}

// Publish sends msg with the event type as AMQP message type.
func (p *RabbitMQPublisher) Publish(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	s := p.current
	p.mu.RUnlock()
	if s == nil {
		return fmt.Errorf("publish %s: %w", msg.Type, ErrNotConnected)
	}

	_, err := p.cb.Execute(func() (interface{}, error) {
		return nil, s.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.ID,
			Type:         msg.Type,
			Timestamp:    msg.OccurredAt,
			Body:         msg.Body,
		})
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Type, err)
	}
	return nil
}

// Close stops reconnecting and closes the live connection.
func (p *RabbitMQPublisher) Close() error {
	p.closeOnce.Do(func() { close(p.done) })

	p.mu.Lock()
	s := p.current
	p.current = nil
	p.mu.Unlock()

	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}
