// Package events publishes domain events for downstream consumers such as
// feeds and notifications. Delivery is best effort: a publish failure is
// logged by callers and never undoes the change that produced the event.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend-strideup/internal/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange = "strideup.events"

	KeyActivityCompleted   = "activity.completed"
	KeyContributionCreated = "challenge.contribution.created"
)

type ActivityCompleted struct {
	ActivityID   string    `json:"activity_id"`
	UserID       string    `json:"user_id"`
	ActivityType string    `json:"activity_type"`
	DistanceM    float64   `json:"distance_m"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

type ContributionCreated struct {
	ChallengeID   string    `json:"challenge_id"`
	ParticipantID string    `json:"participant_id"`
	UserID        string    `json:"user_id"`
	ActivityID    string    `json:"activity_id"`
	Value         float64   `json:"value"`
	Total         float64   `json:"total_contributed"`
	Completed     bool      `json:"is_completed"`
	ContributedAt time.Time `json:"contributed_at"`
}

type Publisher interface {
	ActivityCompleted(ctx context.Context, ev ActivityCompleted) error
	ContributionCreated(ctx context.Context, ev ContributionCreated) error
}

// Noop drops every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) ActivityCompleted(context.Context, ActivityCompleted) error     { return nil }
func (Noop) ContributionCreated(context.Context, ContributionCreated) error { return nil }

// channel is the subset of *amqp.Channel the publisher needs.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	log      *logger.Logger
}

var (
	dialAttempts = 3
	retryDelay   = time.Second
)

// Dial connects with a short exponential backoff and declares the topic
// exchange events are published to.
func Dial(url, exchange string, log *logger.Logger) (*AMQPPublisher, error) {
	log = logger.OrNop(log)
	var conn *amqp.Connection
	var err error
	for i := 0; i < dialAttempts; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		log.Warn("rabbitmq dial failed", "attempt", i+1, "error", err)
		time.Sleep(retryDelay << i)
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := newPublisher(ch, exchange, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	log.Info("connected to rabbitmq", "exchange", p.exchange)
	return p, nil
}

func newPublisher(ch channel, exchange string, log *logger.Logger) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{ch: ch, exchange: exchange, log: logger.OrNop(log)}, nil
}

func (p *AMQPPublisher) ActivityCompleted(ctx context.Context, ev ActivityCompleted) error {
	return p.publish(ctx, KeyActivityCompleted, ev)
}

func (p *AMQPPublisher) ContributionCreated(ctx context.Context, ev ContributionCreated) error {
	return p.publish(ctx, KeyContributionCreated, ev)
}

func (p *AMQPPublisher) publish(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	p.log.Debug("event published", "routing_key", key)
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			return fmt.Errorf("close channel: %w", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close connection: %w", err)
		}
	}
	return nil
}
