package mq

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher relays stream payloads to a topic exchange. Only the configured
// stream channels are forwarded; the channel name is the routing key.
type Publisher struct {
	conn     *amqp.Connection
	ch       Channel
	exchange string
	channels map[string]struct{}
}

var (
	dialFn     = amqp.Dial
	retryDelay = time.Second
)

// Dial connects to the broker, retrying with exponential backoff.
func Dial(url, exchange string, channels ...string) (*Publisher, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < 3; i++ {
		if i > 0 {
			time.Sleep(retryDelay << (i - 1))
		}
		conn, err = dialFn(url)
		if err == nil {
			break
		}
		log.Printf("rabbitmq connect attempt %d failed: %v", i+1, err)
	}
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	p, err := NewPublisher(ch, exchange, channels...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	log.Printf("connected to rabbitmq exchange %s", exchange)
	return p, nil
}

func NewPublisher(ch Channel, exchange string, channels ...string) (*Publisher, error) {
	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	p := &Publisher{
		ch:       ch,
		exchange: exchange,
		channels: make(map[string]struct{}, len(channels)),
	}
	for _, c := range channels {
		p.channels[c] = struct{}{}
	}
	return p, nil
}

func (p *Publisher) Broadcast(channel string, payload []byte) {
	if _, ok := p.channels[channel]; !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(ctx, p.exchange, channel, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	if err != nil {
		log.Printf("rabbitmq publish %s: %v", channel, err)
	}
}

func (p *Publisher) Close() error {
	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
