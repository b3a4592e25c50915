// Package events publishes domain events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	ExchangeName = "dancehub.events"
	ExchangeKind = "topic"
)

const (
	BookingConfirmed   = "booking.confirmed"
	BookingCancelled   = "booking.cancelled"
	GiftCardRedeemed   = "giftcard.redeemed"
	DiscountCardUsed   = "discountcard.redeemed"
	TokensPurchased    = "tokens.purchased"
	TokensUsed         = "tokens.used"
	OfferPurchased     = "offer.purchased"
	ReservationCreated = "reservation.created"
	ReservationCheckIn = "reservation.checked_in"
	ReferralRecorded   = "referral.recorded"
	CheckoutCompleted  = "checkout.completed"
)

// Emitter is what services depend on. A nil *Publisher is a valid
// Emitter that drops every event.
type Emitter interface {
	Emit(ctx context.Context, routingKey string, payload any)
}

type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *logrus.Logger
}

func NewPublisher(url string, log *logrus.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ExchangeName, ExchangeKind, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange declare: %w", err)
	}

	return &Publisher{conn: conn, channel: ch, log: log}, nil
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.PublishWithContext(ctx, ExchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	}); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Emit publishes best-effort; failures are logged only.
func (p *Publisher) Emit(ctx context.Context, routingKey string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		p.log.WithFields(logrus.Fields{"routingKey": routingKey, "error": err}).Warn("failed to publish event")
		return
	}
	p.log.WithField("routingKey", routingKey).Debug("event published")
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// Discard drops every event. Used when no broker is configured.
type Discard struct{}

func (Discard) Emit(context.Context, string, any) {}
