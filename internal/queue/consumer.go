package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Mailbox is where rendered confirmation emails are delivered. There is
// no SMTP transport; FileMailbox appends them to a local file so operators
// can inspect what would have been sent.
type Mailbox interface {
	Deliver(to, subject, body string) error
}

// FileMailbox appends messages to <Dir>/notifications.log.
type FileMailbox struct {
	Dir string
}

// Deliver appends one message block.
func (m FileMailbox) Deliver(to, subject, body string) error {
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", m.Dir, err)
	}
	f, err := os.OpenFile(filepath.Join(m.Dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}
	defer f.Close()
	block := fmt.Sprintf("To: %s\nSubject: %s\n\n%s\n---\n", to, subject, body)
	if _, err := f.WriteString(block); err != nil {
		return fmt.Errorf("write mailbox: %w", err)
	}
	return nil
}

// RenderConfirmation produces the subject and body of the booking
// confirmation email.
func RenderConfirmation(ev BookingConfirmedEvent) (string, string) {
	subject := fmt.Sprintf("Booking confirmation %s", ev.Reference)

	var b strings.Builder
	name := ev.CustomerName
	if name == "" {
		name = "customer"
	}
	fmt.Fprintf(&b, "Hello %s,\n\n", name)
	fmt.Fprintf(&b, "Your reservation %s is confirmed.\n", ev.Reference)
	fmt.Fprintf(&b, "Departure: %s\nArrival: %s\n", ev.DepartsAt, ev.ArrivesAt)
	fmt.Fprintf(&b, "Class: %s\nSeats: %s\n", ev.FareClass, strings.Join(ev.SeatLabels, ", "))
	fmt.Fprintf(&b, "Total: %d\n", ev.TotalAmount)
	if ev.BonusRedeemed != "" {
		fmt.Fprintf(&b, "Bonus ticket %s was applied to this booking.\n", ev.BonusRedeemed)
	}
	if len(ev.BonusEarned) > 0 {
		fmt.Fprintf(&b, "Thank you for your loyalty! You earned: %s\n", strings.Join(ev.BonusEarned, ", "))
	}
	return subject, b.String()
}

// Consumer reads booking.confirmed and delivers confirmation emails.
type Consumer struct {
	url     string
	mailbox Mailbox
	log     *zap.Logger
}

// NewConsumer builds a Consumer.
func NewConsumer(url string, mailbox Mailbox, log *zap.Logger) *Consumer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Consumer{url: url, mailbox: mailbox, log: log}
}

// Run connects to RabbitMQ, declares the booking.confirmed queue (durable)
// and consumes until ctx is cancelled. Lost connections are retried with
// exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.log.Warn("notification consumer dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("notification consumer loop ended; reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.log.Warn("notification consumer set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(BookingQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(BookingQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.Handle(d.Body); err != nil {
				c.log.Error("notification handling failed", zap.Error(err))
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message and delivers its email.
func (c *Consumer) Handle(body []byte) error {
	var ev BookingConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.CustomerEmail == "" {
		return fmt.Errorf("reservation %s has no recipient", ev.Reference)
	}
	subject, text := RenderConfirmation(ev)
	if err := c.mailbox.Deliver(ev.CustomerEmail, subject, text); err != nil {
		return err
	}
	c.log.Info("booking confirmation delivered",
		zap.String("reference", ev.Reference),
		zap.Uint64("reservation_id", ev.ReservationID),
	)
	return nil
}
