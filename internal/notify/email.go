package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ms-autobook/internal/models"
)

// MaxEmailAttempts is how often the mail worker may retry one job.
const MaxEmailAttempts = 3

type EmailJob struct {
	Template    string  `json:"template"`
	UserID      string  `json:"user_id"`
	Message     Message `json:"message"`
	Attempts    int     `json:"attempts"`
	MaxAttempts int     `json:"max_attempts"`
}

type channelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EmailQueue enqueues an email job per decided result on a durable queue.
// Rendering and delivery belong to the mail worker.
type EmailQueue struct {
	ch    channelPublisher
	conn  *amqp.Connection
	Queue string
}

// DialEmailQueue connects to RabbitMQ and declares the queue.
func DialEmailQueue(url, queue string) (*EmailQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}
	return &EmailQueue{ch: ch, conn: conn, Queue: queue}, nil
}

func (q *EmailQueue) Notify(ctx context.Context, results []models.ItemResult) error {
	var errs []error
	for _, r := range results {
		if r.Outcome == models.OutcomeError {
			continue
		}
		template := "autobook_failed"
		if r.Outcome == models.OutcomeSuccess {
			template = "autobook_success"
		}

		body, err := json.Marshal(EmailJob{
			Template:    template,
			UserID:      r.UserID,
			Message:     NewMessage(r),
			MaxAttempts: MaxEmailAttempts,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}

		err = q.ch.PublishWithContext(ctx, "", q.Queue, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			MessageId:    r.AutoBookID,
			Body:         body,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("rabbitmq: publish %s: %w", r.AutoBookID, err))
		}
	}
	return errors.Join(errs...)
}

func (q *EmailQueue) Close() error {
	err := q.ch.Close()
	if q.conn != nil {
		err = errors.Join(err, q.conn.Close())
	}
	return err
}
