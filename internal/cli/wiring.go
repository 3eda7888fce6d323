package cli

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ms-autobook/internal/autobook"
	"ms-autobook/internal/config"
	"ms-autobook/internal/kafka"
	"ms-autobook/internal/logger"
	"ms-autobook/internal/notify"
	"ms-autobook/internal/sse"
)

// dependencies holds the optional infrastructure clients. A nil field means
// the integration is disabled or unreachable.
type dependencies struct {
	redis    *redis.Client
	producer *kafka.Producer
	email    *notify.EmailQueue
}

func (d *dependencies) Close() {
	if d.email != nil {
		d.email.Close()
	}
	if d.producer != nil {
		d.producer.Close()
	}
	if d.redis != nil {
		d.redis.Close()
	}
}

func connectDependencies(ctx context.Context, cfg *config.Config, log *logger.Logger) *dependencies {
	deps := &dependencies{}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, continuing without it: %v", cfg.Redis.Addr, err))
			client.Close()
		} else {
			log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Redis.Addr, cfg.Redis.DB))
			deps.redis = client
		}
	}

	if cfg.Kafka.Enabled {
		topics := []string{cfg.Kafka.Topics.AutoBookSucceeded, cfg.Kafka.Topics.AutoBookFailed, cfg.Kafka.Topics.EventStatus}
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, topics, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		deps.producer = kafka.NewProducer(cfg.Kafka.Brokers, log)
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for %v", cfg.Kafka.Brokers))
	}

	if cfg.RabbitMQ.Enabled {
		q, err := notify.DialEmailQueue(cfg.RabbitMQ.URL, cfg.RabbitMQ.EmailQueue)
		if err != nil {
			log.Warn("AMQP", fmt.Sprintf("Email queue unavailable, assisted-booking emails disabled: %v", err))
		} else {
			log.Info("AMQP", fmt.Sprintf("Email jobs go to queue %s", cfg.RabbitMQ.EmailQueue))
			deps.email = q
		}
	}

	return deps
}

// notifier fans pass results out to every configured channel. With Redis,
// results reach local streams through notify.Relay, so the emitter is only
// fed directly when Redis is absent.
func (d *dependencies) notifier(cfg *config.Config, emitter *sse.ResultEmitter, log *logger.Logger) autobook.Notifier {
	m := notify.Multi{notify.Log{Logger: log}}
	if d.producer != nil {
		m = append(m, notify.Kafka{
			Publisher:      d.producer,
			SucceededTopic: cfg.Kafka.Topics.AutoBookSucceeded,
			FailedTopic:    cfg.Kafka.Topics.AutoBookFailed,
		})
	}
	if d.email != nil {
		m = append(m, d.email)
	}
	switch {
	case d.redis != nil:
		m = append(m, notify.Redis{Client: d.redis})
	case emitter != nil:
		m = append(m, notify.SSE{Emitter: emitter})
	}
	return m
}

func newProcessor(cfg *config.Config, events autobook.EventStore, autoBooks autobook.AutoBookStore, notifier autobook.Notifier, log *logger.Logger) *autobook.Processor {
	p := autobook.NewProcessor(events, autoBooks, autobook.Policy{BookingWindow: cfg.AutoBook.BookingWindow}, log)
	p.Notifier = notifier
	p.BatchLimit = cfg.AutoBook.BatchLimit
	return p
}
