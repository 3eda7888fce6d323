package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"ms-autobook/internal/logger"
	"ms-autobook/internal/models"
	"ms-autobook/internal/sse"
)

// UserChannel is the pub/sub channel carrying a user's results.
func UserChannel(userID string) string {
	return "autobook:user:" + userID
}

// Redis publishes every result on the owning user's channel so any replica
// holding that user's stream can forward it.
type Redis struct {
	Client *redis.Client
}

func (n Redis) Notify(ctx context.Context, results []models.ItemResult) error {
	var errs []error
	for _, r := range results {
		data, err := json.Marshal(NewMessage(r))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to marshal result %s: %w", r.AutoBookID, err))
			continue
		}
		if err := n.Client.Publish(ctx, UserChannel(r.UserID), data).Err(); err != nil {
			errs = append(errs, fmt.Errorf("publish result %s: %w", r.AutoBookID, err))
		}
	}
	return errors.Join(errs...)
}

// Relay forwards results published by any replica to the streams open on
// this one. It returns when ctx is done.
func Relay(ctx context.Context, client *redis.Client, emitter *sse.ResultEmitter, log *logger.Logger) error {
	pubsub := client.PSubscribe(ctx, UserChannel("*"))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to result channels: %w", err)
	}
	log.Info("REDIS", "Relaying auto-book results to local streams")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var m Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Warn("REDIS", fmt.Sprintf("Dropping malformed result on %s: %v", msg.Channel, err))
				continue
			}
			emitter.Emit([]models.ItemResult{m.ItemResult})
		}
	}
}
