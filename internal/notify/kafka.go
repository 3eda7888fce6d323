package notify

import (
	"context"
	"errors"

	"ms-autobook/internal/models"
)

type JSONPublisher interface {
	PublishJSON(ctx context.Context, topic, key string, v interface{}) error
}

// Kafka publishes decided results keyed by user id. Error outcomes are not
// published; those auto-books are still active and will be decided later.
type Kafka struct {
	Publisher      JSONPublisher
	SucceededTopic string
	FailedTopic    string
}

func (k Kafka) Notify(ctx context.Context, results []models.ItemResult) error {
	var errs []error
	for _, r := range results {
		var topic string
		switch r.Outcome {
		case models.OutcomeSuccess:
			topic = k.SucceededTopic
		case models.OutcomeFailed:
			topic = k.FailedTopic
		default:
			continue
		}
		if err := k.Publisher.PublishJSON(ctx, topic, r.UserID, NewMessage(r)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
