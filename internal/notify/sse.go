package notify

import (
	"context"

	"ms-autobook/internal/models"
	"ms-autobook/internal/sse"
)

// SSE forwards results to streams open on this replica.
type SSE struct {
	Emitter *sse.ResultEmitter
}

func (n SSE) Notify(ctx context.Context, results []models.ItemResult) error {
	n.Emitter.Emit(results)
	return nil
}
