package interfaces

import (
	"context"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// Notifier - interface for delivering newly found bids
type Notifier interface {
	// Notify sends a single digest for the batch. It is called at most
	// once per crawl run, and only with a non-empty batch.
	Notify(ctx context.Context, bids []*models.BidRecord) error
}
