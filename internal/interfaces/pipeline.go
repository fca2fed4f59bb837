package interfaces

import (
	"context"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// CrawlController - interface for triggering and observing crawl runs
type CrawlController interface {
	// Start launches a crawl run in the background. It returns true if
	// the run was started, false if a run is already in progress. At
	// most one run executes at a time.
	Start(ctx context.Context) bool

	// RunOnce executes a crawl run synchronously, holding the same
	// single-run gate as Start
	RunOnce(ctx context.Context) error

	// Status returns a snapshot of the current or last run
	Status() models.CrawlStatus
}

// StatusSink receives progress updates during a crawl run
type StatusSink interface {
	// Update replaces the run's progress counters and message
	Update(progress, total int, message string)

	// Fail records a run-level error message
	Fail(message string)
}
