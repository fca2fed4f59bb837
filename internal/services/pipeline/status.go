package pipeline

import (
	"sync"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// statusTracker owns the shared CrawlStatus behind a mutex. The running
// crawl writes through it; external pollers read complete snapshots.
type statusTracker struct {
	mu     sync.Mutex
	status models.CrawlStatus
}

func newStatusTracker() *statusTracker {
	return &statusTracker{
		status: models.CrawlStatus{Message: "等待任务"},
	}
}

// tryAcquire atomically claims the run gate. It returns false without
// side effects when a run is already in flight; otherwise it resets the
// status for a fresh run.
func (t *statusTracker) tryAcquire() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.status.IsRunning {
		return false
	}
	t.status = models.CrawlStatus{
		IsRunning: true,
		Message:   "爬取任务初始化...",
	}
	return true
}

// release clears the run gate, keeping the final message and error.
func (t *statusTracker) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.IsRunning = false
}

// Update replaces the run's progress counters and message.
func (t *statusTracker) Update(progress, total int, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if progress >= 0 {
		t.status.Progress = progress
	}
	if total >= 0 {
		t.status.Total = total
	}
	if message != "" {
		t.status.Message = message
	}
}

// Fail records a run-level error message.
func (t *statusTracker) Fail(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.status.LastError = message
	t.status.Message = "爬取失败: " + message
}

// Snapshot returns a copy of the current status.
func (t *statusTracker) Snapshot() models.CrawlStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}
