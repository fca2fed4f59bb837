package models

// CrawlStatus is a point-in-time snapshot of an orchestrator run, read by
// external pollers. The orchestrator owns the live copy behind a mutex;
// readers only ever see complete snapshots.
type CrawlStatus struct {
	IsRunning bool   `json:"is_running"`
	Progress  int    `json:"progress"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
	LastError string `json:"last_error,omitempty"`
}

// CrawlStats aggregates stored article and bid counts by status.
type CrawlStats struct {
	TotalArticles int `json:"total_articles"`
	TotalBids     int `json:"total_bids"`
	NewBids       int `json:"new_bids"`
	NotifiedBids  int `json:"notified_bids"`
	ArchivedBids  int `json:"archived_bids"`
}
