package models

import "time"

// Bid status values
const (
	BidStatusNew      = "new"
	BidStatusNotified = "notified"
	BidStatusArchived = "archived"
)

// BidRecord is a structured tender announcement extracted from article text.
// The ID is a deterministic hash of (ProjectName, Purchaser), so the same
// tender re-extracted from a re-crawled article collides with the stored row
// instead of creating a duplicate.
type BidRecord struct {
	ID            string    `json:"id"`
	ProjectName   string    `json:"project_name"`
	Budget        string    `json:"budget"`
	Purchaser     string    `json:"purchaser"`
	DocTime       string    `json:"doc_time"`
	ProjectNumber string    `json:"project_number,omitempty"`
	ServicePeriod string    `json:"service_period,omitempty"`
	Content       string    `json:"content,omitempty"`
	SourceURL     string    `json:"source_url"`
	SourceTitle   string    `json:"source_title"`
	ExtractedTime time.Time `json:"extracted_time"`
	Status        string    `json:"status" badgerholdIndex:"Status"`
	UpdatedTime   time.Time `json:"updated_time,omitzero"`
}

// ValidBidStatus reports whether s is one of the known bid statuses.
func ValidBidStatus(s string) bool {
	switch s {
	case BidStatusNew, BidStatusNotified, BidStatusArchived:
		return true
	}
	return false
}
