package interfaces

import (
	"context"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// ArticleStorage - interface for crawled-article dedup markers
type ArticleStorage interface {
	// IsURLSeen reports whether a marker exists for the URL
	IsURLSeen(ctx context.Context, url string) (bool, error)

	// SaveArticleMeta writes the marker for a processed article.
	// Writing an already-present URL is a no-op.
	SaveArticleMeta(ctx context.Context, meta *models.ArticleMeta) error

	// GetArticleMeta returns the marker for a URL, or nil if absent
	GetArticleMeta(ctx context.Context, url string) (*models.ArticleMeta, error)

	// CountArticles returns the number of stored markers
	CountArticles(ctx context.Context) (int, error)
}

// BidStorage - interface for extracted bid persistence
type BidStorage interface {
	// SaveBids persists records keyed by their deterministic ID and
	// returns only the records that were not already stored. Existing
	// records are left untouched.
	SaveBids(ctx context.Context, bids []*models.BidRecord) ([]*models.BidRecord, error)

	// GetBid returns the record for an ID, or nil if absent
	GetBid(ctx context.Context, id string) (*models.BidRecord, error)

	// ListBids returns records filtered by status; an empty status
	// returns all records, newest first
	ListBids(ctx context.Context, status string, limit int) ([]*models.BidRecord, error)

	// UpdateBidStatus transitions a record to the given status
	UpdateBidStatus(ctx context.Context, id string, status string) error

	// CountBids returns the number of records with the given status,
	// or all records for an empty status
	CountBids(ctx context.Context, status string) (int, error)
}

// StorageManager provides access to all storage implementations
type StorageManager interface {
	ArticleStorage() ArticleStorage
	BidStorage() BidStorage

	// GetStats aggregates stored article and bid counts
	GetStats(ctx context.Context) (*models.CrawlStats, error)

	// Reset drops all stored data
	Reset(ctx context.Context) error

	Close() error
}
