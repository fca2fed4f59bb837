package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// BidStorage implements the BidStorage interface for Badger. Records are
// keyed by their deterministic ID, so re-extracting the same tender from
// a re-crawled article collides instead of duplicating.
type BidStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewBidStorage creates a new BidStorage instance
func NewBidStorage(db *BadgerDB, logger arbor.ILogger) interfaces.BidStorage {
	return &BidStorage{
		db:     db,
		logger: logger,
	}
}

// SaveBids persists records keyed by ID and returns only those that were
// not already stored. Existing records keep their original fields and
// status; a partial failure keeps everything saved so far.
func (s *BidStorage) SaveBids(ctx context.Context, bids []*models.BidRecord) ([]*models.BidRecord, error) {
	var saved []*models.BidRecord

	for _, bid := range bids {
		err := s.db.Store().Insert(bid.ID, bid)
		if errors.Is(err, badgerhold.ErrKeyExists) {
			s.logger.Debug().Str("id", bid.ID).Str("project", bid.ProjectName).Msg("Bid already stored, skipping")
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("failed to save bid %s: %w", bid.ID, err)
		}
		saved = append(saved, bid)
	}

	return saved, nil
}

// GetBid returns the record for an ID, or nil if absent
func (s *BidStorage) GetBid(ctx context.Context, id string) (*models.BidRecord, error) {
	var bid models.BidRecord
	err := s.db.Store().Get(id, &bid)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bid: %w", err)
	}
	return &bid, nil
}

// ListBids returns records filtered by status, newest first. An empty
// status returns all records.
func (s *BidStorage) ListBids(ctx context.Context, status string, limit int) ([]*models.BidRecord, error) {
	query := &badgerhold.Query{}
	if status != "" {
		query = badgerhold.Where("Status").Eq(status).Index("Status")
	}
	query = query.SortBy("ExtractedTime").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}

	var bids []*models.BidRecord
	if err := s.db.Store().Find(&bids, query); err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	return bids, nil
}

// UpdateBidStatus transitions a record to the given status and stamps the
// update time.
func (s *BidStorage) UpdateBidStatus(ctx context.Context, id string, status string) error {
	if !models.ValidBidStatus(status) {
		return fmt.Errorf("invalid bid status %q", status)
	}

	var bid models.BidRecord
	err := s.db.Store().Get(id, &bid)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return fmt.Errorf("bid %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get bid for status update: %w", err)
	}

	bid.Status = status
	bid.UpdatedTime = time.Now().UTC()

	if err := s.db.Store().Update(id, &bid); err != nil {
		return fmt.Errorf("failed to update bid status: %w", err)
	}
	return nil
}

// CountBids returns the number of records with the given status, or all
// records for an empty status.
func (s *BidStorage) CountBids(ctx context.Context, status string) (int, error) {
	var query *badgerhold.Query
	if status != "" {
		query = badgerhold.Where("Status").Eq(status).Index("Status")
	}

	count, err := s.db.Store().Count(&models.BidRecord{}, query)
	if err != nil {
		return 0, fmt.Errorf("failed to count bids: %w", err)
	}
	return int(count), nil
}
