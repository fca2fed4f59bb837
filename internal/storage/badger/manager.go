package badger

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// Manager implements the StorageManager interface for Badger
type Manager struct {
	db      *BadgerDB
	article interfaces.ArticleStorage
	bid     interfaces.BidStorage
	logger  arbor.ILogger
}

// NewManager creates a new Badger storage manager
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (interfaces.StorageManager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:      db,
		article: NewArticleStorage(db, logger),
		bid:     NewBidStorage(db, logger),
		logger:  logger,
	}

	logger.Info().Msg("Badger storage manager initialized")

	return manager, nil
}

// ArticleStorage returns the article marker storage interface
func (m *Manager) ArticleStorage() interfaces.ArticleStorage {
	return m.article
}

// BidStorage returns the bid storage interface
func (m *Manager) BidStorage() interfaces.BidStorage {
	return m.bid
}

// GetStats aggregates stored article and bid counts
func (m *Manager) GetStats(ctx context.Context) (*models.CrawlStats, error) {
	articles, err := m.article.CountArticles(ctx)
	if err != nil {
		return nil, err
	}
	total, err := m.bid.CountBids(ctx, "")
	if err != nil {
		return nil, err
	}
	newBids, err := m.bid.CountBids(ctx, models.BidStatusNew)
	if err != nil {
		return nil, err
	}
	notified, err := m.bid.CountBids(ctx, models.BidStatusNotified)
	if err != nil {
		return nil, err
	}
	archived, err := m.bid.CountBids(ctx, models.BidStatusArchived)
	if err != nil {
		return nil, err
	}

	return &models.CrawlStats{
		TotalArticles: articles,
		TotalBids:     total,
		NewBids:       newBids,
		NotifiedBids:  notified,
		ArchivedBids:  archived,
	}, nil
}

// Reset drops all stored data
func (m *Manager) Reset(ctx context.Context) error {
	m.logger.Warn().Msg("Resetting storage, all data will be dropped")
	return m.db.Drop()
}

// Close runs a best-effort value log GC and closes the database
func (m *Manager) Close() error {
	if err := m.db.RunGC(); err != nil {
		m.logger.Debug().Err(err).Msg("Value log GC failed")
	}
	return m.db.Close()
}
