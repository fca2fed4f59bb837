package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// ArticleStorage implements the ArticleStorage interface for Badger.
// Markers are keyed by URL; a key collision means the article was
// already crawled and the write is skipped.
type ArticleStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewArticleStorage creates a new ArticleStorage instance
func NewArticleStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ArticleStorage {
	return &ArticleStorage{
		db:     db,
		logger: logger,
	}
}

// IsURLSeen reports whether a dedup marker exists for the URL
func (s *ArticleStorage) IsURLSeen(ctx context.Context, url string) (bool, error) {
	var meta models.ArticleMeta
	err := s.db.Store().Get(url, &meta)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check article marker: %w", err)
	}
	return true, nil
}

// SaveArticleMeta writes the dedup marker for a processed article. A
// marker that already exists is left untouched.
func (s *ArticleStorage) SaveArticleMeta(ctx context.Context, meta *models.ArticleMeta) error {
	err := s.db.Store().Insert(meta.URL, meta)
	if errors.Is(err, badgerhold.ErrKeyExists) {
		s.logger.Debug().Str("url", meta.URL).Msg("Article marker already present, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to save article marker: %w", err)
	}
	return nil
}

// GetArticleMeta returns the marker for a URL, or nil if absent
func (s *ArticleStorage) GetArticleMeta(ctx context.Context, url string) (*models.ArticleMeta, error) {
	var meta models.ArticleMeta
	err := s.db.Store().Get(url, &meta)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article marker: %w", err)
	}
	return &meta, nil
}

// CountArticles returns the number of stored markers
func (s *ArticleStorage) CountArticles(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.ArticleMeta{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count article markers: %w", err)
	}
	return int(count), nil
}
