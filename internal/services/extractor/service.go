package extractor

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// Service implements BidExtractor. It dispatches article text to a
// source-specific parser and stamps identity and provenance onto the
// records the parser produced.
type Service struct {
	parsers       map[string]interfaces.BidParser
	defaultParser interfaces.BidParser
	logger        arbor.ILogger
}

// NewService creates a bid extractor with the built-in parser registry.
// Sources without a registered parser use the default parser.
func NewService(config *common.Config, logger arbor.ILogger) interfaces.BidExtractor {
	defaultParser := NewDefaultParser(config.Extractor, logger)
	return &Service{
		parsers: map[string]interfaces.BidParser{
			"default": defaultParser,
			"大单网":     NewDadanwangParser(logger),
		},
		defaultParser: defaultParser,
		logger:        logger,
	}
}

// Extract runs the parser registered for the article's source and returns
// finished bid records. Unknown sources fall back to the default parser.
func (s *Service) Extract(article *models.Article) []*models.BidRecord {
	if article == nil || article.ContentText == "" {
		s.logger.Warn().Msg("Empty article content received for extraction")
		return nil
	}

	parser, ok := s.parsers[article.SourceName]
	if !ok {
		parser = s.defaultParser
	}

	bids := parser.Parse(article)

	now := time.Now().UTC()
	for _, bid := range bids {
		bid.ID = common.BidID(bid.ProjectName, bid.Purchaser)
		bid.SourceURL = article.URL
		bid.SourceTitle = article.Title
		bid.ExtractedTime = now
		bid.Status = models.BidStatusNew
	}

	s.logger.Info().
		Str("url", article.URL).
		Str("source", article.SourceName).
		Int("bids", len(bids)).
		Msg("Extraction complete")

	return bids
}
