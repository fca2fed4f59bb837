package interfaces

import "github.com/ternarybob/tenderwatch/internal/models"

// BidParser - one source-specific extraction strategy
type BidParser interface {
	// Parse extracts bid records from an article's text content. The
	// returned records carry no identity or provenance; the extractor
	// service stamps those.
	Parse(article *models.Article) []*models.BidRecord
}

// BidExtractor - interface for turning article content into bid records
type BidExtractor interface {
	// Extract selects the parser registered for the article's source
	// (falling back to the default parser), runs it, and stamps each
	// record with its deterministic ID, provenance and initial status
	Extract(article *models.Article) []*models.BidRecord
}
