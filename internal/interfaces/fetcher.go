package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/tenderwatch/internal/models"
)

// Fetcher outcome sentinels. A page fetch either succeeds, trips the
// upstream's soft rate limit (retryable at the same offset after a
// cooldown), or reports expired credentials (aborts the whole source).
var (
	// ErrRateLimited - the upstream asked us to slow down; the current
	// offset may be retried after a cooldown
	ErrRateLimited = errors.New("fetch: rate limited")

	// ErrAuthExpired - the source's credentials are no longer valid;
	// no further pages can be fetched for this source
	ErrAuthExpired = errors.New("fetch: auth expired")
)

// ArticleLister - one page of a source's article listing.
// Implementations talk to the upstream platform; the fetcher owns
// pagination, retries and politeness on top of this.
type ArticleLister interface {
	// ListPage returns articles starting at offset begin, at most size.
	// A short or empty page means the listing is exhausted.
	ListPage(ctx context.Context, source *models.SourceAccount, begin, size int) ([]*models.Article, error)
}

// ArticleFetcher - interface for collecting new articles from sources
type ArticleFetcher interface {
	// FetchArticles walks a source's listing and returns articles that
	// pass the keyword filter, up to the configured cap
	FetchArticles(ctx context.Context, source *models.SourceAccount) ([]*models.Article, error)

	// FetchAllSources aggregates FetchArticles across enabled sources.
	// A failing source is logged and skipped; it never aborts the others.
	FetchAllSources(ctx context.Context, sources []models.SourceAccount) ([]*models.Article, error)
}
