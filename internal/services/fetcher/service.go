package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// Service implements ArticleFetcher. It owns the pagination loop on top
// of an ArticleLister: offset bookkeeping, bounded retries, rate-limit
// cooldowns, keyword filtering and the politeness delay between pages.
type Service struct {
	lister interfaces.ArticleLister
	config common.FetcherConfig
	logger arbor.ILogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewService creates an article fetcher on top of the given lister.
func NewService(lister interfaces.ArticleLister, config common.FetcherConfig, logger arbor.ILogger) *Service {
	return &Service{
		lister: lister,
		config: config,
		logger: logger,
		sleep:  sleepCtx,
	}
}

// FetchArticles walks one source's listing page by page and returns the
// articles that pass the source's keyword filter, up to the per-run cap.
// The offset advances only after a successful page; soft rate limits
// retry the same offset after a cooldown, expired credentials abort the
// source, and transient failures stop the source after bounded retries
// while keeping whatever was already collected.
func (s *Service) FetchArticles(ctx context.Context, source *models.SourceAccount) ([]*models.Article, error) {
	limit := s.articleCap(source)
	pageSize := source.PageSize
	if pageSize <= 0 {
		pageSize = s.config.DefaultPageSize
	}

	var collected []*models.Article
	offset := 0
	firstPage := true

	for len(collected) < limit {
		if !firstPage {
			if err := s.sleep(ctx, s.politenessDelay()); err != nil {
				return collected, err
			}
		}
		firstPage = false

		page, err := s.fetchPage(ctx, source, offset, pageSize)
		if err != nil {
			if errors.Is(err, interfaces.ErrAuthExpired) {
				s.logger.Warn().Str("source", source.Name).Msg("Source credentials expired, aborting source")
				return collected, err
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return collected, err
			}
			// Transient failure after retries: keep partial results.
			s.logger.Warn().Err(err).Str("source", source.Name).Int("offset", offset).
				Msg("Page fetch failed, stopping source with partial results")
			return collected, nil
		}

		for _, article := range page {
			if !source.MatchesKeywords(article.Title) {
				continue
			}
			collected = append(collected, article)
			if len(collected) >= limit {
				break
			}
		}

		if len(page) < pageSize {
			// Short page: the listing is exhausted.
			break
		}
		offset += pageSize
	}

	s.logger.Info().Str("source", source.Name).Int("articles", len(collected)).Msg("Source fetch complete")
	return collected, nil
}

// fetchPage fetches a single offset, absorbing soft rate limits with a
// cooldown and transient failures with fixed-delay retries. Both budgets
// come from the configured retry count. The offset is never advanced here.
func (s *Service) fetchPage(ctx context.Context, source *models.SourceAccount, offset, size int) ([]*models.Article, error) {
	rateLimitRetries := 0
	attempts := 0

	for {
		page, err := s.lister.ListPage(ctx, source, offset, size)
		if err == nil {
			return page, nil
		}

		if errors.Is(err, interfaces.ErrAuthExpired) {
			return nil, err
		}

		if errors.Is(err, interfaces.ErrRateLimited) {
			rateLimitRetries++
			if rateLimitRetries > s.config.RetryCount {
				return nil, err
			}
			s.logger.Warn().Str("source", source.Name).Int("offset", offset).
				Int("retry", rateLimitRetries).
				Msg("Rate limited, cooling down before retrying same offset")
			if serr := s.sleep(ctx, s.config.RateLimitCooldown); serr != nil {
				return nil, serr
			}
			continue
		}

		attempts++
		if attempts >= s.config.RetryCount {
			return nil, err
		}
		s.logger.Warn().Err(err).Str("source", source.Name).Int("offset", offset).
			Int("attempt", attempts).
			Msg("Page fetch failed, retrying")
		if serr := s.sleep(ctx, s.config.RetryDelay); serr != nil {
			return nil, serr
		}
	}
}

// FetchAllSources fetches every enabled source in turn and concatenates
// the results, stamping each article with its source. A failing source is
// skipped; it never aborts the others.
func (s *Service) FetchAllSources(ctx context.Context, sources []models.SourceAccount) ([]*models.Article, error) {
	var all []*models.Article

	for i := range sources {
		source := &sources[i]

		articles, err := s.FetchArticles(ctx, source)
		if err != nil && !errors.Is(err, interfaces.ErrAuthExpired) {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return all, err
			}
			s.logger.Warn().Err(err).Str("source", source.Name).Msg("Source fetch failed, continuing with other sources")
		}

		for _, article := range articles {
			article.SourceID = source.ID
			article.SourceName = source.Name
		}
		all = append(all, articles...)
	}

	return all, nil
}

func (s *Service) articleCap(source *models.SourceAccount) int {
	if source.ArticleLimit > 0 {
		return source.ArticleLimit
	}
	if s.config.MaxArticlesPerCrawl > 0 {
		return s.config.MaxArticlesPerCrawl
	}
	return 50
}

// politenessDelay draws a uniformly random inter-page delay from the
// configured [min,max] interval.
func (s *Service) politenessDelay() time.Duration {
	min := s.config.RequestDelayMin
	max := s.config.RequestDelayMax
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}

// sleepCtx sleeps for d unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
