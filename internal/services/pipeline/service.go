// -----------------------------------------------------------------------
// Crawl Pipeline - sequences fetch, dedupe, retrieve, extract, persist
// and notify for one run, with progress reporting and a single-run gate
// -----------------------------------------------------------------------

package pipeline

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// Service implements CrawlController. At most one run executes at a
// time; Start refuses concurrent runs instead of queueing them.
type Service struct {
	config    *common.Config
	fetcher   interfaces.ArticleFetcher
	retriever interfaces.ContentRetriever
	extractor interfaces.BidExtractor
	storage   interfaces.StorageManager
	notifier  interfaces.Notifier
	logger    arbor.ILogger
	tracker   *statusTracker
}

// NewService creates the crawl pipeline controller.
func NewService(
	config *common.Config,
	fetcher interfaces.ArticleFetcher,
	retriever interfaces.ContentRetriever,
	extractor interfaces.BidExtractor,
	storage interfaces.StorageManager,
	notifier interfaces.Notifier,
	logger arbor.ILogger,
) *Service {
	return &Service{
		config:    config,
		fetcher:   fetcher,
		retriever: retriever,
		extractor: extractor,
		storage:   storage,
		notifier:  notifier,
		logger:    logger,
		tracker:   newStatusTracker(),
	}
}

// Start launches a crawl run in the background. Returns false and makes
// no changes when a run is already in flight.
func (s *Service) Start(ctx context.Context) bool {
	if !s.tracker.tryAcquire() {
		s.logger.Warn().Msg("Crawl already running, start refused")
		return false
	}

	runID := common.NewRunID()
	s.logger.Info().Str("run_id", runID).Msg("Crawl run started")

	common.SafeGo(s.logger, "crawlRun", func() {
		defer s.tracker.release()
		defer func() {
			if r := recover(); r != nil {
				s.failPanic(r)
			}
		}()
		s.run(ctx, s.tracker)
	})

	return true
}

// RunOnce executes a crawl run synchronously under the same gate.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	if !s.tracker.tryAcquire() {
		return fmt.Errorf("crawl already running")
	}
	defer s.tracker.release()
	defer func() {
		if r := recover(); r != nil {
			s.failPanic(r)
		}
		if status := s.tracker.Snapshot(); status.LastError != "" {
			err = fmt.Errorf("crawl run failed: %s", status.LastError)
		}
	}()

	s.run(ctx, s.tracker)
	return nil
}

// Status returns a snapshot of the current or last run.
func (s *Service) Status() models.CrawlStatus {
	return s.tracker.Snapshot()
}

// failPanic converts a panic inside the run into a failed status so the
// gate never stays stuck and the panic is visible to pollers.
func (s *Service) failPanic(r any) {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	s.logger.Error().
		Str("panic", fmt.Sprintf("%v", r)).
		Str("stack", string(buf[:n])).
		Msg("Crawl run panicked")
	s.tracker.Fail(fmt.Sprintf("%v", r))
}

// run executes the staged sequence for one crawl, reporting progress
// through the sink.
func (s *Service) run(ctx context.Context, sink interfaces.StatusSink) {
	sink.Update(0, 0, "正在获取文章列表...")

	articles, err := s.fetcher.FetchAllSources(ctx, s.config.EnabledSources())
	if err != nil {
		s.logger.Error().Err(err).Msg("Article fetch failed")
		sink.Fail(err.Error())
		return
	}
	if len(articles) == 0 {
		sink.Update(-1, 0, "未获取到文章列表")
		return
	}

	newArticles, err := s.filterUnseen(ctx, articles)
	if err != nil {
		sink.Fail(err.Error())
		return
	}

	sink.Update(-1, len(newArticles),
		fmt.Sprintf("共发现 %d 篇文章，其中 %d 篇未爬取。", len(articles), len(newArticles)))
	if len(newArticles) == 0 {
		return
	}

	processed, newBids := s.processArticles(ctx, newArticles, sink)
	if processed == 0 {
		sink.Update(-1, -1, "文章抓取完成，但未获取到内容。")
		return
	}

	if len(newBids) > 0 {
		s.notify(ctx, newBids, sink)
		sink.Update(len(newArticles), len(newArticles),
			fmt.Sprintf("爬取完成，新增 %d 条招标信息。", len(newBids)))
	} else {
		sink.Update(-1, -1, "爬取完成，本次未发现新的招标信息。")
	}
}

// filterUnseen de-duplicates the batch by URL (first occurrence wins)
// and drops URLs that already carry a stored marker, before any content
// retrieval cost is spent on them.
func (s *Service) filterUnseen(ctx context.Context, articles []*models.Article) ([]*models.Article, error) {
	seen := make(map[string]bool, len(articles))
	var fresh []*models.Article

	for _, article := range articles {
		url := trimURL(article.URL)
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		crawled, err := s.storage.ArticleStorage().IsURLSeen(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("failed to check crawled articles: %w", err)
		}
		if !crawled {
			article.URL = url
			fresh = append(fresh, article)
		}
	}

	return fresh, nil
}

// processArticles retrieves, extracts and persists each article in turn.
// Returns the count of articles with usable content and the batch of
// newly persisted bids.
func (s *Service) processArticles(ctx context.Context, articles []*models.Article, sink interfaces.StatusSink) (int, []*models.BidRecord) {
	sink.Update(0, len(articles), "正在批量爬取文章内容...")

	processed := 0
	var newBids []*models.BidRecord

	for i, article := range articles {
		sink.Update(i+1, len(articles), fmt.Sprintf("正在爬取: %s...", truncateTitle(article.Title)))

		text, markdown, err := s.retriever.Retrieve(ctx, article.URL)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", article.URL).Msg("Content retrieval failed, skipping article")
			continue
		}
		if text == "" {
			continue
		}
		article.ContentText = text
		article.ContentMarkdown = markdown
		processed++

		bids := s.extractor.Extract(article)

		saved, err := s.storage.BidStorage().SaveBids(ctx, bids)
		if err != nil {
			s.logger.Error().Err(err).Str("url", article.URL).Msg("Failed to persist bids")
			// Bids saved before the failure stay; the article marker is
			// not written so the URL is retried next run.
			newBids = append(newBids, saved...)
			continue
		}
		newBids = append(newBids, saved...)

		meta := article.MetaFor(time.Now().UTC(), len(bids))
		if err := s.storage.ArticleStorage().SaveArticleMeta(ctx, meta); err != nil {
			s.logger.Error().Err(err).Str("url", article.URL).Msg("Failed to save article marker")
		}
	}

	return processed, newBids
}

// notify attempts one digest for the run and transitions each bid on
// success. A notifier failure is reported, never retried here, and does
// not roll back persisted bids.
func (s *Service) notify(ctx context.Context, bids []*models.BidRecord, sink interfaces.StatusSink) {
	sink.Update(-1, -1, fmt.Sprintf("正在发送邮件通知 (%d 条)...", len(bids)))

	if err := s.notifier.Notify(ctx, bids); err != nil {
		s.logger.Error().Err(err).Int("bids", len(bids)).Msg("Notification failed, bids remain in status new")
		return
	}

	for _, bid := range bids {
		if err := s.storage.BidStorage().UpdateBidStatus(ctx, bid.ID, models.BidStatusNotified); err != nil {
			s.logger.Warn().Err(err).Str("id", bid.ID).Msg("Failed to mark bid notified")
		}
	}
}

func trimURL(url string) string {
	return strings.TrimSpace(url)
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= 30 {
		return title
	}
	return string(runes[:30])
}
