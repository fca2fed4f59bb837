package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

// mockFetcher returns a scripted article batch, optionally blocking until
// released so tests can observe an in-flight run.
type mockFetcher struct {
	articles []*models.Article
	err      error
	block    chan struct{}
}

func (m *mockFetcher) FetchArticles(ctx context.Context, source *models.SourceAccount) ([]*models.Article, error) {
	return m.articles, m.err
}

func (m *mockFetcher) FetchAllSources(ctx context.Context, sources []models.SourceAccount) ([]*models.Article, error) {
	if m.block != nil {
		<-m.block
	}
	return m.articles, m.err
}

type panicFetcher struct{}

func (p *panicFetcher) FetchArticles(ctx context.Context, source *models.SourceAccount) ([]*models.Article, error) {
	panic("fetcher exploded")
}

func (p *panicFetcher) FetchAllSources(ctx context.Context, sources []models.SourceAccount) ([]*models.Article, error) {
	panic("fetcher exploded")
}

// mockRetriever maps URL to content; URLs in failURLs return an error.
type mockRetriever struct {
	content  map[string]string
	failURLs map[string]bool
}

func (m *mockRetriever) Retrieve(ctx context.Context, url string) (string, string, error) {
	if m.failURLs[url] {
		return "", "", fmt.Errorf("retrieval failed for %s", url)
	}
	return m.content[url], "", nil
}

// mockExtractor yields one bid per article whose content is non-empty,
// with a deterministic ID derived from the content.
type mockExtractor struct {
	bidsByContent map[string][]*models.BidRecord
}

func (m *mockExtractor) Extract(article *models.Article) []*models.BidRecord {
	return m.bidsByContent[article.ContentText]
}

// mockNotifier records the batches it was asked to deliver.
type mockNotifier struct {
	mu      sync.Mutex
	batches [][]*models.BidRecord
	err     error
}

func (m *mockNotifier) Notify(ctx context.Context, bids []*models.BidRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.batches = append(m.batches, bids)
	return nil
}

func (m *mockNotifier) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// memStorage is an in-memory StorageManager for pipeline tests.
type memStorage struct {
	mu       sync.Mutex
	articles map[string]*models.ArticleMeta
	bids     map[string]*models.BidRecord
}

func newMemStorage() *memStorage {
	return &memStorage{
		articles: make(map[string]*models.ArticleMeta),
		bids:     make(map[string]*models.BidRecord),
	}
}

func (m *memStorage) ArticleStorage() interfaces.ArticleStorage { return (*memArticles)(m) }
func (m *memStorage) BidStorage() interfaces.BidStorage         { return (*memBids)(m) }

func (m *memStorage) GetStats(ctx context.Context) (*models.CrawlStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &models.CrawlStats{TotalArticles: len(m.articles), TotalBids: len(m.bids)}, nil
}

func (m *memStorage) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.articles = make(map[string]*models.ArticleMeta)
	m.bids = make(map[string]*models.BidRecord)
	return nil
}

func (m *memStorage) Close() error { return nil }

type memArticles memStorage

func (m *memArticles) IsURLSeen(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.articles[url]
	return ok, nil
}

func (m *memArticles) SaveArticleMeta(ctx context.Context, meta *models.ArticleMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.articles[meta.URL]; !ok {
		m.articles[meta.URL] = meta
	}
	return nil
}

func (m *memArticles) GetArticleMeta(ctx context.Context, url string) (*models.ArticleMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.articles[url], nil
}

func (m *memArticles) CountArticles(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.articles), nil
}

type memBids memStorage

func (m *memBids) SaveBids(ctx context.Context, bids []*models.BidRecord) ([]*models.BidRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var saved []*models.BidRecord
	for _, bid := range bids {
		if _, ok := m.bids[bid.ID]; ok {
			continue
		}
		stored := *bid
		m.bids[bid.ID] = &stored
		saved = append(saved, bid)
	}
	return saved, nil
}

func (m *memBids) GetBid(ctx context.Context, id string) (*models.BidRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bids[id], nil
}

func (m *memBids) ListBids(ctx context.Context, status string, limit int) ([]*models.BidRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.BidRecord
	for _, bid := range m.bids {
		if status == "" || bid.Status == status {
			out = append(out, bid)
		}
	}
	return out, nil
}

func (m *memBids) UpdateBidStatus(ctx context.Context, id string, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	bid, ok := m.bids[id]
	if !ok {
		return fmt.Errorf("bid %s not found", id)
	}
	bid.Status = status
	bid.UpdatedTime = time.Now()
	return nil
}

func (m *memBids) CountBids(ctx context.Context, status string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if status == "" {
		return len(m.bids), nil
	}
	count := 0
	for _, bid := range m.bids {
		if bid.Status == status {
			count++
		}
	}
	return count, nil
}
