package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/models"
)

func testArticles() []*models.Article {
	return []*models.Article{
		{URL: "https://example.com/a", Title: "招标公告A", SourceName: "来源"},
		{URL: "https://example.com/b", Title: "招标公告B", SourceName: "来源"},
	}
}

func bidFor(id, project string) *models.BidRecord {
	return &models.BidRecord{
		ID:            id,
		ProjectName:   project,
		Budget:        "10万元",
		Purchaser:     "某单位",
		DocTime:       "3月1日起",
		ExtractedTime: time.Now().UTC(),
		Status:        models.BidStatusNew,
	}
}

func newTestPipeline(fetcher *mockFetcher, retriever *mockRetriever, extractor *mockExtractor, storage *memStorage, notifier *mockNotifier) *Service {
	config := common.NewDefaultConfig()
	return NewService(config, fetcher, retriever, extractor, storage, notifier, common.GetLogger())
}

func TestStart_RefusesConcurrentRuns(t *testing.T) {
	block := make(chan struct{})
	fetcher := &mockFetcher{block: block}
	svc := newTestPipeline(fetcher, &mockRetriever{}, &mockExtractor{}, newMemStorage(), &mockNotifier{})

	if !svc.Start(context.Background()) {
		t.Fatal("first Start returned false")
	}
	if svc.Start(context.Background()) {
		t.Error("second Start returned true while a run is in flight")
	}
	if !svc.Status().IsRunning {
		t.Error("status not marked running")
	}

	close(block)
	waitForIdle(t, svc)

	if !svc.Start(context.Background()) {
		t.Error("Start refused after previous run finished")
	}
	waitForIdle(t, svc)
}

func TestRunOnce_FullPipeline(t *testing.T) {
	storage := newMemStorage()
	fetcher := &mockFetcher{articles: testArticles()}
	retriever := &mockRetriever{content: map[string]string{
		"https://example.com/a": "内容A",
		"https://example.com/b": "内容B",
	}}
	extractor := &mockExtractor{bidsByContent: map[string][]*models.BidRecord{
		"内容A": {bidFor("aaaa000000000000", "项目甲")},
		"内容B": {bidFor("bbbb000000000000", "项目乙")},
	}}
	notifier := &mockNotifier{}

	svc := newTestPipeline(fetcher, retriever, extractor, storage, notifier)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	// Both bids persisted and transitioned after notifier success.
	for _, id := range []string{"aaaa000000000000", "bbbb000000000000"} {
		bid, _ := storage.BidStorage().GetBid(context.Background(), id)
		if bid == nil {
			t.Fatalf("bid %s not persisted", id)
		}
		if bid.Status != models.BidStatusNotified {
			t.Errorf("bid %s status = %q, want notified", id, bid.Status)
		}
	}

	// One notification for the whole run.
	if notifier.calls() != 1 {
		t.Errorf("notifier called %d times, want 1", notifier.calls())
	}

	// Article markers written.
	for _, url := range []string{"https://example.com/a", "https://example.com/b"} {
		seen, _ := storage.ArticleStorage().IsURLSeen(context.Background(), url)
		if !seen {
			t.Errorf("marker missing for %s", url)
		}
	}

	status := svc.Status()
	if status.IsRunning {
		t.Error("gate not cleared after run")
	}
	if !strings.Contains(status.Message, "新增 2 条") {
		t.Errorf("final message = %q", status.Message)
	}
}

func TestRunOnce_DedupesWithinBatchAndAgainstStore(t *testing.T) {
	storage := newMemStorage()
	// URL b is already marked as crawled.
	storage.ArticleStorage().SaveArticleMeta(context.Background(), &models.ArticleMeta{URL: "https://example.com/b"})

	articles := []*models.Article{
		{URL: "https://example.com/a", Title: "公告A"},
		{URL: " https://example.com/a ", Title: "公告A重复"},
		{URL: "https://example.com/b", Title: "公告B已爬取"},
	}
	fetcher := &mockFetcher{articles: articles}
	retriever := &mockRetriever{content: map[string]string{"https://example.com/a": "内容A"}}
	extractor := &mockExtractor{}
	notifier := &mockNotifier{}

	svc := newTestPipeline(fetcher, retriever, extractor, storage, notifier)
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	// Only URL a was new: total reflects the filtered batch.
	if total := svc.Status().Total; total != 1 {
		t.Errorf("Total = %d, want 1", total)
	}
}

func TestRunOnce_NoArticlesEndsEarly(t *testing.T) {
	svc := newTestPipeline(&mockFetcher{}, &mockRetriever{}, &mockExtractor{}, newMemStorage(), &mockNotifier{})

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	status := svc.Status()
	if status.Message != "未获取到文章列表" {
		t.Errorf("message = %q", status.Message)
	}
	if status.IsRunning {
		t.Error("gate not cleared")
	}
}

func TestRunOnce_AllSeenEndsEarly(t *testing.T) {
	storage := newMemStorage()
	storage.ArticleStorage().SaveArticleMeta(context.Background(), &models.ArticleMeta{URL: "https://example.com/a"})
	storage.ArticleStorage().SaveArticleMeta(context.Background(), &models.ArticleMeta{URL: "https://example.com/b"})

	notifier := &mockNotifier{}
	svc := newTestPipeline(&mockFetcher{articles: testArticles()}, &mockRetriever{}, &mockExtractor{}, storage, notifier)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if notifier.calls() != 0 {
		t.Error("notifier called despite no new articles")
	}
	if !strings.Contains(svc.Status().Message, "0 篇未爬取") {
		t.Errorf("message = %q", svc.Status().Message)
	}
}

func TestRunOnce_NoUsableContent(t *testing.T) {
	fetcher := &mockFetcher{articles: testArticles()}
	retriever := &mockRetriever{failURLs: map[string]bool{
		"https://example.com/a": true,
		"https://example.com/b": true,
	}}

	svc := newTestPipeline(fetcher, retriever, &mockExtractor{}, newMemStorage(), &mockNotifier{})
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	if svc.Status().Message != "文章抓取完成，但未获取到内容。" {
		t.Errorf("message = %q", svc.Status().Message)
	}
}

func TestRunOnce_RetrievalFailureSkipsArticleOnly(t *testing.T) {
	storage := newMemStorage()
	fetcher := &mockFetcher{articles: testArticles()}
	retriever := &mockRetriever{
		content:  map[string]string{"https://example.com/b": "内容B"},
		failURLs: map[string]bool{"https://example.com/a": true},
	}
	extractor := &mockExtractor{bidsByContent: map[string][]*models.BidRecord{
		"内容B": {bidFor("bbbb000000000000", "项目乙")},
	}}

	svc := newTestPipeline(fetcher, retriever, extractor, storage, &mockNotifier{})
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	// The failed URL gets no marker, so it is retried next run.
	seen, _ := storage.ArticleStorage().IsURLSeen(context.Background(), "https://example.com/a")
	if seen {
		t.Error("failed article must not be marked crawled")
	}
	bid, _ := storage.BidStorage().GetBid(context.Background(), "bbbb000000000000")
	if bid == nil {
		t.Error("surviving article's bid not persisted")
	}
}

func TestRunOnce_NotifierFailureKeepsBids(t *testing.T) {
	storage := newMemStorage()
	fetcher := &mockFetcher{articles: testArticles()[:1]}
	retriever := &mockRetriever{content: map[string]string{"https://example.com/a": "内容A"}}
	extractor := &mockExtractor{bidsByContent: map[string][]*models.BidRecord{
		"内容A": {bidFor("aaaa000000000000", "项目甲")},
	}}
	notifier := &mockNotifier{err: context.DeadlineExceeded}

	svc := newTestPipeline(fetcher, retriever, extractor, storage, notifier)
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	// The bid stays persisted in status new; nothing is rolled back.
	bid, _ := storage.BidStorage().GetBid(context.Background(), "aaaa000000000000")
	if bid == nil {
		t.Fatal("bid rolled back after notifier failure")
	}
	if bid.Status != models.BidStatusNew {
		t.Errorf("bid status = %q, want new", bid.Status)
	}
}

func TestRunOnce_PanicClearsGate(t *testing.T) {
	svc := NewService(common.NewDefaultConfig(), &panicFetcher{}, &mockRetriever{}, &mockExtractor{}, newMemStorage(), &mockNotifier{}, common.GetLogger())

	err := svc.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected error from panicked run")
	}

	status := svc.Status()
	if status.IsRunning {
		t.Error("gate stuck after panic")
	}
	if status.LastError == "" {
		t.Error("LastError not recorded")
	}

	// The gate must be reusable after a panic.
	if !svc.Start(context.Background()) {
		t.Error("Start refused after panicked run")
	}
	waitForIdle(t, svc)
}

// recordingSink captures every progress update the run reports.
type recordingSink struct {
	mu       sync.Mutex
	messages []string
	failures []string
}

func (r *recordingSink) Update(progress, total int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if message != "" {
		r.messages = append(r.messages, message)
	}
}

func (r *recordingSink) Fail(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, message)
}

func TestRun_ReportsProgressThroughSink(t *testing.T) {
	fetcher := &mockFetcher{articles: testArticles()[:1]}
	retriever := &mockRetriever{content: map[string]string{"https://example.com/a": "内容A"}}
	extractor := &mockExtractor{bidsByContent: map[string][]*models.BidRecord{
		"内容A": {bidFor("aaaa000000000000", "项目甲")},
	}}

	svc := newTestPipeline(fetcher, retriever, extractor, newMemStorage(), &mockNotifier{})

	sink := &recordingSink{}
	svc.run(context.Background(), sink)

	if len(sink.failures) != 0 {
		t.Fatalf("unexpected failures: %v", sink.failures)
	}
	wantMessages := []string{
		"正在获取文章列表...",
		"正在批量爬取文章内容...",
		"正在发送邮件通知 (1 条)...",
	}
	for _, want := range wantMessages {
		found := false
		for _, got := range sink.messages {
			if got == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("sink never received %q; messages: %v", want, sink.messages)
		}
	}
	last := sink.messages[len(sink.messages)-1]
	if !strings.Contains(last, "新增 1 条") {
		t.Errorf("final message = %q", last)
	}
}

func waitForIdle(t *testing.T, svc *Service) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !svc.Status().IsRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("run did not finish in time")
}
