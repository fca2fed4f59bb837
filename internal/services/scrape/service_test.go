package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ternarybob/tenderwatch/internal/common"
)

func testScrapeConfig() common.ScrapeConfig {
	return common.ScrapeConfig{
		RetryCount:     2,
		RetryDelay:     10 * time.Millisecond,
		RequestTimeout: time.Second,
		RequestsPerSec: 100,
		UserAgent:      "test-agent",
	}
}

func TestRetrieve_ExtractsArticleBody(t *testing.T) {
	page := `<html><head><title>公告</title></head><body>
		<div id="js_content">
			<p>1项目名称：测试项目</p>
			<p>预算金额：<strong>10万元</strong></p>
		</div>
		<div class="footer">页脚内容不应出现</div>
	</body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	svc := NewService(testScrapeConfig(), common.GetLogger())

	text, markdown, err := svc.Retrieve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if !strings.Contains(text, "项目名称：测试项目") {
		t.Errorf("text missing body content: %q", text)
	}
	if strings.Contains(text, "页脚内容") {
		t.Errorf("text contains content outside the article body: %q", text)
	}
	if !strings.Contains(markdown, "**10万元**") {
		t.Errorf("markdown rendition missing emphasis: %q", markdown)
	}
}

func TestRetrieve_FallsBackToBody(t *testing.T) {
	page := `<html><body><p>项目名称：没有正文容器的页面</p></body></html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer server.Close()

	svc := NewService(testScrapeConfig(), common.GetLogger())

	text, _, err := svc.Retrieve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Retrieve error: %v", err)
	}
	if !strings.Contains(text, "没有正文容器的页面") {
		t.Errorf("text = %q", text)
	}
}

func TestRetrieve_RetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`<html><body><div id="js_content">恢复后的正文</div></body></html>`))
	}))
	defer server.Close()

	svc := NewService(testScrapeConfig(), common.GetLogger())

	text, _, err := svc.Retrieve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Retrieve error after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if !strings.Contains(text, "恢复后的正文") {
		t.Errorf("text = %q", text)
	}
}

func TestRetrieve_ExhaustedRetriesReturnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	svc := NewService(testScrapeConfig(), common.GetLogger())

	if _, _, err := svc.Retrieve(context.Background(), server.URL); err == nil {
		t.Fatal("expected error after exhausted retries")
	}
}
