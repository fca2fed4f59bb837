package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/tenderwatch/internal/common"
)

// bodySelectors are tried in order to find the article body. WeChat
// article pages carry their content in #js_content.
var bodySelectors = []string{"#js_content", "div.rich_media_content", "article", "body"}

// Service implements ContentRetriever with a plain HTTP client, goquery
// extraction and per-domain rate limiting.
type Service struct {
	client    *http.Client
	converter *md.Converter
	config    common.ScrapeConfig
	logger    arbor.ILogger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewService creates a content retriever.
func NewService(config common.ScrapeConfig, logger arbor.ILogger) *Service {
	return &Service{
		client:    &http.Client{Timeout: config.RequestTimeout},
		converter: md.NewConverter("", true, nil),
		config:    config,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Retrieve downloads an article page and returns its plain text and a
// markdown rendition of the body. Transient failures are retried with a
// fixed delay up to the configured count.
func (s *Service) Retrieve(ctx context.Context, pageURL string) (string, string, error) {
	if err := s.limiterFor(pageURL).Wait(ctx); err != nil {
		return "", "", err
	}

	var lastErr error
	for attempt := 0; attempt <= s.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", "", ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		text, markdown, err := s.fetch(ctx, pageURL)
		if err == nil {
			return text, markdown, nil
		}
		lastErr = err
		s.logger.Warn().Err(err).Str("url", pageURL).Int("attempt", attempt+1).Msg("Content retrieval failed")
	}

	return "", "", fmt.Errorf("failed to retrieve %s: %w", pageURL, lastErr)
}

func (s *Service) fetch(ctx context.Context, pageURL string) (string, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", s.config.UserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}

	return s.extract(string(body))
}

// extract pulls the article body out of the page and returns its plain
// text alongside a markdown rendition.
func (s *Service) extract(html string) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", fmt.Errorf("failed to parse page: %w", err)
	}

	var selection *goquery.Selection
	for _, selector := range bodySelectors {
		if sel := doc.Find(selector); sel.Length() > 0 {
			selection = sel.First()
			break
		}
	}
	if selection == nil {
		return "", "", fmt.Errorf("no article body found")
	}

	text := normalizeWhitespace(selection.Text())
	if text == "" {
		return "", "", fmt.Errorf("article body is empty")
	}

	bodyHTML, err := goquery.OuterHtml(selection)
	if err != nil {
		return text, "", nil
	}
	markdown, err := s.converter.ConvertString(bodyHTML)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Markdown conversion failed, keeping plain text only")
		return text, "", nil
	}

	return text, markdown, nil
}

// limiterFor returns the rate limiter for the URL's host, creating it on
// first use.
func (s *Service) limiterFor(pageURL string) *rate.Limiter {
	host := ""
	if u, err := url.Parse(pageURL); err == nil {
		host = u.Host
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, ok := s.limiters[host]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.config.RequestsPerSec), 1)
		s.limiters[host] = limiter
	}
	return limiter
}

// normalizeWhitespace collapses runs of blank lines and trims each line.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
