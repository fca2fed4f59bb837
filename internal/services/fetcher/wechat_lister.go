package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/tenderwatch/internal/common"
	"github.com/ternarybob/tenderwatch/internal/interfaces"
	"github.com/ternarybob/tenderwatch/internal/models"
)

const appmsgEndpoint = "https://mp.weixin.qq.com/cgi-bin/appmsg"

// Upstream result codes carried in base_resp.ret
const (
	retOK             = 0
	retSessionExpired = 200003
	retFreqControl    = 200013
)

type appmsgResponse struct {
	BaseResp struct {
		Ret    int    `json:"ret"`
		ErrMsg string `json:"err_msg"`
	} `json:"base_resp"`
	AppMsgList []struct {
		Title      string `json:"title"`
		Link       string `json:"link"`
		Author     string `json:"author"`
		Digest     string `json:"digest"`
		CreateTime int64  `json:"create_time"`
	} `json:"app_msg_list"`
}

// WeChatLister lists a public account's article feed through the MP
// platform API, one page per call. It only translates the wire protocol;
// pagination, retries and politeness belong to the fetcher service.
type WeChatLister struct {
	client *http.Client
	config common.FetcherConfig
	logger arbor.ILogger
}

// NewWeChatLister creates a lister backed by the MP appmsg endpoint.
func NewWeChatLister(config common.FetcherConfig, logger arbor.ILogger) *WeChatLister {
	return &WeChatLister{
		client: &http.Client{Timeout: config.RequestTimeout},
		config: config,
		logger: logger,
	}
}

// ListPage fetches one page of the source's article listing. The upstream
// result code maps onto the fetch sentinels: frequency control becomes
// ErrRateLimited, an expired session becomes ErrAuthExpired.
func (l *WeChatLister) ListPage(ctx context.Context, source *models.SourceAccount, begin, size int) ([]*models.Article, error) {
	params := url.Values{}
	params.Set("action", "list_ex")
	params.Set("begin", strconv.Itoa(begin))
	params.Set("count", strconv.Itoa(size))
	params.Set("fakeid", source.FakeID)
	params.Set("token", source.Token)
	params.Set("type", "9")
	params.Set("lang", "zh_CN")
	params.Set("f", "json")
	params.Set("ajax", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, appmsgEndpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}
	req.Header.Set("User-Agent", l.config.UserAgent)
	req.Header.Set("Cookie", source.Cookie)

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list request returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read list response: %w", err)
	}

	var payload appmsgResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}

	switch payload.BaseResp.Ret {
	case retOK:
	case retFreqControl:
		return nil, fmt.Errorf("source %s at offset %d: %w", source.Name, begin, interfaces.ErrRateLimited)
	case retSessionExpired:
		return nil, fmt.Errorf("source %s: %w", source.Name, interfaces.ErrAuthExpired)
	default:
		return nil, fmt.Errorf("source %s: upstream error ret=%d msg=%s", source.Name, payload.BaseResp.Ret, payload.BaseResp.ErrMsg)
	}

	articles := make([]*models.Article, 0, len(payload.AppMsgList))
	for _, item := range payload.AppMsgList {
		if item.Link == "" {
			continue
		}
		articles = append(articles, &models.Article{
			URL:         item.Link,
			Title:       item.Title,
			Author:      item.Author,
			Digest:      item.Digest,
			PublishTime: time.Unix(item.CreateTime, 0).Format("2006-01-02 15:04:05"),
		})
	}

	return articles, nil
}
