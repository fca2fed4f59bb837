package models

import "time"

// Article is an in-flight article as it moves through a crawl run: the
// fetcher fills the listing fields, the content retriever fills the body.
type Article struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	PublishTime     string `json:"publish_time"`
	Digest          string `json:"digest"`
	ContentText     string `json:"content_text,omitempty"`
	ContentMarkdown string `json:"content_markdown,omitempty"`
	SourceID        string `json:"source_id"`
	SourceName      string `json:"source_name"`
}

// ArticleMeta is the persisted dedup marker for a crawled article. A row is
// written once per URL and never updated; its existence is the sole
// "already crawled" signal. Pages whose content changes after first crawl
// are not re-examined.
type ArticleMeta struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Author      string    `json:"author"`
	PublishTime string    `json:"publish_time"`
	Digest      string    `json:"digest"`
	CrawledTime time.Time `json:"crawled_time"`
	HasBidInfo  bool      `json:"has_bid_info"`
	BidCount    int       `json:"bid_count"`
}

// MetaFor builds the persisted marker for an article processed at now with
// bidCount extracted bids.
func (a *Article) MetaFor(now time.Time, bidCount int) *ArticleMeta {
	return &ArticleMeta{
		URL:         a.URL,
		Title:       a.Title,
		Author:      a.Author,
		PublishTime: a.PublishTime,
		Digest:      a.Digest,
		CrawledTime: now,
		HasBidInfo:  bidCount > 0,
		BidCount:    bidCount,
	}
}
