package interfaces

import "context"

// ContentRetriever - interface for fetching article body content
type ContentRetriever interface {
	// Retrieve downloads the article page and returns its plain text
	// (fed to extraction) and a markdown rendition of the body (kept for
	// display). A retrieval failure skips the article, it does not fail
	// the crawl.
	Retrieve(ctx context.Context, url string) (text string, markdown string, err error)
}
