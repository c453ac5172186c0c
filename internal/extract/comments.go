package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/JakeFAU/catalog-harvester/internal/crawler"
)

// ErrFeedStatus marks a comment feed response with a non-success status.
// The extractor treats it as a soft failure.
var ErrFeedStatus = errors.New("comment feed returned non-success status")

// RawComment is one entry of the comment feed as served by the catalog.
type RawComment struct {
	Avatar    string  `json:"avatar"`
	Class     *string `json:"class"`
	Comment   string  `json:"comment"`
	CommentID uint64  `json:"commentid"`
	Posted    string  `json:"posted"`
	Username  *string `json:"username"`
}

// CommentFeed loads the raw comments attached to an item.
type CommentFeed interface {
	Comments(ctx context.Context, id uint64) ([]RawComment, error)
}

// HTTPCommentFeed reads the JSON comment feed through a crawler.Fetcher.
type HTTPCommentFeed struct {
	fetcher  crawler.Fetcher
	url      func(id uint64) string
	observer crawler.Observer
}

// NewHTTPCommentFeed builds a feed that requests url(id) for every item.
func NewHTTPCommentFeed(fetcher crawler.Fetcher, url func(id uint64) string, observer crawler.Observer) *HTTPCommentFeed {
	if observer == nil {
		observer = crawler.NopObserver{}
	}
	return &HTTPCommentFeed{fetcher: fetcher, url: url, observer: observer}
}

// Comments implements CommentFeed.
func (f *HTTPCommentFeed) Comments(ctx context.Context, id uint64) ([]RawComment, error) {
	start := time.Now()
	resp, err := f.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     f.url(id),
		Kind:    crawler.FetchComments,
		Headers: http.Header{"Accept": []string{"application/json"}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch comments for %d: %w", id, err)
	}
	f.observer.ObserveFetch(crawler.FetchComments, resp.StatusCode, time.Since(start))
	if !resp.OK() {
		return nil, fmt.Errorf("%w: %d", ErrFeedStatus, resp.StatusCode)
	}
	var raw []RawComment
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("decode comments for %d: %w", id, err)
	}
	return raw, nil
}
