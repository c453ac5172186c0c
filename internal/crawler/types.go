package crawler

import (
	"errors"
	"net/http"
	"time"
)

// FetchKind labels which endpoint a request targets.
type FetchKind string

// Supported fetch kinds.
const (
	FetchDetail   FetchKind = "detail"
	FetchComments FetchKind = "comments"
)

// Sentinel errors used to classify failures for a single ID.
var (
	// ErrStructural marks a page whose shape no longer matches the expected
	// layout, or whose mandatory fields are missing or unparseable.
	ErrStructural = errors.New("structural failure")
	// ErrUnexpectedStatus marks a primary fetch that did not return 200.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrChunkNotFound is returned by ChunkStore.Get for unknown names.
	ErrChunkNotFound = errors.New("chunk not found")
)

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Kind    FetchKind
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// OK reports whether the response carries a 200 status.
func (r FetchResponse) OK() bool {
	return r.StatusCode == http.StatusOK
}
