package crawler

import (
	"context"
	"time"
)

// Fetcher issues a single blocking GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// ChunkStore persists opaque chunk payloads under a flat name space.
type ChunkStore interface {
	// Get returns ErrChunkNotFound when nothing is stored under name.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put overwrites any previous payload stored under name.
	Put(ctx context.Context, name string, data []byte) error
	// List returns every stored name in lexical order.
	List(ctx context.Context) ([]string, error)
}

// Pacer bounds the rate at which requests are issued.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Observer receives low-level measurements from the pipeline. Implementations
// must tolerate being called from a single goroutine at a high rate.
type Observer interface {
	ObserveFetch(kind FetchKind, statusCode int, d time.Duration)
	ObservePacingDelay(d time.Duration)
	ObserveSoftFailure(kind string)
	ObserveChunkLoad(found bool)
	ObserveChunkFlush(d time.Duration)
}

// NopObserver discards every measurement.
type NopObserver struct{}

// ObserveFetch implements Observer.
func (NopObserver) ObserveFetch(FetchKind, int, time.Duration) {}

// ObservePacingDelay implements Observer.
func (NopObserver) ObservePacingDelay(time.Duration) {}

// ObserveSoftFailure implements Observer.
func (NopObserver) ObserveSoftFailure(string) {}

// ObserveChunkLoad implements Observer.
func (NopObserver) ObserveChunkLoad(bool) {}

// ObserveChunkFlush implements Observer.
func (NopObserver) ObserveChunkFlush(time.Duration) {}
