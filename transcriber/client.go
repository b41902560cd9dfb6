package transcriber

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Connection reuse matters for dictation latency: the client is built once,
// lazily, and shared read-only across all subsequent provider calls.
var (
	sharedClient   atomic.Pointer[http.Client]
	sharedClientMu sync.Mutex
)

func httpClient() *http.Client {
	if c := sharedClient.Load(); c != nil {
		return c
	}
	sharedClientMu.Lock()
	defer sharedClientMu.Unlock()
	if c := sharedClient.Load(); c != nil {
		return c
	}
	c := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        2,
			MaxIdleConnsPerHost: 1,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
	sharedClient.Store(c)
	return c
}
