// Package fetch implements the retrying HTTP layer shared by every source
// adapter: exponential backoff with jitter for transient failures, rotated
// client identities, and a politeness delay between consecutive requests.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries  = 3
	defaultBaseDelay   = 700 * time.Millisecond
	defaultJitterMax   = 300 * time.Millisecond
	defaultPoliteDelay = 900 * time.Millisecond
	httpTimeout        = 15 * time.Second
)

// userAgents are rotated across requests to reduce throttling. Taken from
// real desktop browsers; order is irrelevant.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36 Edg/119.0",
}

// ErrorKind classifies fetch failures for the caller.
type ErrorKind int

const (
	// KindTransient is only seen wrapped inside retries; Get never returns it.
	KindTransient ErrorKind = iota
	// KindExhausted means the retry ceiling was hit on mixed transient failures.
	KindExhausted
	// KindBlocked means every attempt was refused with 403/429 — the caller
	// should abandon the source rather than keep hammering it.
	KindBlocked
	// KindClient is a non-retryable client error such as 404.
	KindClient
)

// Error is a typed fetch failure.
type Error struct {
	Kind   ErrorKind
	Status int // last HTTP status seen, 0 for network errors
	URL    string
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindBlocked:
		return fmt.Sprintf("fetch %s: blocked (HTTP %d)", e.URL, e.Status)
	case KindExhausted:
		return fmt.Sprintf("fetch %s: retries exhausted: %v", e.URL, e.Err)
	case KindClient:
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsBlocked reports whether err is a fetch failure of kind Blocked.
func IsBlocked(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Kind == KindBlocked
}

// Options tunes a Client. Zero values take the defaults above.
type Options struct {
	MaxRetries  int
	BaseDelay   time.Duration
	JitterMax   time.Duration
	PoliteDelay time.Duration
	HTTPClient  *http.Client
}

// Client issues resilient GET requests. One Client is owned by one adapter
// run, so the politeness interval serializes that adapter's requests without
// affecting other sources.
type Client struct {
	http        *http.Client
	maxRetries  int
	baseDelay   time.Duration
	jitterMax   time.Duration
	politeDelay time.Duration

	mu       sync.Mutex
	lastReq  time.Time
	identity int // rotation counter
}

// New constructs a Client with the given options.
func New(opts Options) *Client {
	c := &Client{
		http:        opts.HTTPClient,
		maxRetries:  opts.MaxRetries,
		baseDelay:   opts.BaseDelay,
		jitterMax:   opts.JitterMax,
		politeDelay: opts.PoliteDelay,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: httpTimeout}
	}
	if c.maxRetries == 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.baseDelay == 0 {
		c.baseDelay = defaultBaseDelay
	}
	if c.jitterMax == 0 {
		c.jitterMax = defaultJitterMax
	}
	if c.politeDelay == 0 {
		c.politeDelay = defaultPoliteDelay
	}
	return c
}

// Get fetches url, retrying transient failures (network errors, 429/403/5xx)
// up to the retry ceiling with exponential backoff plus jitter. Non-retryable
// client errors return immediately with *Error{Kind: KindClient}.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	if err := c.waitPolite(ctx); err != nil {
		return nil, err
	}

	var (
		lastErr    error
		lastStatus int
		allBlocked = true
	)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseDelay<<uint(attempt-1) + randDuration(c.jitterMax)
			log.WithFields(log.Fields{"url": url, "attempt": attempt, "backoff": backoff}).
				Debug("retrying fetch")
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil, err
			}
		}

		body, status, err := c.attempt(ctx, url)
		if err == nil && status < 300 {
			return body, nil
		}

		lastStatus = status
		switch {
		case err != nil:
			lastErr = err
			allBlocked = false
		case status == http.StatusForbidden || status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("HTTP %d", status)
		case status >= 500:
			lastErr = fmt.Errorf("HTTP %d", status)
			allBlocked = false
		default:
			// 4xx other than 403/429: not worth retrying.
			return nil, &Error{Kind: KindClient, Status: status, URL: url}
		}
	}

	kind := KindExhausted
	if allBlocked && lastStatus != 0 {
		kind = KindBlocked
	}
	return nil, &Error{Kind: kind, Status: lastStatus, URL: url, Err: lastErr}
}

// attempt performs a single request with the next rotated identity.
func (c *Client) attempt(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", c.nextIdentity())
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

// waitPolite enforces the minimum spacing between consecutive requests from
// this client. The first request goes straight through.
func (c *Client) waitPolite(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Duration(0)
	if !c.lastReq.IsZero() {
		if since := time.Since(c.lastReq); since < c.politeDelay {
			wait = c.politeDelay - since
		}
	}
	c.lastReq = time.Now().Add(wait)
	c.mu.Unlock()

	if wait > 0 {
		return sleepCtx(ctx, wait)
	}
	return nil
}

func (c *Client) nextIdentity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ua := userAgents[c.identity%len(userAgents)]
	c.identity++
	return ua
}

func randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
