package skinport

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/skinrun/internal/cache"
	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/fetch"
)

const (
	initialBackoff = 500 * time.Millisecond
	backoffFactor  = 1.5
	maxBodyBytes   = 64 << 20
)

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Snippet    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("skinport: HTTP %d: %s", e.StatusCode, e.Snippet)
}

// Client reads the public Skinport listing and sales endpoints. Responses
// are cached through the shared store keyed by URL and parameters.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	store     cache.Store
	ttl       time.Duration
	retries   int
	sleep     fetch.Sleeper
}

// Option customises a Client
type Option func(*Client)

// WithHTTPClient replaces the transport client
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

// WithSleeper replaces the retry wait, mostly for tests
func WithSleeper(s fetch.Sleeper) Option { return func(c *Client) { c.sleep = s } }

// New creates a client. A nil store disables response caching.
func New(cfg config.SkinportConfig, store cache.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		store:     store,
		ttl:       cfg.TTL,
		retries:   cfg.Retries,
		sleep:     fetch.SleepContext,
	}
	if c.retries < 1 {
		c.retries = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Items returns the current listing snapshot for a marketplace
func (c *Client) Items(ctx context.Context, currency string, appID int) ([]Item, error) {
	var items []Item
	err := c.getJSON(ctx, "/items", map[string]string{
		"app_id":   strconv.Itoa(appID),
		"currency": currency,
		"tradable": "0",
	}, &items)
	if err != nil {
		return nil, fmt.Errorf("fetch items: %w", err)
	}
	return items, nil
}

// SalesHistory returns the aggregated 24h/7d/30d/90d sales windows
func (c *Client) SalesHistory(ctx context.Context, currency string, appID int) ([]Sale, error) {
	var sales []Sale
	err := c.getJSON(ctx, "/sales/history", map[string]string{
		"app_id":   strconv.Itoa(appID),
		"currency": currency,
	}, &sales)
	if err != nil {
		return nil, fmt.Errorf("fetch sales history: %w", err)
	}
	return sales, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string]string, out any) error {
	endpoint := c.baseURL + path
	key := cache.RequestKey(endpoint, params)

	if c.store != nil {
		if raw, ok := c.store.Get(ctx, key, c.ttl); ok {
			if err := json.Unmarshal(raw, out); err == nil {
				log.Debug().Str("endpoint", path).Msg("Skinport response served from cache")
				return nil
			}
			_ = c.store.Delete(ctx, key)
		}
	}

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	full := endpoint + "?" + q.Encode()

	backoff := initialBackoff
	brotliOK := true
	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		if attempt > 1 {
			if err := c.sleep(ctx, backoff); err != nil {
				return err
			}
			backoff = time.Duration(float64(backoff) * backoffFactor)
		}

		raw, err := c.fetch(ctx, full, brotliOK)
		if err == nil {
			if err = json.Unmarshal(raw, out); err == nil {
				if c.store != nil {
					c.store.Put(ctx, key, raw)
				}
				return nil
			}
			// retry without br in case the encoding was the problem
			brotliOK = false
			err = fmt.Errorf("decode %s: %w", path, err)
		}

		lastErr = err
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return err
		}
		log.Warn().Err(err).Str("endpoint", path).Int("attempt", attempt).Msg("Skinport request failed")
	}
	return fmt.Errorf("GET %s failed after %d attempts: %w", path, c.retries, lastErr)
}

func (c *Client) fetch(ctx context.Context, full string, acceptBrotli bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return nil, err
	}
	if acceptBrotli {
		req.Header.Set("Accept-Encoding", "br")
	} else {
		req.Header.Set("Accept-Encoding", "gzip")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := decodedBody(resp)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(raw)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Snippet: snippet}
	}
	return raw, nil
}

func decodedBody(resp *http.Response) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "br":
		return brotli.NewReader(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	default:
		return resp.Body, nil
	}
}
