package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/models"
)

const maxBodyBytes = 4 << 20

// base carries what every HTTP-backed source shares
type base struct {
	name     string
	role     models.Role
	baseURL  string
	client   *http.Client
	throttle map[int]bool
}

func newBase(cfg config.SourceConfig, role models.Role, client *http.Client) base {
	throttle := map[int]bool{http.StatusTooManyRequests: true}
	for _, code := range cfg.ThrottleStatuses {
		throttle[code] = true
	}
	if client == nil {
		client = http.DefaultClient
	}
	return base{
		name:     cfg.Name,
		role:     role,
		baseURL:  cfg.BaseURL,
		client:   client,
		throttle: throttle,
	}
}

func (b *base) Name() string      { return b.name }
func (b *base) Role() models.Role { return b.role }

// get performs the request and returns the body of a 2xx response. For
// anything else it returns the classified failure outcome instead.
func (b *base) get(ctx context.Context, url string, headers http.Header) ([]byte, *Outcome) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		o := retryable(b.name, ErrCodeTransport, "failed to build request", err)
		return nil, &o
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		code := ErrCodeTransport
		if errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeTimeout
		}
		o := retryable(b.name, code, "request failed", err)
		return nil, &o
	}
	defer resp.Body.Close()

	if b.throttle[resp.StatusCode] {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Outcome{
			Kind: OutcomeRateLimited,
			Err: &ProviderError{
				Provider:    b.name,
				Code:        ErrCodeRateLimited,
				Message:     "throttled",
				HTTPStatus:  resp.StatusCode,
				RateLimited: true,
			},
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Outcome{
			Kind: OutcomeRetryable,
			Err: &ProviderError{
				Provider:   b.name,
				Code:       ErrCodeHTTPStatus,
				Message:    "unexpected status",
				HTTPStatus: resp.StatusCode,
			},
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		code := ErrCodeTransport
		if errors.Is(err, context.DeadlineExceeded) {
			code = ErrCodeTimeout
		}
		o := retryable(b.name, code, fmt.Sprintf("failed to read body: %v", err), err)
		return nil, &o
	}
	return body, nil
}
