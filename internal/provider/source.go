package provider

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sawpanic/skinrun/internal/config"
	"github.com/sawpanic/skinrun/internal/models"
)

// OutcomeKind classifies one attempt against a source
type OutcomeKind int

const (
	OutcomeOK            OutcomeKind = iota // priced listing
	OutcomeRetryable                        // transport error, timeout, non-2xx, malformed body
	OutcomeRateLimited                      // throttling status
	OutcomeTerminalEmpty                    // well-formed answer with no price
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTerminalEmpty:
		return "terminal_empty"
	default:
		return "unknown"
	}
}

// Listing is the priced payload of a successful lookup
type Listing struct {
	Price  decimal.Decimal
	Volume int
}

// Outcome is the tagged result every Source returns. Listing is only
// meaningful for OutcomeOK; Err carries the cause of a failure.
type Outcome struct {
	Kind    OutcomeKind
	Listing Listing
	Err     error
}

// Request identifies one item lookup
type Request struct {
	Item          string
	Currency      string
	MarketplaceID int
}

// Source is one marketplace price endpoint
type Source interface {
	Name() string
	Role() models.Role
	Lookup(ctx context.Context, req Request, headers http.Header) Outcome
}

// NewHTTPClient returns a client whose transport caps simultaneous
// connections per host at maxConns. Timeouts are applied per request.
func NewHTTPClient(maxConns int) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          maxConns * 2,
			MaxIdleConnsPerHost:   maxConns,
			MaxConnsPerHost:       maxConns,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
		},
	}
}

// New builds a source from configuration
func New(cfg config.SourceConfig, role models.Role, client *http.Client) (Source, error) {
	b := newBase(cfg, role, client)
	switch cfg.Kind {
	case config.KindDirect:
		return &DirectSource{base: b}, nil
	case config.KindRender:
		return &RenderSource{base: b}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// BuildAll builds every configured source in priority order. The first
// source plays the primary role, the rest are fallbacks.
func BuildAll(cfgs []config.SourceConfig, client *http.Client) ([]Source, error) {
	out := make([]Source, 0, len(cfgs))
	for i, c := range cfgs {
		role := models.RoleFallback
		if i == 0 {
			role = models.RolePrimary
		}
		s, err := New(c, role, client)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", c.Name, err)
		}
		out = append(out, s)
	}
	return out, nil
}
