package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sawpanic/skinrun/internal/config"
)

const maxRenderVolume = 1000

// RenderSource reads the listing page render endpoint, which wraps the
// listing HTML in a JSON envelope
type RenderSource struct {
	base
}

type renderResponse struct {
	Success     bool   `json:"success"`
	ResultsHTML string `json:"results_html"`
	TotalCount  int    `json:"total_count"`
}

func (s *RenderSource) lookupURL(req Request) string {
	q := url.Values{}
	q.Set("start", "0")
	q.Set("count", "1")
	q.Set("currency", strconv.Itoa(config.SteamCurrencyID(req.Currency)))
	q.Set("format", "json")
	return fmt.Sprintf("%s/%d/%s/render?%s",
		strings.TrimRight(s.baseURL, "/"), req.MarketplaceID, url.PathEscape(req.Item), q.Encode())
}

// Lookup extracts the first listed price and uses the listing count as a
// capped volume proxy
func (s *RenderSource) Lookup(ctx context.Context, req Request, headers http.Header) Outcome {
	body, fail := s.get(ctx, s.lookupURL(req), headers)
	if fail != nil {
		return *fail
	}

	var rr renderResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return malformed(s.name, "invalid render JSON", err)
	}
	if !rr.Success {
		return malformed(s.name, "render reported failure", nil)
	}

	price, ok := ExtractRenderPrice(rr.ResultsHTML, req.Currency)
	if !ok {
		return Outcome{Kind: OutcomeTerminalEmpty}
	}

	volume := rr.TotalCount
	if volume > maxRenderVolume {
		volume = maxRenderVolume
	}
	if volume < 0 {
		volume = 0
	}
	return Outcome{
		Kind:    OutcomeOK,
		Listing: Listing{Price: price, Volume: volume},
	}
}
