package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sawpanic/skinrun/internal/config"
)

// DirectSource queries the JSON price overview endpoint
type DirectSource struct {
	base
}

type priceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
	Volume      string `json:"volume"`
}

func (s *DirectSource) lookupURL(req Request) string {
	q := url.Values{}
	q.Set("appid", strconv.Itoa(req.MarketplaceID))
	q.Set("currency", strconv.Itoa(config.SteamCurrencyID(req.Currency)))
	q.Set("market_hash_name", req.Item)
	return s.baseURL + "?" + q.Encode()
}

// Lookup fetches the lowest ask and 24h volume for one item
func (s *DirectSource) Lookup(ctx context.Context, req Request, headers http.Header) Outcome {
	body, fail := s.get(ctx, s.lookupURL(req), headers)
	if fail != nil {
		return *fail
	}

	var po priceOverview
	if err := json.Unmarshal(body, &po); err != nil {
		return malformed(s.name, "invalid price overview JSON", err)
	}
	if !po.Success {
		return malformed(s.name, "price overview reported failure", nil)
	}
	if po.LowestPrice == "" {
		return Outcome{Kind: OutcomeTerminalEmpty}
	}

	price, err := ParsePrice(po.LowestPrice, req.Currency)
	if err != nil {
		return malformed(s.name, "unparseable lowest_price "+strconv.Quote(po.LowestPrice), err)
	}
	if !price.IsPositive() {
		return Outcome{Kind: OutcomeTerminalEmpty}
	}

	return Outcome{
		Kind:    OutcomeOK,
		Listing: Listing{Price: price, Volume: parseVolume(po.Volume)},
	}
}
