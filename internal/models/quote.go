package models

import (
	"github.com/shopspring/decimal"
)

// SourceTag records how a quote was obtained
type SourceTag string

const (
	SourcePrimary  SourceTag = "primary"  // priced by the first-priority source
	SourceFallback SourceTag = "fallback" // priced by a lower-priority source
	SourceNone     SourceTag = "none"     // source answered affirmatively with no price
	SourceError    SourceTag = "error"    // retries exhausted or the task failed
)

// Role is the priority role a configured source plays
type Role string

const (
	RolePrimary  Role = "primary"
	RoleFallback Role = "fallback"
)

// Tag maps a source role to the tag carried by priced quotes
func (r Role) Tag() SourceTag {
	if r == RolePrimary {
		return SourcePrimary
	}
	return SourceFallback
}

// PriceQuote is the result of one resolution for one item. It is never
// mutated after creation and is persisted to the cache verbatim.
type PriceQuote struct {
	Item              string              `json:"item"`
	CurrentPrice      decimal.NullDecimal `json:"current_price"`
	Volume7d          int                 `json:"volume_7d"`
	ExplosivenessHint float64             `json:"explosiveness_hint"`
	Source            SourceTag           `json:"source"`
	Origin            string              `json:"origin,omitempty"`
	Currency          string              `json:"currency"`
	MarketplaceID     int                 `json:"marketplace_id"`
}

// HasPrice reports whether the quote carries a usable price
func (q PriceQuote) HasPrice() bool {
	return q.CurrentPrice.Valid
}

// EmptyQuote builds a quote without a price
func EmptyQuote(item, currency string, marketplaceID int, tag SourceTag, origin string) PriceQuote {
	return PriceQuote{
		Item:          item,
		Source:        tag,
		Origin:        origin,
		Currency:      currency,
		MarketplaceID: marketplaceID,
	}
}
