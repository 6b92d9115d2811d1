package skinport

// Item is one entry of the /items listing snapshot
type Item struct {
	MarketHashName string   `json:"market_hash_name"`
	Currency       string   `json:"currency"`
	SuggestedPrice *float64 `json:"suggested_price"`
	ItemPage       string   `json:"item_page"`
	MarketPage     string   `json:"market_page"`
	MinPrice       *float64 `json:"min_price"`
	MaxPrice       *float64 `json:"max_price"`
	MeanPrice      *float64 `json:"mean_price"`
	MedianPrice    *float64 `json:"median_price"`
	Quantity       int      `json:"quantity"`
	CreatedAt      int64    `json:"created_at"`
	UpdatedAt      int64    `json:"updated_at"`
}

// Period aggregates the sales of one trailing window
type Period struct {
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	Avg    *float64 `json:"avg"`
	Median *float64 `json:"median"`
	Volume int      `json:"volume"`
}

// avg returns the window average, 0 when absent
func (p *Period) avg() float64 {
	if p == nil || p.Avg == nil {
		return 0
	}
	return *p.Avg
}

func (p *Period) volume() int {
	if p == nil {
		return 0
	}
	return p.Volume
}

// Sale is one entry of the /sales/history aggregate
type Sale struct {
	MarketHashName string  `json:"market_hash_name"`
	Currency       string  `json:"currency"`
	ItemPage       string  `json:"item_page"`
	MarketPage     string  `json:"market_page"`
	Last24Hours    *Period `json:"last_24_hours"`
	Last7Days      *Period `json:"last_7_days"`
	Last30Days     *Period `json:"last_30_days"`
	Last90Days     *Period `json:"last_90_days"`
}

// SalesStats flattens a Sale into the averages and volumes the scorer uses.
// Absent windows are zero.
type SalesStats struct {
	Avg24h    float64
	Avg7d     float64
	Avg30d    float64
	Avg90d    float64
	Volume24h int
	Volume7d  int
	Volume30d int
}

// Stats flattens the sale windows
func (s Sale) Stats() SalesStats {
	return SalesStats{
		Avg24h:    s.Last24Hours.avg(),
		Avg7d:     s.Last7Days.avg(),
		Avg30d:    s.Last30Days.avg(),
		Avg90d:    s.Last90Days.avg(),
		Volume24h: s.Last24Hours.volume(),
		Volume7d:  s.Last7Days.volume(),
		Volume30d: s.Last30Days.volume(),
	}
}

// SalesMap indexes sales by market hash name, skipping unnamed entries
func SalesMap(sales []Sale) map[string]Sale {
	m := make(map[string]Sale, len(sales))
	for _, s := range sales {
		if s.MarketHashName == "" {
			continue
		}
		m[s.MarketHashName] = s
	}
	return m
}
