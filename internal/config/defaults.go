package config

import "time"

const (
	DirectBaseURL = "https://steamcommunity.com/market/priceoverview"
	RenderBaseURL = "https://steamcommunity.com/market/listings"
)

// Default returns the built-in configuration used when no file is given
func Default() *Config {
	return &Config{
		Sources: []SourceConfig{
			{
				Name:             "steam_direct",
				Kind:             KindDirect,
				BaseURL:          DirectBaseURL,
				InitialDelay:     2 * time.Second,
				MaxDelay:         10 * time.Second,
				ConcurrencyLimit: 3,
				Timeout:          15 * time.Second,
				Enabled:          true,
				ThrottleStatuses: []int{429, 403},
			},
			{
				Name:             "steam_render",
				Kind:             KindRender,
				BaseURL:          RenderBaseURL,
				InitialDelay:     2500 * time.Millisecond,
				MaxDelay:         12 * time.Second,
				ConcurrencyLimit: 3,
				Timeout:          20 * time.Second,
				Enabled:          true,
				ThrottleStatuses: []int{429, 403},
			},
		},
		Rate: RateConfig{
			IncreaseFactor: 2.0,
			DecayFactor:    0.95,
		},
		Fetch: FetchConfig{
			Concurrency:    3,
			MaxConnections: 12,
			ChunkSize:      8,
			ChunkCooldown:  4500 * time.Millisecond,
			MaxRetries:     5,
			BackoffBase:    5 * time.Second,
			BackoffMax:     30 * time.Second,
			JitterMin:      100 * time.Millisecond,
			JitterMax:      500 * time.Millisecond,
		},
		Breaker: BreakerConfig{
			Enabled:             true,
			ConsecutiveFailures: 8,
			FailureRatio:        0.6,
			MinRequests:         20,
			Interval:            60 * time.Second,
			OpenTimeout:         60 * time.Second,
		},
		Cache: CacheConfig{
			Backend:     "disk",
			Dir:         "~/.skinport_skin_cache",
			TTL:         12 * time.Hour,
			SweepMaxAge: 12 * time.Hour,
			RedisPrefix: "skinrun:",
		},
		Skinport: SkinportConfig{
			BaseURL:   "https://api.skinport.com/v1",
			UserAgent: "skinrun/1.0",
			Timeout:   30 * time.Second,
			TTL:       5 * time.Minute,
			Retries:   3,
		},
		Scoring: DefaultScoring(),
		Postgres: PostgresConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8090",
			SweepInterval: time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// DefaultScoring returns the stock scoring constants
func DefaultScoring() ScoringConfig {
	return ScoringConfig{
		Weights: WeightsConfig{
			Momentum:     0.25,
			Scarcity:     0.20,
			Discount:     0.15,
			Volatility:   0.15,
			VolumeSurge:  0.10,
			Sentiment:    0.10,
			Manipulation: -0.15,
		},
		Signals: SignalsConfig{
			MomentumShortCap:      3.0,
			MomentumMedCap:        2.0,
			ScarcityThreshold:     15,
			ScarcityVolumeCeiling: 50,
			DiscountCap:           0.4,
			VolatilityCeiling:     0.3,
			VolumeBaselineFactor:  4,
			VolumeSpikeMultiplier: 2.5,
			VolumeSpikeCeiling:    5.0,
			SentimentDivisor:      1.05,
			SentimentCeiling:      1.5,
		},
		Pump: PumpConfig{
			HighVolume:         200,
			HighVolumeMomentum: 0.8,
			HighVolumePoints:   40,
			SpikeRatio:         3.0,
			SpikePoints:        30,
			Keyword:            "sticker",
			KeywordVolume:      100,
			KeywordPoints:      25,
			CollapseMomentum:   0.5,
			CollapseVolume:     100,
			CollapsePoints:     20,
			KnownPumps:         [][]string{{"stockholm 2021", "holo"}},
			KnownPumpPoints:    15,
		},
		Arbitrage: ArbitrageConfig{
			SellFeeRate:       0.15,
			BuyFeeRate:        0,
			MinProfitPct:      10,
			GoodProfitPct:     20,
			MarginalProfitPct: 5,
			SmallLossPct:      -10,
			HighVolume:        50,
			TargetMarginPct:   10,
		},
		Candidates: CandidatesConfig{
			ExplosionThreshold: 1.4,
			MediumThreshold:    1.08,
			MinVolume:          20,
			MaxPumpRisk:        60,
			TopPercentile:      0.15,
			MaxCandidates:      25,
		},
	}
}
