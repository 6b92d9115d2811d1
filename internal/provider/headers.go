package provider

import (
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// HeaderProvider supplies the request headers for one attempt
type HeaderProvider interface {
	Headers() http.Header
}

const marketReferer = "https://steamcommunity.com/market/"

var browserProfiles = []map[string]string{
	{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": "en-US,en;q=0.9",
	},
	{
		"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": "en-GB,en;q=0.9",
	},
	{
		"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": "en-US,en;q=0.5",
	},
	{
		"User-Agent":      "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/javascript, */*; q=0.01",
		"Accept-Language": "en-US,en;q=0.8,pl;q=0.6",
	},
}

// RotatingHeaders picks a browser profile at random for every attempt.
// A fixed seed makes the sequence reproducible.
type RotatingHeaders struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRotatingHeaders seeds the profile picker; zero seeds from the clock
func NewRotatingHeaders(seed int64) *RotatingHeaders {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RotatingHeaders{rng: rand.New(rand.NewSource(seed))}
}

func (r *RotatingHeaders) Headers() http.Header {
	r.mu.Lock()
	p := browserProfiles[r.rng.Intn(len(browserProfiles))]
	r.mu.Unlock()

	h := make(http.Header, len(p)+2)
	for k, v := range p {
		h.Set(k, v)
	}
	h.Set("Referer", marketReferer)
	h.Set("X-Requested-With", "XMLHttpRequest")
	return h
}

// StaticHeaders returns the same headers for every attempt
type StaticHeaders http.Header

func (s StaticHeaders) Headers() http.Header {
	return http.Header(s).Clone()
}
