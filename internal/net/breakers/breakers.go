package breakers

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/skinrun/internal/config"
)

// ErrOpen is returned when a source's breaker refuses a call
var ErrOpen = errors.New("circuit open")

// StateFunc is notified on every breaker transition
type StateFunc func(source string, from, to cb.State)

// Set holds one circuit breaker per price source
type Set struct {
	mu       sync.RWMutex
	breakers map[string]*cb.CircuitBreaker
	onChange StateFunc
}

// New builds breakers for every configured source. A disabled breaker
// config yields a Set that always executes.
func New(cfg config.BreakerConfig, sources []config.SourceConfig, onChange StateFunc) *Set {
	s := &Set{breakers: make(map[string]*cb.CircuitBreaker), onChange: onChange}
	if !cfg.Enabled {
		return s
	}
	for _, src := range sources {
		s.breakers[src.Name] = cb.NewCircuitBreaker(s.settings(src.Name, cfg))
	}
	return s
}

func (s *Set) settings(name string, cfg config.BreakerConfig) cb.Settings {
	st := cb.Settings{Name: name}
	st.Interval = cfg.Interval
	st.Timeout = cfg.OpenTimeout
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if cfg.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
			return true
		}
		if counts.Requests < cfg.MinRequests || counts.Requests == 0 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > cfg.FailureRatio
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().
			Str("source", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state change")
		if s.onChange != nil {
			s.onChange(name, from, to)
		}
	}
	return st
}

// Execute runs fn through the source's breaker. An open breaker returns
// ErrOpen without calling fn.
func (s *Set) Execute(source string, fn func() (any, error)) (any, error) {
	s.mu.RLock()
	b, ok := s.breakers[source]
	s.mu.RUnlock()
	if !ok {
		return fn()
	}

	res, err := b.Execute(fn)
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return res, ErrOpen
	}
	return res, err
}

// Allow reports whether the source's breaker would accept a call
func (s *Set) Allow(source string) bool {
	return s.State(source) != cb.StateOpen
}

// State returns the breaker state for a source, closed when untracked
func (s *Set) State(source string) cb.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.breakers[source]; ok {
		return b.State()
	}
	return cb.StateClosed
}

// Counts returns the current window counters for a source
func (s *Set) Counts(source string) cb.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if b, ok := s.breakers[source]; ok {
		return b.Counts()
	}
	return cb.Counts{}
}
