package breakers

import (
	"errors"
	"testing"
	"time"

	cb "github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/skinrun/internal/config"
)

var errBoom = errors.New("boom")

func testConfig() config.BreakerConfig {
	return config.BreakerConfig{
		Enabled:             true,
		ConsecutiveFailures: 3,
		FailureRatio:        0.5,
		MinRequests:         10,
		Interval:            time.Minute,
		OpenTimeout:         time.Minute,
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var transitions []cb.State
	set := New(testConfig(), []config.SourceConfig{{Name: "direct"}}, func(_ string, _, to cb.State) {
		transitions = append(transitions, to)
	})

	for i := 0; i < 3; i++ {
		_, err := set.Execute("direct", func() (any, error) { return nil, errBoom })
		require.ErrorIs(t, err, errBoom)
	}

	assert.False(t, set.Allow("direct"))
	assert.Equal(t, cb.StateOpen, set.State("direct"))

	called := false
	_, err := set.Execute("direct", func() (any, error) { called = true; return nil, nil })
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not call through")
	assert.Equal(t, []cb.State{cb.StateOpen}, transitions)
}

func TestBreakerSuccessKeepsClosed(t *testing.T) {
	set := New(testConfig(), []config.SourceConfig{{Name: "direct"}}, nil)

	for i := 0; i < 20; i++ {
		v, err := set.Execute("direct", func() (any, error) { return 42, nil })
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	}
	assert.True(t, set.Allow("direct"))
	assert.Equal(t, uint32(20), set.Counts("direct").TotalSuccesses)
}

func TestBreakerDisabledAndUnknown(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	set := New(cfg, []config.SourceConfig{{Name: "direct"}}, nil)

	for i := 0; i < 10; i++ {
		_, _ = set.Execute("direct", func() (any, error) { return nil, errBoom })
	}
	assert.True(t, set.Allow("direct"))
	assert.True(t, set.Allow("never-configured"))
	assert.Equal(t, cb.StateClosed, set.State("never-configured"))
}
