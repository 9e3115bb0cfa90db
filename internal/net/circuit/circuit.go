// Package circuit keeps one gobreaker circuit per key so a failing source
// cannot trip the breaker for any other source.
package circuit

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned when the circuit for a key rejects a call.
var ErrOpen = errors.New("circuit breaker is open")

// Config configures every breaker created by a Manager.
type Config struct {
	ConsecutiveFailures uint32        // failures in a row that open the circuit
	OpenTimeout         time.Duration // time spent open before a half-open trial
	HalfOpenRequests    uint32        // trial requests allowed while half-open
}

// DefaultConfig trips after five consecutive failures and tries again after
// a minute.
func DefaultConfig() Config {
	return Config{
		ConsecutiveFailures: 5,
		OpenTimeout:         time.Minute,
		HalfOpenRequests:    1,
	}
}

// Manager lazily creates breakers by key.
type Manager struct {
	mu       sync.Mutex
	config   Config
	breakers map[string]*gobreaker.CircuitBreaker
}

// NewManager creates an empty manager.
func NewManager(config Config) *Manager {
	if config.ConsecutiveFailures == 0 {
		config.ConsecutiveFailures = DefaultConfig().ConsecutiveFailures
	}
	if config.HalfOpenRequests == 0 {
		config.HalfOpenRequests = 1
	}
	return &Manager{
		config:   config,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

func (m *Manager) breaker(key string) *gobreaker.CircuitBreaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, ok := m.breakers[key]; ok {
		return cb
	}

	threshold := m.config.ConsecutiveFailures
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        key,
		MaxRequests: m.config.HalfOpenRequests,
		Timeout:     m.config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
	m.breakers[key] = cb
	return cb
}

// Execute runs fn through the breaker for key. A rejected call returns an
// error wrapping ErrOpen without invoking fn.
func (m *Manager) Execute(key string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := m.breaker(key).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Join(ErrOpen, err)
	}
	return result, err
}

// State reports the state name of the breaker for key ("closed" when the key
// has not been used yet).
func (m *Manager) State(key string) string {
	m.mu.Lock()
	cb, ok := m.breakers[key]
	m.mu.Unlock()
	if !ok {
		return gobreaker.StateClosed.String()
	}
	return cb.State().String()
}
