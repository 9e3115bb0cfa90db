package circuit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing() (interface{}, error) { return nil, errBoom }

func TestManager_OpensAfterConsecutiveFailures(t *testing.T) {
	m := NewManager(Config{ConsecutiveFailures: 3, OpenTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := m.Execute("solana", failing)
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, "open", m.State("solana"))

	called := false
	_, err := m.Execute("solana", func() (interface{}, error) {
		called = true
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrOpen)
	assert.False(t, called, "open breaker must not invoke fn")
}

func TestManager_KeysAreIndependent(t *testing.T) {
	m := NewManager(Config{ConsecutiveFailures: 1, OpenTimeout: time.Hour})

	_, err := m.Execute("category:pump-swap", failing)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, "open", m.State("category:pump-swap"))

	result, err := m.Execute("network:base", func() (interface{}, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, "closed", m.State("network:base"))
}

func TestManager_SuccessResetsFailureRun(t *testing.T) {
	m := NewManager(Config{ConsecutiveFailures: 2, OpenTimeout: time.Hour})

	m.Execute("k", failing)
	m.Execute("k", func() (interface{}, error) { return nil, nil })
	m.Execute("k", failing)

	assert.Equal(t, "closed", m.State("k"))
}

func TestManager_HalfOpenAfterTimeout(t *testing.T) {
	m := NewManager(Config{ConsecutiveFailures: 1, OpenTimeout: 20 * time.Millisecond})

	m.Execute("k", failing)
	require.Equal(t, "open", m.State("k"))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, "half-open", m.State("k"))

	_, err := m.Execute("k", func() (interface{}, error) { return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, "closed", m.State("k"))
}

func TestManager_UnknownKeyIsClosed(t *testing.T) {
	assert.Equal(t, "closed", NewManager(DefaultConfig()).State("never-used"))
}
