package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, DefaultRelayURL, cfg.RelayURL)
	assert.Equal(t, DefaultCollection, cfg.Collection)
	assert.Equal(t, DefaultSTUN, cfg.STUNServer)
	assert.Equal(t, DefaultPollInterval, cfg.PollInterval)
	assert.Equal(t, DefaultJoinAttempts, cfg.JoinAttempts)
}

func TestLoadPriority(t *testing.T) {
	t.Setenv("CALLROOM_RELAY_URL", "http://env.example.com")
	t.Setenv("STUN_SERVER", "stun:env.example.com:3478")

	t.Run("env beats default", func(t *testing.T) {
		cfg, err := Load(Options{})
		require.NoError(t, err)
		assert.Equal(t, "http://env.example.com", cfg.RelayURL)
		assert.Equal(t, "stun:env.example.com:3478", cfg.STUNServer)
	})

	t.Run("flag beats env", func(t *testing.T) {
		cfg, err := Load(Options{RelayURL: "http://flag.example.com"})
		require.NoError(t, err)
		assert.Equal(t, "http://flag.example.com", cfg.RelayURL)
		assert.Equal(t, "stun:env.example.com:3478", cfg.STUNServer)
	})
}

func TestForceRelayRequiresTURN(t *testing.T) {
	_, err := Load(Options{ForceRelay: true})
	assert.Error(t, err)

	cfg, err := Load(Options{ForceRelay: true, TURNServer: "turn:turn.example.com"})
	require.NoError(t, err)
	assert.True(t, cfg.ForceRelay)
	require.Len(t, cfg.GetTURNServers(), 3)
}
