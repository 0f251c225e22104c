package config

import (
	"fmt"
	"os"
	"time"
)

// Default configuration values (production)
const (
	DefaultRelayURL   = "http://localhost:8487"
	DefaultCollection = "call_signals"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultTURN       = "" // Optional, empty by default
	DefaultTURNUser   = ""
	DefaultTURNPass   = ""

	// DefaultPollInterval paces the periodic room poll once a local
	// description has been published.
	DefaultPollInterval = 1200 * time.Millisecond

	// A joiner searches the room for an offer with a bounded retry budget
	// before giving up with "room not found".
	DefaultJoinAttempts = 30
	DefaultJoinInterval = 1500 * time.Millisecond
)

// Config holds application configuration
type Config struct {
	// RelayURL is the base URL of the key/value persistence service that
	// relays signaling messages.
	RelayURL string

	// Collection is the persistence collection all call signals share.
	Collection string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string

	// ForceRelay restricts ICE to relayed candidates.
	ForceRelay bool

	// Signaling cadence
	PollInterval time.Duration
	JoinAttempts int
	JoinInterval time.Duration
}

// Options for loading config with CLI flag overrides
type Options struct {
	RelayURL   string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	relayURL := opts.RelayURL
	if relayURL == "" {
		relayURL = os.Getenv("CALLROOM_RELAY_URL")
	}
	if relayURL == "" {
		relayURL = DefaultRelayURL
	}

	collection := os.Getenv("CALLROOM_COLLECTION")
	if collection == "" {
		collection = DefaultCollection
	}

	stunServer := opts.STUNServer
	if stunServer == "" {
		stunServer = os.Getenv("STUN_SERVER")
	}
	if stunServer == "" {
		stunServer = DefaultSTUN
	}

	turnServer := opts.TURNServer
	if turnServer == "" {
		turnServer = os.Getenv("TURN_SERVER")
	}
	if turnServer == "" {
		turnServer = DefaultTURN
	}

	turnUser := opts.TURNUser
	if turnUser == "" {
		turnUser = os.Getenv("TURN_USERNAME")
	}
	if turnUser == "" {
		turnUser = DefaultTURNUser
	}

	turnPass := opts.TURNPass
	if turnPass == "" {
		turnPass = os.Getenv("TURN_PASSWORD")
	}
	if turnPass == "" {
		turnPass = DefaultTURNPass
	}

	cfg := &Config{
		RelayURL:     relayURL,
		Collection:   collection,
		STUNServer:   stunServer,
		TURNServer:   turnServer,
		TURNUser:     turnUser,
		TURNPass:     turnPass,
		ForceRelay:   opts.ForceRelay,
		PollInterval: DefaultPollInterval,
		JoinAttempts: DefaultJoinAttempts,
		JoinInterval: DefaultJoinInterval,
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	return []string{
		fmt.Sprintf("%s:3478?transport=udp", c.TURNServer),
		fmt.Sprintf("%s:3478?transport=tcp", c.TURNServer),
		fmt.Sprintf("turns:%s:5349?transport=tcp", c.TURNServer),
	}
}

// GetTURNCredentials returns TURN username and password
func (c *Config) GetTURNCredentials() (string, string) {
	return c.TURNUser, c.TURNPass
}
