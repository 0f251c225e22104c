package cmd

import (
	"github.com/spf13/cobra"

	"github.com/labops/callroom/internal/call"
	"github.com/labops/callroom/internal/config"
	"github.com/labops/callroom/internal/media"
	"github.com/labops/callroom/internal/signaling"
	"github.com/labops/callroom/internal/store"
)

var (
	flagRelayURL string
	flagSTUN     string
	flagTURN     string
	flagTURNUser string
	flagTURNPass string
	flagRelay    bool
	flagPush     bool
)

// addSessionFlags registers the flags shared by host and join.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagRelayURL, "relay-url", "d", "", "Relay service base URL")
	cmd.Flags().StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	cmd.Flags().StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	cmd.Flags().StringVarP(&flagTURNUser, "turn-user", "u", "", "TURN username")
	cmd.Flags().StringVarP(&flagTURNPass, "turn-pass", "p", "", "TURN password")
	cmd.Flags().BoolVarP(&flagRelay, "force-relay", "r", false, "Force relayed ICE candidates")
	cmd.Flags().BoolVar(&flagPush, "push", false, "Use the relay's websocket feed instead of polling")
}

// newSession wires config, relay store, transport and media into a call
// session. The returned cleanup releases the transport.
func newSession() (*call.Session, func(), error) {
	cfg, err := config.Load(config.Options{
		RelayURL:   flagRelayURL,
		STUNServer: flagSTUN,
		TURNServer: flagTURN,
		TURNUser:   flagTURNUser,
		TURNPass:   flagTURNPass,
		ForceRelay: flagRelay,
	})
	if err != nil {
		return nil, nil, err
	}

	client := store.NewClient(cfg.RelayURL)

	var tr signaling.Transport
	cleanup := func() {}
	if flagPush {
		feed := signaling.NewFeedTransport(client, cfg.Collection, cfg.RelayURL)
		cleanup = func() { feed.Close() }
		tr = feed
	} else {
		tr = signaling.NewPollTransport(client, cfg.Collection)
	}

	engine, err := media.NewEngine()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return call.NewSession(cfg, tr, engine), cleanup, nil
}
