package cmd

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/labops/callroom/internal/relay"
	"github.com/labops/callroom/internal/ui"
)

var (
	flagListen    string
	flagRetention time.Duration
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a local signaling relay",
	Long: `Run the key/value relay service that carries call signals. Useful for
local testing and for self-hosting; both peers point their --relay-url at it.

Examples:
  callroom relay
  callroom relay --listen :9000 --retention 5m`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay()
	},
}

func runRelay() error {
	srv := relay.NewServer(flagRetention)
	defer srv.Close()

	ui.PrintSuccessf("Relay listening on %s", flagListen)
	slog.Info("relay started", "listen", flagListen, "retention", flagRetention)

	if err := http.ListenAndServe(flagListen, srv.Handler()); err != nil {
		return fmt.Errorf("relay server: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().StringVarP(&flagListen, "listen", "l", ":8487", "Listen address")
	relayCmd.Flags().DurationVar(&flagRetention, "retention", 10*time.Minute, "How long signals are kept before sweeping")
}
