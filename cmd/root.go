package cmd

import (
	"os"
	"os/signal"

	"github.com/labops/callroom/internal/ui"
	"github.com/labops/callroom/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "callroom",
	Short:   "Peer-to-peer video calls from the terminal using WebRTC",
	Long:    `CallRoom is a command-line tool for one-to-one video calls using WebRTC technology. Media flows directly between peers; only the small offer/answer/ICE handshake travels through a shared key/value relay, so calls work anywhere both sides can reach the relay over plain HTTP.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		os.Exit(0)
	}()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}
