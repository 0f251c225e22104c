package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/labops/callroom/internal/ui"
)

var hostCmd = &cobra.Command{
	Use:     "host",
	Aliases: []string{"h", "create"},
	Short:   "Create a room and wait for a peer",
	Long: `Create a call room, publish an offer to the relay and wait for a peer to join.

Examples:
  callroom host
  callroom host --relay-url https://relay.example.com
  callroom host --push`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return hostRoom()
	},
}

func hostRoom() error {
	session, cleanup, err := newSession()
	if err != nil {
		return err
	}
	defer cleanup()

	stopSpinner := ui.RunWaitingSpinner("Starting camera and microphone...")
	roomID, err := session.CreateRoom(context.Background())
	stopSpinner()
	if err != nil {
		return err
	}

	ui.NewRoomInfo(roomID, "").Render()
	fmt.Println()

	model := ui.NewCallModel(session)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		session.HangUp()
		return err
	}
	session.HangUp()

	ui.RenderCallSummary(session.Stats())
	return nil
}

func init() {
	rootCmd.AddCommand(hostCmd)
	addSessionFlags(hostCmd)
}
