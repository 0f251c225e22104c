package cmd

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/labops/callroom/internal/ui"
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id>",
	Aliases: []string{"j"},
	Short:   "Join an existing room",
	Long: `Join a room created by another peer. The room ID is the code the host shared.

Examples:
  callroom join brisk-quartz-otter-7f3a
  callroom join --relay-url https://relay.example.com brisk-quartz-otter-7f3a`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return joinRoom(args[0])
	},
}

func joinRoom(roomID string) error {
	session, cleanup, err := newSession()
	if err != nil {
		return err
	}
	defer cleanup()

	stopSpinner := ui.RunWaitingSpinner("Looking for the room...")
	err = session.JoinRoom(context.Background(), roomID)
	stopSpinner()
	if err != nil {
		return err
	}

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
	rootCmd.AddCommand(joinCmd)
	addSessionFlags(joinCmd)
}
