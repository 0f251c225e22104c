package ui

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/labops/callroom/internal/call"
)

// RoomInfo displays the room details a peer needs to join the call.
type RoomInfo struct {
	RoomID     string
	Collection string
}

func NewRoomInfo(roomID, collection string) *RoomInfo {
	return &RoomInfo{
		RoomID:     roomID,
		Collection: collection,
	}
}

func (r *RoomInfo) View() string {
	content := fmt.Sprintf("%s Room Created!\n\n%s Room ID:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
	)
	if r.Collection != "" {
		content += fmt.Sprintf("\n%s Collection:  %s", IconRoom, MutedStyle.Render(r.Collection))
	}
	content += fmt.Sprintf("\n\nShare the room ID with your peer:\n%s",
		BoldStyle.Render(fmt.Sprintf("callroom join %s", r.RoomID)))

	return RoomBoxStyle.Render(content)
}

func (r *RoomInfo) Render() {
	fmt.Println(r.View())
}

// CallSummaryView renders an end-of-call statistics table.
func CallSummaryView(stats call.Stats) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleRounded)
	tbl.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Duration", formatDuration(stats.Duration)},
		{"Signals sent", stats.SignalsPublished},
		{"Signals applied", stats.SignalsApplied},
		{"Candidates buffered", stats.CandidatesBuffered},
		{"Candidates applied", stats.CandidatesApplied},
	})
	return tbl.Render()
}

func RenderCallSummary(stats call.Stats) {
	fmt.Printf("%s Call summary\n%s\n", IconStats, CallSummaryView(stats))
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	s := d - m*time.Minute
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s/time.Second)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s/time.Second)
	}
	return fmt.Sprintf("%ds", s/time.Second)
}
