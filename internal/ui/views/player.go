package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/ui/components"
)

// PlayerView displays the current playback state
type PlayerView struct {
	Width       int
	Height      int
	State       api.PlaybackState
	Favorite    bool
	ProgressBar components.ProgressBar

	TitleStyle    lipgloss.Style
	SourceStyle   lipgloss.Style
	StatusStyle   lipgloss.Style
	ControlsStyle lipgloss.Style
	BorderStyle   lipgloss.Style
}

// NewPlayerView creates a new player view
func NewPlayerView(width, height int) PlayerView {
	return PlayerView{
		Width:       width,
		Height:      height,
		State:       api.PlaybackState{Index: -1, Rate: 1},
		ProgressBar: components.NewProgressBar(width - 8),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		SourceStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")).
			Italic(true),
		StatusStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true),
		ControlsStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2),
	}
}

// SetState updates the playback state
func (v *PlayerView) SetState(state api.PlaybackState) {
	v.State = state
	v.ProgressBar.SetSeconds(state.Position, state.Duration)
}

// SetPosition applies a position tick without a full state refresh
func (v *PlayerView) SetPosition(u api.PositionUpdate) {
	if v.State.Track == nil || v.State.Track.ID != u.TrackID {
		return
	}
	v.State.Position = u.Position
	if u.Duration > 0 {
		v.State.Duration = u.Duration
	}
	v.ProgressBar.SetSeconds(v.State.Position, v.State.Duration)
}

func statusIcon(s api.Status) string {
	switch s {
	case api.StatusPlaying:
		return "▶"
	case api.StatusPaused:
		return "⏸"
	case api.StatusLoading:
		return "…"
	case api.StatusError:
		return "✖"
	default:
		return "⏹"
	}
}

// View renders the player view
func (v PlayerView) View() string {
	var sb strings.Builder
	s := v.State

	if s.Track == nil {
		sb.WriteString(v.TitleStyle.Render("♪ Nothing playing"))
		sb.WriteString("\n")
		sb.WriteString(v.SourceStyle.Render("Add a link or a file to the queue, then press Enter"))
	} else {
		title := s.Track.Name
		if v.Favorite {
			title = "★ " + title
		}
		sb.WriteString(v.StatusStyle.Render(statusIcon(s.Status) + " "))
		sb.WriteString(v.TitleStyle.Render(components.Truncate(title, v.Width-12)))
		sb.WriteString("\n")

		source := "local file"
		if s.Track.Origin == api.OriginStreaming {
			source = "streaming"
		}
		sb.WriteString(v.SourceStyle.Render(fmt.Sprintf("%s · track %d · %s", source, s.Index+1, s.Status)))
		sb.WriteString("\n\n")
		sb.WriteString(v.ProgressBar.View())
	}
	sb.WriteString("\n\n")

	volume := fmt.Sprintf("Volume %s %3d%%", renderVolumeBar(s.Volume), s.Volume)
	if s.Muted {
		volume = "Volume " + renderVolumeBar(0) + " muted"
	}
	modes := []string{volume, fmt.Sprintf("Speed %.2gx", s.Rate)}
	switch s.Repeat {
	case api.RepeatOne:
		modes = append(modes, "🔂 Repeat one")
	case api.RepeatAll:
		modes = append(modes, "🔁 Repeat all")
	}
	if s.Shuffle {
		modes = append(modes, "🔀 Shuffle")
	}
	sb.WriteString(strings.Join(modes, "  "))

	sb.WriteString("\n")
	sb.WriteString(v.ControlsStyle.Render(
		"[Space] Play/Pause  [n/p] Next/Prev  [←/→] Seek  [+/-] Volume  [m] Mute  [</>] Speed  [r] Repeat  [S] Shuffle  [f] Favorite",
	))

	return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
}

func renderVolumeBar(volume int) string {
	filled := volume / 10
	if filled > 10 {
		filled = 10
	}
	if filled < 0 {
		filled = 0
	}

	filledStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	return filledStyle.Render(strings.Repeat("●", filled)) + emptyStyle.Render(strings.Repeat("○", 10-filled))
}
