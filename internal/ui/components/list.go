package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/noor_player/api"
)

// TrackList is a scrollable list of tracks
type TrackList struct {
	Items    []api.Track
	Selected int
	Height   int
	Width    int
	Offset   int
	Title    string
	// Playing is the item id rendered with a now-playing marker
	Playing string
	// Starred reports whether a track is a favorite
	Starred func(id string) bool

	SelectedStyle lipgloss.Style
	NormalStyle   lipgloss.Style
	PlayingStyle  lipgloss.Style
	TitleStyle    lipgloss.Style
	MutedStyle    lipgloss.Style
}

// NewTrackList creates a new track list
func NewTrackList(height, width int) TrackList {
	return TrackList{
		Height: height,
		Width:  width,
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		NormalStyle:  lipgloss.NewStyle().Padding(0, 1),
		PlayingStyle: lipgloss.NewStyle().Padding(0, 1).Foreground(lipgloss.Color("86")),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")).
			MarginBottom(1),
		MutedStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// SetItems replaces the items, keeping the selection on the same track
// when it is still listed
func (l *TrackList) SetItems(items []api.Track) {
	var selectedID string
	if t, ok := l.SelectedItem(); ok {
		selectedID = t.ID
	}
	l.Items = items
	l.Selected = 0
	for i, t := range items {
		if t.ID == selectedID {
			l.Selected = i
			break
		}
	}
	l.ensureVisible()
}

// Update handles navigation keys
func (l TrackList) Update(msg tea.Msg) (TrackList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			l.move(-1)
		case "down", "j":
			l.move(1)
		case "pgup":
			l.move(-l.visibleHeight())
		case "pgdown":
			l.move(l.visibleHeight())
		case "home", "g":
			l.move(-len(l.Items))
		case "end", "G":
			l.move(len(l.Items))
		}
	}
	return l, nil
}

func (l *TrackList) move(delta int) {
	if len(l.Items) == 0 {
		return
	}
	l.Selected += delta
	if l.Selected < 0 {
		l.Selected = 0
	}
	if l.Selected >= len(l.Items) {
		l.Selected = len(l.Items) - 1
	}
	l.ensureVisible()
}

func (l *TrackList) visibleHeight() int {
	h := l.Height - 2 // title and margin
	if h < 1 {
		return 1
	}
	return h
}

func (l *TrackList) ensureVisible() {
	visible := l.visibleHeight()
	if l.Selected < l.Offset {
		l.Offset = l.Selected
	} else if l.Selected >= l.Offset+visible {
		l.Offset = l.Selected - visible + 1
	}
	if l.Offset < 0 {
		l.Offset = 0
	}
}

// SelectedItem returns the highlighted track
func (l *TrackList) SelectedItem() (api.Track, bool) {
	if l.Selected >= 0 && l.Selected < len(l.Items) {
		return l.Items[l.Selected], true
	}
	return api.Track{}, false
}

// View renders the visible window of the list
func (l TrackList) View() string {
	var sb strings.Builder

	if l.Title != "" {
		sb.WriteString(l.TitleStyle.Render(l.Title))
		sb.WriteString("\n")
	}
	if len(l.Items) == 0 {
		sb.WriteString(l.MutedStyle.Render("  Nothing here yet"))
		return sb.String()
	}

	visible := l.visibleHeight()
	end := l.Offset + visible
	if end > len(l.Items) {
		end = len(l.Items)
	}

	nameWidth := l.Width - 22
	if nameWidth < 10 {
		nameWidth = 10
	}

	for i := l.Offset; i < end; i++ {
		t := l.Items[i]

		marker := "  "
		if t.ID == l.Playing {
			marker = "▶ "
		}
		star := " "
		if l.Starred != nil && l.Starred(t.ID) {
			star = "★"
		}
		origin := "♫"
		if t.Origin == api.OriginStreaming {
			origin = "☁"
		}
		length := "--:--"
		if t.DurationSeconds > 0 {
			length = FormatDuration(t.Duration())
		}

		line := fmt.Sprintf("%s%3d. %s %s %-*s %s",
			marker, i+1, star, origin, nameWidth, Truncate(t.Name, nameWidth), length)

		switch {
		case i == l.Selected:
			sb.WriteString(l.SelectedStyle.Render(line))
		case t.ID == l.Playing:
			sb.WriteString(l.PlayingStyle.Render(line))
		default:
			sb.WriteString(l.NormalStyle.Render(line))
		}
		if i < end-1 {
			sb.WriteString("\n")
		}
	}

	if len(l.Items) > visible {
		sb.WriteString("\n")
		sb.WriteString(l.MutedStyle.Render(fmt.Sprintf("  [%d/%d]", l.Selected+1, len(l.Items))))
	}

	return sb.String()
}

// Truncate shortens s to at most max runes
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
