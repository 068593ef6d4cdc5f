package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/ui/components"
)

// PlayFromPlaylistMsg asks the app to queue and play a playlist track
type PlayFromPlaylistMsg struct {
	PlaylistID string
	Track      api.Track
}

// CreatePlaylistMsg asks the app to create a custom playlist
type CreatePlaylistMsg struct {
	Name string
}

// DeletePlaylistMsg asks the app to delete a playlist
type DeletePlaylistMsg struct {
	PlaylistID string
}

// ImportPlaylistMsg asks the app to import an external playlist
type ImportPlaylistMsg struct {
	Locator string
}

// RemoveFromPlaylistMsg asks the app to drop a track from a playlist
type RemoveFromPlaylistMsg struct {
	PlaylistID string
	TrackID    string
}

type playlistPrompt int

const (
	promptNone playlistPrompt = iota
	promptCreate
	promptImport
)

// PlaylistView lists playlists and, once one is opened, its tracks
type PlaylistView struct {
	Width     int
	Height    int
	TrackList components.TrackList
	Playlists []*api.Playlist
	Current   *api.Playlist
	Selected  int
	Input     components.TextInput
	// Importing holds the latest progress of a running import
	Importing *api.ImportProgress

	prompt playlistPrompt

	BorderStyle   lipgloss.Style
	TitleStyle    lipgloss.Style
	SelectedStyle lipgloss.Style
	NormalStyle   lipgloss.Style
	HelpStyle     lipgloss.Style
}

// NewPlaylistView creates a new playlist view
func NewPlaylistView(width, height int) PlaylistView {
	return PlaylistView{
		Width:     width,
		Height:    height,
		TrackList: components.NewTrackList(height-8, width-6),
		Input:     components.NewTextInput("> ", "", width-8),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2),
		TitleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		SelectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("230")).
			Bold(true).
			Padding(0, 1),
		NormalStyle: lipgloss.NewStyle().Padding(0, 1),
		HelpStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Capturing reports whether a prompt is open
func (v PlaylistView) Capturing() bool {
	return v.prompt != promptNone
}

// SetPlaylists replaces the listed playlists. An open playlist is
// refreshed, or closed when it no longer exists.
func (v *PlaylistView) SetPlaylists(playlists []*api.Playlist) {
	v.Playlists = playlists
	if v.Selected >= len(playlists) {
		v.Selected = len(playlists) - 1
	}
	if v.Selected < 0 {
		v.Selected = 0
	}
	if v.Current == nil {
		return
	}
	for _, p := range playlists {
		if p.ID == v.Current.ID {
			v.open(p)
			return
		}
	}
	v.Current = nil
}

func (v *PlaylistView) open(p *api.Playlist) {
	v.Current = p
	v.TrackList.Title = p.Name
	v.TrackList.SetItems(p.Tracks)
}

func (v *PlaylistView) openPrompt(kind playlistPrompt, placeholder string) {
	v.prompt = kind
	v.Input.Placeholder = placeholder
	v.Input.Reset()
	v.Input.Focus()
}

// Update handles messages
func (v PlaylistView) Update(msg tea.Msg) (PlaylistView, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}

	if v.prompt != promptNone {
		switch key.String() {
		case "esc":
			v.prompt = promptNone
			v.Input.Blur()
		case "enter":
			value := strings.TrimSpace(v.Input.Value())
			kind := v.prompt
			v.prompt = promptNone
			v.Input.Blur()
			if value == "" {
				return v, nil
			}
			if kind == promptCreate {
				return v, emit(CreatePlaylistMsg{Name: value})
			}
			return v, emit(ImportPlaylistMsg{Locator: value})
		default:
			v.Input, _ = v.Input.Update(msg)
		}
		return v, nil
	}

	if v.Current != nil {
		switch key.String() {
		case "backspace", "esc":
			v.Current = nil
		case "enter":
			if t, ok := v.TrackList.SelectedItem(); ok {
				return v, emit(PlayFromPlaylistMsg{PlaylistID: v.Current.ID, Track: t})
			}
		case "d", "delete":
			if t, ok := v.TrackList.SelectedItem(); ok {
				return v, emit(RemoveFromPlaylistMsg{PlaylistID: v.Current.ID, TrackID: t.ID})
			}
		default:
			v.TrackList, _ = v.TrackList.Update(msg)
		}
		return v, nil
	}

	switch key.String() {
	case "up", "k":
		if v.Selected > 0 {
			v.Selected--
		}
	case "down", "j":
		if v.Selected < len(v.Playlists)-1 {
			v.Selected++
		}
	case "enter":
		if v.Selected < len(v.Playlists) {
			v.open(v.Playlists[v.Selected])
		}
	case "c":
		v.openPrompt(promptCreate, "New playlist name")
	case "i":
		v.openPrompt(promptImport, "YouTube playlist link")
	case "x":
		if v.Selected < len(v.Playlists) {
			return v, emit(DeletePlaylistMsg{PlaylistID: v.Playlists[v.Selected].ID})
		}
	}
	return v, nil
}

// View renders the playlist view
func (v PlaylistView) View() string {
	var sb strings.Builder

	if v.prompt != promptNone {
		sb.WriteString(v.Input.View())
		sb.WriteString("\n")
	}

	if v.Current != nil {
		sb.WriteString(v.TrackList.View())
		sb.WriteString("\n\n")
		sb.WriteString(v.HelpStyle.Render("[Esc] Back  [Enter] Play  [d] Remove  [↑↓] Navigate"))
		return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
	}

	sb.WriteString(v.TitleStyle.Render("Playlists"))
	sb.WriteString("\n\n")
	for i, p := range v.Playlists {
		line := fmt.Sprintf("%-30s %3d tracks", components.Truncate(p.Name, 30), len(p.Tracks))
		if p.Type == api.PlaylistImported {
			line += "  (imported)"
		}
		if p.Description != "" {
			line += "  " + components.Truncate(p.Description, 30)
		}
		if i == v.Selected {
			sb.WriteString(v.SelectedStyle.Render(line))
		} else {
			sb.WriteString(v.NormalStyle.Render(line))
		}
		sb.WriteString("\n")
	}

	if v.Importing != nil {
		sb.WriteString("\n")
		sb.WriteString(v.HelpStyle.Render(fmt.Sprintf("Importing… %d/%d", v.Importing.Current, v.Importing.Total)))
	}

	sb.WriteString("\n")
	sb.WriteString(v.HelpStyle.Render("[Enter] Open  [c] Create  [i] Import link  [x] Delete  [↑↓] Navigate"))
	return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
}
