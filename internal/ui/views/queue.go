package views

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/library"
	"github.com/jscyril/noor_player/internal/ui/components"
)

// AddSourcesMsg asks the app to resolve links or file paths and enqueue them
type AddSourcesMsg struct {
	Sources []string
}

// PlayTrackMsg asks the app to play a queued track
type PlayTrackMsg struct {
	TrackID string
}

// RemoveTrackMsg asks the app to drop a track from the queue
type RemoveTrackMsg struct {
	TrackID string
}

// MoveTrackMsg asks the app to move a queue entry
type MoveTrackMsg struct {
	From, To int
}

// ClearQueueMsg asks the app to empty the queue
type ClearQueueMsg struct{}

type queueMode int

const (
	queueBrowsing queueMode = iota
	queueFiltering
	queueAdding
	queuePicking
)

// QueueView lists the playback queue
type QueueView struct {
	Width       int
	Height      int
	TrackList   components.TrackList
	Filter      components.TextInput
	Source      components.TextInput
	FileBrowser components.FileBrowser
	all         []api.Track
	mode        queueMode

	BorderStyle lipgloss.Style
	HelpStyle   lipgloss.Style
}

// NewQueueView creates an empty queue view
func NewQueueView(width, height int) QueueView {
	list := components.NewTrackList(height-8, width-6)
	list.Title = "Queue"
	return QueueView{
		Width:     width,
		Height:    height,
		TrackList: list,
		Filter:    components.NewTextInput("/ ", "Filter the queue", width-8),
		Source:    components.NewTextInput("+ ", "YouTube link or path to an audio file", width-8),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 2),
		HelpStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Capturing reports whether the view wants every key, so global bindings
// don't fire while the user is typing
func (v QueueView) Capturing() bool {
	return v.mode != queueBrowsing
}

// SetTracks replaces the queue contents
func (v *QueueView) SetTracks(tracks []api.Track) {
	v.all = tracks
	v.applyFilter()
}

func (v *QueueView) applyFilter() {
	v.TrackList.SetItems(library.Search(v.all, v.Filter.Value()))
}

// queueIndex maps the highlighted row back to its queue position
func (v *QueueView) queueIndex() int {
	t, ok := v.TrackList.SelectedItem()
	if !ok {
		return -1
	}
	for i := range v.all {
		if v.all[i].ID == t.ID {
			return i
		}
	}
	return -1
}

// SelectedTrack returns the highlighted track
func (v *QueueView) SelectedTrack() (api.Track, bool) {
	return v.TrackList.SelectedItem()
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// Update handles messages
func (v QueueView) Update(msg tea.Msg) (QueueView, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return v, nil
	}

	switch v.mode {
	case queuePicking:
		switch key.String() {
		case "esc":
			v.mode = queueBrowsing
		case "enter":
			if paths := v.FileBrowser.EnterSelected(); len(paths) > 0 {
				v.mode = queueBrowsing
				v.FileBrowser.ClearMarks()
				return v, emit(AddSourcesMsg{Sources: paths})
			}
		case "A":
			files := v.FileBrowser.Files()
			v.mode = queueBrowsing
			if len(files) > 0 {
				return v, emit(AddSourcesMsg{Sources: files})
			}
		default:
			v.FileBrowser, _ = v.FileBrowser.Update(msg)
		}
		return v, nil

	case queueAdding:
		switch key.String() {
		case "esc":
			v.mode = queueBrowsing
			v.Source.Blur()
			v.Source.Reset()
		case "enter":
			src := strings.TrimSpace(v.Source.Value())
			v.mode = queueBrowsing
			v.Source.Blur()
			v.Source.Reset()
			if src != "" {
				return v, emit(AddSourcesMsg{Sources: []string{src}})
			}
		default:
			v.Source, _ = v.Source.Update(msg)
		}
		return v, nil

	case queueFiltering:
		switch key.String() {
		case "enter", "esc":
			v.mode = queueBrowsing
			v.Filter.Blur()
			if key.String() == "esc" {
				v.Filter.Reset()
			}
		default:
			v.Filter, _ = v.Filter.Update(msg)
		}
		v.applyFilter()
		return v, nil
	}

	switch key.String() {
	case "/":
		v.mode = queueFiltering
		v.Filter.Focus()
	case "a":
		v.mode = queueAdding
		v.Source.Focus()
	case "b":
		v.mode = queuePicking
		v.FileBrowser = components.NewFileBrowser("", v.Width, v.Height)
	case "enter":
		if t, ok := v.TrackList.SelectedItem(); ok {
			return v, emit(PlayTrackMsg{TrackID: t.ID})
		}
	case "d", "delete":
		if t, ok := v.TrackList.SelectedItem(); ok {
			return v, emit(RemoveTrackMsg{TrackID: t.ID})
		}
	case "K", "shift+up":
		if i := v.queueIndex(); i > 0 {
			return v, emit(MoveTrackMsg{From: i, To: i - 1})
		}
	case "J", "shift+down":
		if i := v.queueIndex(); i >= 0 && i < len(v.all)-1 {
			return v, emit(MoveTrackMsg{From: i, To: i + 1})
		}
	case "C":
		return v, emit(ClearQueueMsg{})
	default:
		v.TrackList, _ = v.TrackList.Update(msg)
	}
	return v, nil
}

// View renders the queue view
func (v QueueView) View() string {
	if v.mode == queuePicking {
		return v.FileBrowser.View()
	}

	var sb strings.Builder
	if v.mode == queueAdding {
		sb.WriteString(v.Source.View())
	} else {
		sb.WriteString(v.Filter.View())
	}
	sb.WriteString("\n")
	sb.WriteString(v.TrackList.View())
	sb.WriteString("\n\n")

	switch v.mode {
	case queueAdding:
		sb.WriteString(v.HelpStyle.Render("[Enter] Add  [Esc] Cancel"))
	case queueFiltering:
		sb.WriteString(v.HelpStyle.Render("[Enter] Keep filter  [Esc] Clear"))
	default:
		sb.WriteString(v.HelpStyle.Render("[a] Add link/path  [b] Browse files  [/] Filter  [Enter] Play  [d] Remove  [J/K] Move  [C] Clear"))
	}

	return v.BorderStyle.Width(v.Width - 4).Render(sb.String())
}
