// Package ui is the terminal front-end. It only talks to a session; all
// playback and queue rules live below it.
package ui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/noor_player/api"
	"github.com/jscyril/noor_player/internal/config"
	"github.com/jscyril/noor_player/internal/session"
	"github.com/jscyril/noor_player/internal/ui/views"
	playerrors "github.com/jscyril/noor_player/pkg/errors"
	"go.uber.org/zap"
)

// ViewType represents the current active view
type ViewType int

const (
	ViewPlayer ViewType = iota
	ViewQueue
	ViewPlaylist
)

const (
	volumeStep = 5
	rateStep   = 0.25
	noticeTTL  = 5 * time.Second
)

// Model is the main bubbletea model
type Model struct {
	width  int
	height int

	activeView ViewType

	playerView   views.PlayerView
	queueView    views.QueueView
	playlistView views.PlaylistView

	session *session.Session
	keys    config.KeyMap
	seek    float64
	events  <-chan api.Event
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// notice is the latest message for the user; inline ones stay until
	// the next action, the rest expire
	notice      string
	noticeErr   bool
	noticeUntil time.Time

	tabStyle       lipgloss.Style
	activeTabStyle lipgloss.Style
	noticeStyle    lipgloss.Style
	errorStyle     lipgloss.Style
}

// eventMsg carries one event from the session bus
type eventMsg api.Event

// doneMsg reports the outcome of an action run off the UI goroutine
type doneMsg struct {
	info string
	err  error
}

// expireMsg clears a notice once it has been shown long enough
type expireMsg struct{}

// NewModel creates the application model for a loaded session
func NewModel(s *session.Session) Model {
	ctx, cancel := context.WithCancel(context.Background())

	m := Model{
		width:      80,
		height:     24,
		activeView: ViewQueue,
		session:    s,
		keys:       s.Config.KeyBindings,
		seek:       s.Config.Player.SeekStep.Std().Seconds(),
		events:     s.Bus.SubscribeAll(),
		log:        s.Log.Named("ui"),
		ctx:        ctx,
		cancel:     cancel,
		tabStyle: lipgloss.NewStyle().
			Padding(0, 2).
			Foreground(lipgloss.Color("240")),
		activeTabStyle: lipgloss.NewStyle().
			Padding(0, 2).
			Bold(true).
			Foreground(lipgloss.Color("212")).
			Background(lipgloss.Color("236")),
		noticeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("86")),
		errorStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
	}
	if m.seek <= 0 {
		m.seek = 10
	}

	m.playerView = views.NewPlayerView(m.width, 8)
	m.queueView = views.NewQueueView(m.width, m.height-10)
	m.playlistView = views.NewPlaylistView(m.width, m.height-10)
	m.refresh()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return m.listen()
}

// listen waits for the next bus event
func (m Model) listen() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg(ev)
	}
}

// refresh pulls queue, playlists and playback state from the session
func (m *Model) refresh() {
	s := m.session
	state := s.Engine.State()

	m.playerView.SetState(state)
	m.playerView.Favorite = state.Track != nil && s.Favorites.Contains(state.Track.ID)

	m.queueView.TrackList.Starred = s.Favorites.Contains
	m.queueView.TrackList.Playing = ""
	if state.Track != nil {
		m.queueView.TrackList.Playing = state.Track.ID
	}
	m.queueView.SetTracks(s.Queue.Tracks())

	m.playlistView.TrackList.Starred = s.Favorites.Contains
	m.playlistView.SetPlaylists(s.Playlists.All())
}

// run executes fn off the UI goroutine and reports back with a doneMsg
func (m Model) run(info string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return doneMsg{info: info, err: fn(ctx)}
	}
}

func (m *Model) setNotice(text string, isErr bool, ttl time.Duration) tea.Cmd {
	m.notice = text
	m.noticeErr = isErr
	if ttl <= 0 {
		m.noticeUntil = time.Time{}
		return nil
	}
	m.noticeUntil = time.Now().Add(ttl)
	return tea.Tick(ttl, func(time.Time) tea.Msg { return expireMsg{} })
}

// report presents an error according to its severity
func (m *Model) report(err error) tea.Cmd {
	if err == nil {
		return nil
	}
	switch playerrors.Classify(err) {
	case playerrors.SeverityInline:
		return m.setNotice(err.Error(), true, 0)
	case playerrors.SeverityLogOnly:
		m.log.Warn("action failed", zap.Error(err))
		return nil
	default:
		return m.setNotice(err.Error(), true, noticeTTL)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewSizes()

	case eventMsg:
		cmds = append(cmds, m.handleEvent(api.Event(msg)), m.listen())

	case doneMsg:
		if msg.err != nil {
			cmds = append(cmds, m.report(msg.err))
		} else if msg.info != "" {
			cmds = append(cmds, m.setNotice(msg.info, false, noticeTTL))
		}
		m.refresh()

	case expireMsg:
		if !m.noticeUntil.IsZero() && !time.Now().Before(m.noticeUntil) {
			m.notice = ""
		}

	case views.AddSourcesMsg:
		cmds = append(cmds, m.addSources(msg.Sources))

	case views.PlayTrackMsg:
		id := msg.TrackID
		cmds = append(cmds, m.run("", func(ctx context.Context) error {
			for i, t := range m.session.Queue.Tracks() {
				if t.ID == id {
					return m.session.Engine.JumpTo(ctx, i)
				}
			}
			return playerrors.ErrTrackNotFound
		}))

	case views.RemoveTrackMsg:
		id := msg.TrackID
		cmds = append(cmds, m.run("", func(context.Context) error {
			return m.session.Queue.Remove(id)
		}))

	case views.MoveTrackMsg:
		if err := m.session.Queue.Reorder(msg.From, msg.To); err != nil {
			cmds = append(cmds, m.report(err))
		}
		m.queueView.TrackList.Selected = msg.To
		m.refresh()

	case views.ClearQueueMsg:
		cmds = append(cmds, m.run("Queue cleared", func(context.Context) error {
			m.session.Queue.Clear()
			return nil
		}))

	case views.PlayFromPlaylistMsg:
		track := msg.Track
		cmds = append(cmds, m.run("", func(ctx context.Context) error {
			return m.playTrack(ctx, track)
		}))

	case views.CreatePlaylistMsg:
		if _, err := m.session.Playlists.Create(msg.Name, api.PlaylistCustom); err != nil {
			cmds = append(cmds, m.report(err))
		} else {
			cmds = append(cmds, m.setNotice(fmt.Sprintf("Created %q", msg.Name), false, noticeTTL))
		}
		m.refresh()

	case views.DeletePlaylistMsg:
		if err := m.session.Playlists.Delete(msg.PlaylistID); err != nil {
			cmds = append(cmds, m.report(err))
		}
		m.refresh()

	case views.RemoveFromPlaylistMsg:
		if err := m.session.Playlists.RemoveTrack(msg.PlaylistID, msg.TrackID); err != nil {
			cmds = append(cmds, m.report(err))
		}
		m.refresh()

	case views.ImportPlaylistMsg:
		locator := msg.Locator
		cmds = append(cmds, m.run("", func(ctx context.Context) error {
			p, err := m.session.Playlists.ImportFromExternalSource(ctx, locator, nil)
			if err != nil {
				return err
			}
			m.session.Bus.Publish(api.Event{Type: api.EventNotice, Payload: api.Notice{
				Message: fmt.Sprintf("Imported %q with %d tracks", p.Name, len(p.Tracks)),
			}})
			return nil
		}))

	case tea.KeyMsg:
		if cmd, quit := m.handleKey(msg); quit {
			return m, tea.Quit
		} else if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleEvent(ev api.Event) tea.Cmd {
	switch ev.Type {
	case api.EventPositionUpdate:
		if u, ok := ev.Payload.(api.PositionUpdate); ok {
			m.playerView.SetPosition(u)
		}
		return nil
	case api.EventImportProgress:
		if p, ok := ev.Payload.(api.ImportProgress); ok {
			m.playlistView.Importing = &p
			if p.Current >= p.Total {
				m.playlistView.Importing = nil
			}
		}
		return nil
	case api.EventNotice:
		if n, ok := ev.Payload.(api.Notice); ok {
			m.refresh()
			return m.setNotice(n.Message, n.Err != nil, noticeTTL)
		}
	}
	m.refresh()
	return nil
}

// addSources resolves each source and enqueues it, stopping at the first
// failure
func (m Model) addSources(sources []string) tea.Cmd {
	return func() tea.Msg {
		added := 0
		for _, src := range sources {
			if _, err := m.session.Enqueue(m.ctx, src); err != nil {
				return doneMsg{err: err}
			}
			added++
		}
		if added == 1 {
			return doneMsg{info: "Added to queue"}
		}
		return doneMsg{info: fmt.Sprintf("Added %d tracks to queue", added)}
	}
}

// playTrack queues a playlist track if needed and starts it
func (m Model) playTrack(ctx context.Context, track api.Track) error {
	q := m.session.Queue
	if !q.Contains(track.ID) {
		if err := q.Enqueue(track); err != nil {
			return err
		}
	}
	for i, t := range q.Tracks() {
		if t.ID == track.ID {
			return m.session.Engine.JumpTo(ctx, i)
		}
	}
	return playerrors.ErrTrackNotFound
}

func (m *Model) capturing() bool {
	switch m.activeView {
	case ViewQueue:
		return m.queueView.Capturing()
	case ViewPlaylist:
		return m.playlistView.Capturing()
	}
	return false
}

// handleKey applies global bindings, then hands the key to the active view
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	key := msg.String()
	if key == "ctrl+c" {
		m.cancel()
		return nil, true
	}

	if m.capturing() {
		return m.forward(msg), false
	}

	// an action clears a lingering inline notice
	if m.noticeUntil.IsZero() {
		m.notice = ""
	}

	e := m.session.Engine
	state := e.State()
	k := m.keys

	switch key {
	case k.Quit:
		m.cancel()
		return nil, true
	case "1":
		m.activeView = ViewPlayer
	case "2":
		m.activeView = ViewQueue
	case "3":
		m.activeView = ViewPlaylist
	case "tab":
		m.activeView = (m.activeView + 1) % 3

	case k.PlayPause:
		return m.run("", e.TogglePlay), false
	case k.Next:
		return m.run("", e.Next), false
	case k.Previous:
		return m.run("", e.Previous), false
	case k.SeekForward:
		return m.run("", func(ctx context.Context) error { return e.SeekRelative(ctx, m.seek) }), false
	case k.SeekBack:
		return m.run("", func(ctx context.Context) error { return e.SeekRelative(ctx, -m.seek) }), false
	case k.VolumeUp, "=":
		vol := state.Volume + volumeStep
		if vol > 100 {
			vol = 100
		}
		return m.run("", func(ctx context.Context) error { return e.SetVolume(ctx, vol) }), false
	case k.VolumeDown:
		vol := state.Volume - volumeStep
		if vol < 0 {
			vol = 0
		}
		return m.run("", func(ctx context.Context) error { return e.SetVolume(ctx, vol) }), false
	case k.Mute:
		return m.run("", e.ToggleMute), false
	case ">", "<":
		rate := state.Rate + rateStep
		if key == "<" {
			rate = state.Rate - rateStep
		}
		rate = math.Round(rate/rateStep) * rateStep
		return m.run("", func(ctx context.Context) error { return e.SetRate(ctx, rate) }), false
	case k.Repeat:
		e.SetRepeat((state.Repeat + 1) % 3)
		m.refresh()
	case k.Shuffle:
		e.SetShuffle(!state.Shuffle)
		m.refresh()
	case k.Favorite:
		if t, ok := m.focusedTrack(); ok {
			on, err := m.session.ToggleFavorite(t.ID)
			m.refresh()
			if err != nil {
				return m.report(err), false
			}
			if on {
				return m.setNotice(fmt.Sprintf("Added %q to favorites", t.Name), false, noticeTTL), false
			}
			return m.setNotice(fmt.Sprintf("Removed %q from favorites", t.Name), false, noticeTTL), false
		}
	default:
		return m.forward(msg), false
	}
	return nil, false
}

// focusedTrack is the highlighted track in list views, otherwise the
// one playing
func (m *Model) focusedTrack() (api.Track, bool) {
	switch m.activeView {
	case ViewQueue:
		if t, ok := m.queueView.SelectedTrack(); ok {
			return t, true
		}
	case ViewPlaylist:
		if m.playlistView.Current != nil {
			if t, ok := m.playlistView.TrackList.SelectedItem(); ok {
				return t, true
			}
		}
	}
	if s := m.session.Engine.State(); s.Track != nil {
		return *s.Track, true
	}
	return api.Track{}, false
}

func (m *Model) forward(msg tea.KeyMsg) tea.Cmd {
	var cmd tea.Cmd
	switch m.activeView {
	case ViewQueue:
		m.queueView, cmd = m.queueView.Update(msg)
	case ViewPlaylist:
		m.playlistView, cmd = m.playlistView.Update(msg)
	}
	return cmd
}

func (m *Model) updateViewSizes() {
	m.playerView.Width = m.width
	m.playerView.ProgressBar.Width = m.width - 8
	m.queueView.Width = m.width
	m.queueView.Height = m.height - 12
	m.queueView.TrackList.Width = m.width - 6
	m.queueView.TrackList.Height = m.height - 18
	m.playlistView.Width = m.width
	m.playlistView.Height = m.height - 12
	m.playlistView.TrackList.Width = m.width - 6
	m.playlistView.TrackList.Height = m.height - 18
}

// View renders the UI
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.renderTabs())
	sb.WriteString("\n")
	sb.WriteString(m.playerView.View())

	switch m.activeView {
	case ViewQueue:
		sb.WriteString("\n")
		sb.WriteString(m.queueView.View())
	case ViewPlaylist:
		sb.WriteString("\n")
		sb.WriteString(m.playlistView.View())
	}

	if m.notice != "" {
		sb.WriteString("\n")
		if m.noticeErr {
			sb.WriteString(m.errorStyle.Render(m.notice))
		} else {
			sb.WriteString(m.noticeStyle.Render(m.notice))
		}
	}
	return sb.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"[1] Player", "[2] Queue", "[3] Playlists"}

	rendered := make([]string, 0, len(tabs))
	for i, tab := range tabs {
		if ViewType(i) == m.activeView {
			rendered = append(rendered, m.activeTabStyle.Render(tab))
		} else {
			rendered = append(rendered, m.tabStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

// Run starts the terminal UI and blocks until the user quits
func Run(s *session.Session) error {
	p := tea.NewProgram(NewModel(s), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
