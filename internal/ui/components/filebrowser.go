package components

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jscyril/noor_player/internal/audio"
	"github.com/samber/lo"
)

// FileEntry is one row of the browser
type FileEntry struct {
	Name  string
	Path  string
	Size  int64
	IsDir bool
}

// FileBrowser picks local audio files to import. Directories are listed
// for navigation; files are listed only when the local decoder can play
// them. Files can be marked with space and added together.
type FileBrowser struct {
	Width   int
	Height  int
	Dir     string
	Entries []FileEntry
	Cursor  int
	Err     error

	offset int
	marked map[string]bool

	DirStyle    lipgloss.Style
	FileStyle   lipgloss.Style
	CursorStyle lipgloss.Style
	MarkStyle   lipgloss.Style
	HeaderStyle lipgloss.Style
	DimStyle    lipgloss.Style
	BorderStyle lipgloss.Style
}

// NewFileBrowser opens a browser at dir, or at the home directory when dir
// is empty
func NewFileBrowser(dir string, width, height int) FileBrowser {
	if dir == "" {
		dir = "/"
		if home, err := os.UserHomeDir(); err == nil {
			dir = home
		}
	}
	fb := FileBrowser{
		Width:       width,
		Height:      height,
		marked:      make(map[string]bool),
		DirStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Bold(true),
		FileStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		CursorStyle: lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Bold(true),
		MarkStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		HeaderStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		DimStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		BorderStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
	}
	fb.Open(dir)
	return fb
}

// Open lists dir. Marks survive navigation.
func (fb *FileBrowser) Open(dir string) {
	fb.Dir = dir
	fb.Cursor, fb.offset = 0, 0
	fb.Entries, fb.Err = readEntries(dir)
	if parent := filepath.Dir(dir); parent != dir {
		fb.Entries = append([]FileEntry{{Name: "..", Path: parent, IsDir: true}}, fb.Entries...)
	}
}

func readEntries(dir string) ([]FileEntry, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	visible := lo.Filter(des, func(de os.DirEntry, _ int) bool {
		if strings.HasPrefix(de.Name(), ".") {
			return false
		}
		return de.IsDir() || audio.IsSupported(de.Name())
	})
	entries := lo.Map(visible, func(de os.DirEntry, _ int) FileEntry {
		e := FileEntry{Name: de.Name(), Path: filepath.Join(dir, de.Name()), IsDir: de.IsDir()}
		if info, err := de.Info(); err == nil && !e.IsDir {
			e.Size = info.Size()
		}
		return e
	})
	// directories first, then case-insensitive by name
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
	})
	return entries, nil
}

// Files returns the playable files in the current directory
func (fb *FileBrowser) Files() []string {
	files := lo.Filter(fb.Entries, func(e FileEntry, _ int) bool { return !e.IsDir })
	return lo.Map(files, func(e FileEntry, _ int) string { return e.Path })
}

// Marked returns the marked files, sorted by path
func (fb *FileBrowser) Marked() []string {
	out := lo.Keys(fb.marked)
	sort.Strings(out)
	return out
}

// ClearMarks drops every mark
func (fb *FileBrowser) ClearMarks() {
	fb.marked = make(map[string]bool)
}

// Current returns the entry under the cursor
func (fb *FileBrowser) Current() (FileEntry, bool) {
	if fb.Cursor < 0 || fb.Cursor >= len(fb.Entries) {
		return FileEntry{}, false
	}
	return fb.Entries[fb.Cursor], true
}

// EnterSelected opens the directory under the cursor, or returns the files
// to add: the marked ones if any, else the file under the cursor.
func (fb *FileBrowser) EnterSelected() []string {
	e, ok := fb.Current()
	if !ok {
		return nil
	}
	if e.IsDir {
		fb.Open(e.Path)
		return nil
	}
	if len(fb.marked) > 0 {
		return fb.Marked()
	}
	return []string{e.Path}
}

func (fb *FileBrowser) move(delta int) {
	fb.Cursor = clamp(fb.Cursor+delta, 0, len(fb.Entries)-1)
	rows := fb.rows()
	if fb.Cursor < fb.offset {
		fb.offset = fb.Cursor
	}
	if fb.Cursor >= fb.offset+rows {
		fb.offset = fb.Cursor - rows + 1
	}
}

func (fb *FileBrowser) rows() int {
	return max(fb.Height-8, 1)
}

func clamp(v, low, high int) int {
	if v > high {
		v = high
	}
	if v < low {
		v = low
	}
	return v
}

// Update handles navigation and marking keys
func (fb FileBrowser) Update(msg tea.Msg) (FileBrowser, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return fb, nil
	}
	switch key.String() {
	case "up", "k":
		fb.move(-1)
	case "down", "j":
		fb.move(1)
	case "pgup":
		fb.move(-fb.rows())
	case "pgdown":
		fb.move(fb.rows())
	case "home", "g":
		fb.move(-len(fb.Entries))
	case "end", "G":
		fb.move(len(fb.Entries))
	case " ":
		if e, ok := fb.Current(); ok && !e.IsDir {
			if fb.marked[e.Path] {
				delete(fb.marked, e.Path)
			} else {
				fb.marked[e.Path] = true
			}
			fb.move(1)
		}
	case "backspace", "h":
		fb.Open(filepath.Dir(fb.Dir))
	case "~":
		if home, err := os.UserHomeDir(); err == nil {
			fb.Open(home)
		}
	}
	return fb, nil
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%dK", n>>10)
	}
	return fmt.Sprintf("%dB", n)
}

// View renders the browser
func (fb FileBrowser) View() string {
	var sb strings.Builder
	sb.WriteString(fb.HeaderStyle.Render(Truncate("Add files: "+fb.Dir, fb.Width-10)))
	sb.WriteString("\n\n")

	if fb.Err != nil {
		sb.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fb.Err.Error()))
		sb.WriteString("\n")
	}

	rows := fb.rows()
	end := min(fb.offset+rows, len(fb.Entries))
	for i := fb.offset; i < end; i++ {
		e := fb.Entries[i]
		mark := "  "
		if fb.marked[e.Path] {
			mark = fb.MarkStyle.Render("✓ ")
		}
		var line string
		if e.IsDir {
			line = Truncate(e.Name+"/", fb.Width-12)
		} else {
			name := Truncate(e.Name, fb.Width-20)
			line = fmt.Sprintf("%-*s %6s", fb.Width-20, name, formatSize(e.Size))
		}
		switch {
		case i == fb.Cursor:
			line = fb.CursorStyle.Render(line)
		case e.IsDir:
			line = fb.DirStyle.Render(line)
		default:
			line = fb.FileStyle.Render(line)
		}
		sb.WriteString(mark + line + "\n")
	}
	for i := end - fb.offset; i < rows; i++ {
		sb.WriteString("\n")
	}

	status := fmt.Sprintf("%d playable here", len(fb.Files()))
	if n := len(fb.marked); n > 0 {
		status += fmt.Sprintf(", %d marked", n)
	}
	sb.WriteString(fb.DimStyle.Render(status))
	sb.WriteString("\n\n")
	sb.WriteString(fb.DimStyle.Render("[Enter] Open/Add  [Space] Mark  [A] Add all here  [Backspace] Up  [~] Home  [Esc] Cancel"))

	return fb.BorderStyle.Width(fb.Width - 4).Render(sb.String())
}
