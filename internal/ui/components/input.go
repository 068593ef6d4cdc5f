package components

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TextInput is a single-line prompt used for filtering and for entering
// links or file paths
type TextInput struct {
	Prompt      string
	Placeholder string
	Width       int
	Focused     bool

	value  []rune
	cursor int

	Style      lipgloss.Style
	FocusStyle lipgloss.Style
}

// NewTextInput creates an unfocused input
func NewTextInput(prompt, placeholder string, width int) TextInput {
	return TextInput{
		Prompt:      prompt,
		Placeholder: placeholder,
		Width:       width,
		Style: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		FocusStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("212")).
			Padding(0, 1),
	}
}

func (t *TextInput) Focus() { t.Focused = true }
func (t *TextInput) Blur()  { t.Focused = false }

// Value returns the current text
func (t TextInput) Value() string { return string(t.value) }

// SetValue replaces the text and moves the cursor to its end
func (t *TextInput) SetValue(s string) {
	t.value = []rune(s)
	t.cursor = len(t.value)
}

// Reset clears the text
func (t *TextInput) Reset() {
	t.value = nil
	t.cursor = 0
}

// Update edits the text while focused
func (t TextInput) Update(msg tea.Msg) (TextInput, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok || !t.Focused {
		return t, nil
	}

	switch key.Type {
	case tea.KeyBackspace:
		if t.cursor > 0 {
			t.value = append(t.value[:t.cursor-1:t.cursor-1], t.value[t.cursor:]...)
			t.cursor--
		}
	case tea.KeyDelete:
		if t.cursor < len(t.value) {
			t.value = append(t.value[:t.cursor:t.cursor], t.value[t.cursor+1:]...)
		}
	case tea.KeyLeft:
		if t.cursor > 0 {
			t.cursor--
		}
	case tea.KeyRight:
		if t.cursor < len(t.value) {
			t.cursor++
		}
	case tea.KeyHome, tea.KeyCtrlA:
		t.cursor = 0
	case tea.KeyEnd, tea.KeyCtrlE:
		t.cursor = len(t.value)
	case tea.KeyCtrlU:
		t.value = append([]rune(nil), t.value[t.cursor:]...)
		t.cursor = 0
	case tea.KeySpace:
		t.insert([]rune{' '})
	case tea.KeyRunes:
		t.insert(key.Runes)
	}
	return t, nil
}

func (t *TextInput) insert(r []rune) {
	next := make([]rune, 0, len(t.value)+len(r))
	next = append(next, t.value[:t.cursor]...)
	next = append(next, r...)
	next = append(next, t.value[t.cursor:]...)
	t.value = next
	t.cursor += len(r)
}

// View renders the input
func (t TextInput) View() string {
	var content string
	switch {
	case len(t.value) == 0 && !t.Focused:
		content = t.Prompt + lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Render(t.Placeholder)
	case t.Focused:
		cursor := lipgloss.NewStyle().Background(lipgloss.Color("212")).Render(" ")
		content = t.Prompt + string(t.value[:t.cursor]) + cursor + string(t.value[t.cursor:])
	default:
		content = t.Prompt + string(t.value)
	}

	style := t.Style
	if t.Focused {
		style = t.FocusStyle
	}
	return style.Width(t.Width).Render(content)
}
