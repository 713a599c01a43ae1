package ui

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrCancelled is returned when the operator leaves the prompt without choosing.
var ErrCancelled = errors.New("selection cancelled")

type choiceItem string

func (c choiceItem) Title() string       { return string(c) }
func (c choiceItem) Description() string { return "" }
func (c choiceItem) FilterValue() string { return string(c) }

// selectModel is a bubbletea model for picking one choice.
type selectModel struct {
	message   string
	list      list.Model
	choice    string
	cancelled bool
	styles    Styles
}

func newSelectModel(message string, choices []string, styles Styles) selectModel {
	items := make([]list.Item, len(choices))
	for i, c := range choices {
		items[i] = choiceItem(c)
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	delegate.Styles.SelectedTitle = styles.Selected

	// Every choice stays on one page.
	l := list.New(items, delegate, 72, len(choices)+4)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)

	return selectModel{message: message, list: l, styles: styles}
}

func (m selectModel) Init() tea.Cmd { return nil }

func (m selectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetWidth(msg.Width)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if item, ok := m.list.SelectedItem().(choiceItem); ok {
				m.choice = string(item)
				return m, tea.Quit
			}
			return m, nil
		case "esc", "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m selectModel) View() string {
	if m.choice != "" {
		return m.styles.Muted.Render(fmt.Sprintf("%s %s", m.message, m.choice)) + "\n"
	}
	if m.cancelled {
		return ""
	}
	return m.styles.Question.Render(m.message) + "\n" + m.list.View() + "\n" +
		m.styles.Muted.Render("↑/↓ move • enter choose • esc cancel") + "\n"
}

// Selector prompts on a terminal. It satisfies duplicate.Selector.
type Selector struct {
	In     io.Reader
	Out    io.Writer
	Styles Styles
}

// NewSelector creates a selector reading in and drawing on out.
func NewSelector(in io.Reader, out io.Writer) *Selector {
	return &Selector{In: in, Out: out, Styles: DefaultStyles()}
}

// Select shows message and returns the chosen entry of choices.
func (s *Selector) Select(ctx context.Context, message string, choices []string) (string, error) {
	if len(choices) == 0 {
		return "", errors.New("no choices")
	}
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if s.In != nil {
		opts = append(opts, tea.WithInput(s.In))
	}
	if s.Out != nil {
		opts = append(opts, tea.WithOutput(s.Out))
	}

	final, err := tea.NewProgram(newSelectModel(message, choices, s.Styles), opts...).Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("prompt: %w", err)
	}
	m, ok := final.(selectModel)
	if !ok || m.cancelled || m.choice == "" {
		return "", ErrCancelled
	}
	return m.choice, nil
}
