// Package tui runs a coaching session as a bubbletea chat screen: a
// scrolling transcript above a text area for the learner's replies.
package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	inputHeight     = 3
	draftHeight     = 8
	chromeHeight    = 4
	defaultWidth    = 80
	defaultHeight   = 24
	minContentWidth = 20
)

var (
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	coachStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	studentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	phaseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999")).Italic(true)
)

// Conversation is the part of a session the TUI drives.
type Conversation interface {
	Next(ctx context.Context) (channel.Message, error)
	Reply(text string) error
}

type promptMsg channel.Message

type streamErrMsg struct{ err error }

// entry is one line of the transcript.
type entry struct {
	who  string
	text string
}

// App is the bubbletea model.
type App struct {
	ctx  context.Context
	conv Conversation

	viewport viewport.Model
	input    textarea.Model
	entries  []entry

	phase     string
	multiline bool
	done      bool
	status    string
	width     int
	height    int
}

// New creates the chat model.
func New(ctx context.Context, conv Conversation) *App {
	ta := textarea.New()
	ta.Placeholder = "Type your answer..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.Focus()

	a := &App{
		ctx:      ctx,
		conv:     conv,
		viewport: viewport.New(defaultWidth, defaultHeight-inputHeight-chromeHeight),
		input:    ta,
		width:    defaultWidth,
		height:   defaultHeight,
	}
	a.setMultiline(false)
	return a
}

// Run starts the program on the terminal and blocks until the learner quits.
func Run(ctx context.Context, conv Conversation, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	_, err := tea.NewProgram(New(ctx, conv), opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Init starts listening for prompts.
func (a *App) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.waitForPrompt())
}

func (a *App) waitForPrompt() tea.Cmd {
	return func() tea.Msg {
		msg, err := a.conv.Next(a.ctx)
		if err != nil {
			return streamErrMsg{err: err}
		}
		return promptMsg(msg)
	}
}

// Update handles prompts, key presses and resizes.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		return a, nil

	case promptMsg:
		return a, a.handlePrompt(channel.Message(msg))

	case streamErrMsg:
		if !errors.Is(msg.err, channel.ErrClosed) {
			a.status = msg.err.Error()
		}
		a.finish()
		return a, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return a, tea.Quit
		case tea.KeyEnter:
			if !a.multiline {
				return a, a.send()
			}
		case tea.KeyCtrlS:
			return a, a.send()
		}
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

func (a *App) handlePrompt(m channel.Message) tea.Cmd {
	if m.IsSentinel() {
		a.finish()
		return nil
	}
	if m.Phase != "" {
		a.phase = m.Phase
	}
	switch m.Kind {
	case channel.KindError:
		a.entries = append(a.entries, entry{who: "error", text: m.Text})
	default:
		a.entries = append(a.entries, entry{who: "coach", text: m.Text})
	}
	if m.Kind == channel.KindQuestion {
		a.setMultiline(m.Multiline)
	}
	a.refresh()
	return a.waitForPrompt()
}

func (a *App) send() tea.Cmd {
	if a.done {
		return nil
	}
	text := strings.TrimSpace(a.input.Value())
	if err := a.conv.Reply(text); err != nil {
		if errors.Is(err, channel.ErrReplyPending) {
			a.status = "Still thinking about your last answer..."
		} else {
			a.status = err.Error()
		}
		return nil
	}
	a.status = ""
	a.entries = append(a.entries, entry{who: "student", text: text})
	a.input.Reset()
	a.setMultiline(false)
	a.refresh()
	return nil
}

func (a *App) finish() {
	a.done = true
	a.input.Blur()
	a.entries = append(a.entries, entry{who: "system", text: "Session finished. Press Esc to quit."})
	a.refresh()
}

func (a *App) setMultiline(on bool) {
	a.multiline = on
	a.input.KeyMap.InsertNewline.SetEnabled(on)
	if on {
		a.input.SetHeight(draftHeight)
	} else {
		a.input.SetHeight(inputHeight)
	}
	a.resize(a.width, a.height)
}

func (a *App) resize(width, height int) {
	a.width, a.height = width, height
	a.input.SetWidth(max(minContentWidth, width))
	a.viewport.Width = max(minContentWidth, width)
	a.viewport.Height = max(1, height-a.input.Height()-chromeHeight)
	a.refresh()
}

func (a *App) refresh() {
	a.viewport.SetContent(a.renderTranscript())
	a.viewport.GotoBottom()
}

func (a *App) renderTranscript() string {
	body := lipgloss.NewStyle().Width(max(minContentWidth, a.width-2))
	var b strings.Builder
	for i, e := range a.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch e.who {
		case "coach":
			b.WriteString(coachStyle.Render("Coach") + "\n" + body.Render(e.text))
		case "student":
			b.WriteString(studentStyle.Render("You") + "\n" + body.Render(e.text))
		case "error":
			b.WriteString(errorStyle.Render("Oops") + "\n" + body.Render(e.text))
		default:
			b.WriteString(hintStyle.Render(e.text))
		}
	}
	return b.String()
}

// View renders the screen.
func (a *App) View() string {
	header := titleStyle.Render("WritePal")
	if a.phase != "" {
		header += "  " + phaseStyle.Render(strings.ReplaceAll(a.phase, "_", " "))
	}

	hint := "Enter to send · Esc to quit"
	if a.multiline {
		hint = "Ctrl+S to send your draft · Esc to quit"
	}
	if a.status != "" {
		hint = errorStyle.Render(a.status)
	} else {
		hint = hintStyle.Render(hint)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		a.viewport.View(),
		a.input.View(),
		hint,
	)
}
