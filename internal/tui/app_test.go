package tui

import (
	"context"
	"strings"
	"testing"

	"github.com/ashureev/writepal/internal/channel"
	tea "github.com/charmbracelet/bubbletea"
)

type fakeConv struct {
	replies []string
	err     error
}

func (f *fakeConv) Next(ctx context.Context) (channel.Message, error) {
	<-ctx.Done()
	return channel.Message{}, ctx.Err()
}

func (f *fakeConv) Reply(text string) error {
	if f.err != nil {
		return f.err
	}
	f.replies = append(f.replies, text)
	return nil
}

func newTestApp(t *testing.T) (*App, *fakeConv) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	conv := &fakeConv{}
	a := New(ctx, conv)
	a.Update(tea.WindowSizeMsg{Width: 60, Height: 30})
	return a, conv
}

func typeText(a *App, s string) {
	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestPromptAppearsAndEnterSends(t *testing.T) {
	a, conv := newTestApp(t)

	_, cmd := a.Update(promptMsg(channel.Message{Kind: channel.KindQuestion, Phase: "intake", Text: "What is your topic?"}))
	if cmd == nil {
		t.Fatal("Expected a command waiting for the next prompt")
	}
	if !strings.Contains(a.View(), "What is your topic?") || !strings.Contains(a.View(), "intake") {
		t.Errorf("Prompt missing from view:\n%s", a.View())
	}

	typeText(a, "Sharks")
	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(conv.replies) != 1 || conv.replies[0] != "Sharks" {
		t.Fatalf("Unexpected replies %q", conv.replies)
	}
	if a.input.Value() != "" {
		t.Errorf("Expected input reset, got %q", a.input.Value())
	}
}

func TestMultilineDraftSendsOnCtrlS(t *testing.T) {
	a, conv := newTestApp(t)
	a.Update(promptMsg(channel.Message{Kind: channel.KindQuestion, Phase: "collect_draft", Text: "Paste your draft", Multiline: true}))

	typeText(a, "Line one.")
	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	typeText(a, "Line two.")
	if len(conv.replies) != 0 {
		t.Fatalf("Enter must not send a draft, got %q", conv.replies)
	}

	a.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if len(conv.replies) != 1 || conv.replies[0] != "Line one.\nLine two." {
		t.Fatalf("Unexpected draft %q", conv.replies)
	}
	if a.multiline {
		t.Error("Expected single-line mode after sending the draft")
	}
}

func TestSentinelEndsSession(t *testing.T) {
	a, conv := newTestApp(t)
	if _, cmd := a.Update(promptMsg(channel.Message{Kind: channel.KindDone})); cmd != nil {
		t.Error("No further prompts expected after the sentinel")
	}
	if !a.done || !strings.Contains(a.View(), "Session finished") {
		t.Errorf("Expected finished view:\n%s", a.View())
	}
	typeText(a, "more")
	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if len(conv.replies) != 0 {
		t.Errorf("Replies after completion must be ignored, got %q", conv.replies)
	}
}

func TestReplyPendingShowsStatus(t *testing.T) {
	a, conv := newTestApp(t)
	conv.err = channel.ErrReplyPending
	typeText(a, "hello")
	a.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(a.View(), "Still thinking") {
		t.Errorf("Expected pending status:\n%s", a.View())
	}
	if a.input.Value() != "hello" {
		t.Errorf("Input must be kept when the reply is refused, got %q", a.input.Value())
	}
}

func TestEscQuits(t *testing.T) {
	a, _ := newTestApp(t)
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Fatal("Expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
}
