// Package console runs a coaching session over plain line-based terminal I/O.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/ashureev/writepal/internal/session"
	"github.com/charmbracelet/lipgloss"
)

const maxLineSize = 1 << 20

var (
	coachLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	studentLabel = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	errorLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Conversation is the part of a session the console drives.
type Conversation interface {
	Drain(ctx context.Context, idle time.Duration) ([]channel.Message, error)
	Reply(text string) error
	Awaiting() bool
}

var _ Conversation = (*session.Session)(nil)

// Console renders prompts to out and reads replies from in.
type Console struct {
	in   *bufio.Scanner
	out  io.Writer
	idle time.Duration
}

// New creates a console. idle bounds each wait for the pipeline when it is
// neither asking nor finished.
func New(in io.Reader, out io.Writer, idle time.Duration) *Console {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Console{in: sc, out: out, idle: idle}
}

// Run drives conv until the session signals completion, the input ends or
// ctx is cancelled. Reaching the end of input returns io.EOF.
func (c *Console) Run(ctx context.Context, conv Conversation) error {
	multiline := false
	for {
		msgs, err := conv.Drain(ctx, c.idle)
		for _, m := range msgs {
			if m.IsSentinel() {
				c.println(hintStyle.Render("Session finished. Goodbye!"))
				return nil
			}
			c.print(m)
			if m.Kind == channel.KindQuestion {
				multiline = m.Multiline
			}
		}
		switch {
		case errors.Is(err, channel.ErrClosed):
			return nil
		case err != nil:
			return err
		}
		if !conv.Awaiting() {
			continue
		}

		reply, err := c.readReply(multiline)
		if err != nil {
			return err
		}
		if err := conv.Reply(reply); err != nil && !errors.Is(err, channel.ErrReplyPending) {
			return fmt.Errorf("send reply: %w", err)
		}
	}
}

func (c *Console) print(m channel.Message) {
	switch m.Kind {
	case channel.KindError:
		c.println(errorLabel.Render("Oops:") + " " + m.Text)
	default:
		c.println(coachLabel.Render("Coach:") + " " + m.Text)
		if m.Kind == channel.KindQuestion && m.Multiline {
			c.println(hintStyle.Render("(finish with an empty line)"))
		}
	}
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

// readReply reads one line, or lines up to the first blank one when multiline.
func (c *Console) readReply(multiline bool) (string, error) {
	_, _ = fmt.Fprint(c.out, studentLabel.Render("You:")+" ")
	if !multiline {
		if !c.in.Scan() {
			return "", c.endOfInput()
		}
		return strings.TrimSpace(c.in.Text()), nil
	}

	var lines []string
	for c.in.Scan() {
		line := strings.TrimRight(c.in.Text(), " \t\r")
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
	if len(lines) > 0 {
		return strings.Join(lines, "\n"), nil
	}
	return "", c.endOfInput()
}

func (c *Console) endOfInput() error {
	if err := c.in.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return io.EOF
}
