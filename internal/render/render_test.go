package render

import (
	"strings"
	"testing"

	"github.com/ashureev/writepal/internal/channel"
)

func TestMarkdownRendersBulletsAndEscapesHTML(t *testing.T) {
	html, err := Markdown("**Great job!**\n\n- first\n- second\n\n<script>alert(1)</script>")
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if !strings.Contains(html, "<strong>Great job!</strong>") {
		t.Errorf("Expected bold text, got %q", html)
	}
	if !strings.Contains(html, "<li>first</li>") {
		t.Errorf("Expected list items, got %q", html)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("Raw HTML leaked: %q", html)
	}
}

func TestMessagesDropsSentinel(t *testing.T) {
	msgs := []channel.Message{
		{Kind: channel.KindText, Text: "hi", Phase: "intake"},
		{Kind: channel.KindError, Code: "parse_failed", Text: "oops"},
		{Kind: channel.KindDone},
	}
	got := Messages(msgs)
	if len(got) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got))
	}
	if got[0].HTML == "" || got[0].Phase != "intake" {
		t.Errorf("Unexpected first message %+v", got[0])
	}
	if got[1].HTML != "" || got[1].Code != "parse_failed" {
		t.Errorf("Error messages are not rendered: %+v", got[1])
	}
	if !ContainsDone(msgs) || ContainsDone(msgs[:2]) {
		t.Error("ContainsDone mismatch")
	}
}
