// Package render converts channel messages into the wire form sent to web clients.
package render

import (
	"bytes"
	"time"

	"github.com/ashureev/writepal/internal/channel"
	"github.com/yuin/goldmark"
)

// Message is the JSON shape of a prompt delivered to HTTP and WebSocket clients.
type Message struct {
	Kind      channel.Kind `json:"kind"`
	Text      string       `json:"text,omitempty"`
	HTML      string       `json:"html,omitempty"`
	Phase     string       `json:"phase,omitempty"`
	Multiline bool         `json:"multiline,omitempty"`
	Code      string       `json:"code,omitempty"`
	SentAt    time.Time    `json:"sent_at"`
}

// Markdown converts coach text to HTML. Raw HTML in the input is escaped.
func Markdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// FromChannel builds the wire form of msg. When markdown conversion fails the
// plain text is still delivered.
func FromChannel(msg channel.Message) Message {
	out := Message{
		Kind:      msg.Kind,
		Text:      msg.Text,
		Phase:     msg.Phase,
		Multiline: msg.Multiline,
		Code:      msg.Code,
		SentAt:    msg.SentAt,
	}
	if msg.Text != "" && msg.Kind != channel.KindError {
		if html, err := Markdown(msg.Text); err == nil {
			out.HTML = html
		}
	}
	return out
}

// Messages converts a batch, dropping the end-of-session sentinel. The caller
// reports completion separately.
func Messages(msgs []channel.Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSentinel() {
			continue
		}
		out = append(out, FromChannel(m))
	}
	return out
}

// ContainsDone reports whether the batch carries the sentinel.
func ContainsDone(msgs []channel.Message) bool {
	for _, m := range msgs {
		if m.IsSentinel() {
			return true
		}
	}
	return false
}
