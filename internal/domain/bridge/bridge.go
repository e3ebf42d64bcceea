// Package bridge defines the message channel between a sandboxed preview and
// the host console.
//
// The preamble is injected into every instrumented preview document ahead of
// user code. It forwards console output, uncaught errors and unhandled
// promise rejections as {kind, text} messages to the parent window, and
// optionally replaces the blocking dialogs with non-blocking stand-ins.
package bridge

import (
	_ "embed"
	"strings"

	"github.com/bytedance/sonic"
)

// Kind is the severity of a console event.
type Kind string

const (
	KindLog   Kind = "log"
	KindWarn  Kind = "warn"
	KindError Kind = "error"
)

// Valid reports whether k is one of the three known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindLog, KindWarn, KindError:
		return true
	}
	return false
}

// Event is one message posted by the preview.
type Event struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// SuppressedMarker prefixes the log line emitted in place of a blocking alert.
const SuppressedMarker = "[alert suppressed]"

//go:embed preamble.js
var preambleSource string

var (
	preambleOn  = strings.Replace(preambleSource, "__SUPPRESS__", "true", 1)
	preambleOff = strings.Replace(preambleSource, "__SUPPRESS__", "false", 1)
)

// Preamble returns the instrumentation script for the given dialog mode.
func Preamble(suppressDialogs bool) string {
	if suppressDialogs {
		return preambleOn
	}
	return preambleOff
}

// ParseMessage checks the shape of an already-decoded message. Anything that
// is not an object with a known string kind and a string text is rejected.
func ParseMessage(msg any) (Event, bool) {
	switch m := msg.(type) {
	case Event:
		return m, m.Kind.Valid()
	case *Event:
		if m == nil {
			return Event{}, false
		}
		return *m, m.Kind.Valid()
	case map[string]any:
		kind, ok := m["kind"].(string)
		if !ok {
			return Event{}, false
		}
		text, ok := m["text"].(string)
		if !ok {
			return Event{}, false
		}
		ev := Event{Kind: Kind(kind), Text: text}
		return ev, ev.Kind.Valid()
	}
	return Event{}, false
}

// DecodeMessage parses a JSON-encoded message and applies ParseMessage.
func DecodeMessage(data []byte) (Event, bool) {
	var raw any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return Event{}, false
	}
	return ParseMessage(raw)
}
