package app

import "sync"

// Cursor is a zero-based caret position.
type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Editor is one source editor widget.
type Editor interface {
	Value() string
	SetValue(string)
	OnChange(func())
	OnCursor(func(Cursor))
}

// Editors are the three source editors of a session.
type Editors struct {
	Markup Editor
	Style  Editor
	Script Editor
}

// NewTextEditors returns three empty in-memory editors.
func NewTextEditors() Editors {
	return Editors{Markup: NewTextEditor(""), Style: NewTextEditor(""), Script: NewTextEditor("")}
}

// TextEditor is an in-memory Editor. Handlers run on the calling goroutine
// after the value has changed.
type TextEditor struct {
	mu       sync.Mutex
	value    string
	cursor   Cursor
	onChange []func()
	onCursor []func(Cursor)
}

// NewTextEditor creates an editor holding value.
func NewTextEditor(value string) *TextEditor {
	return &TextEditor{value: value}
}

// Value returns the current text.
func (e *TextEditor) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

// SetValue replaces the text. Setting the current text is not a change.
func (e *TextEditor) SetValue(v string) {
	e.mu.Lock()
	if v == e.value {
		e.mu.Unlock()
		return
	}
	e.value = v
	handlers := append([]func(){}, e.onChange...)
	e.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

// MoveCursor sets the caret and notifies cursor handlers.
func (e *TextEditor) MoveCursor(c Cursor) {
	e.mu.Lock()
	e.cursor = c
	handlers := append([]func(Cursor){}, e.onCursor...)
	e.mu.Unlock()

	for _, fn := range handlers {
		fn(c)
	}
}

// Cursor returns the caret position.
func (e *TextEditor) Cursor() Cursor {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// OnChange registers fn for every change of the text.
func (e *TextEditor) OnChange(fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = append(e.onChange, fn)
}

// OnCursor registers fn for every caret move.
func (e *TextEditor) OnCursor(fn func(Cursor)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCursor = append(e.onCursor, fn)
}
