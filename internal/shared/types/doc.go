// Package types provides shared data structures for the LivePen backend.
//
// Core Types:
//   - BufferSet: the markup, style and script buffers plus library and dialog flag
//   - SharedBuffers: the reduced field set carried by share links
//   - Project: a named, persisted BufferSet
//   - ThemeState: the global theme selection
//
// Request Types:
//   - CreateRequest, UpdateRequest: hosted project CRUD
//   - ComposeRequest, RunRequest, ShareRequest: playground API
//   - WSMessage: console stream frames
//
// Errors:
//   - ValidationError, PersistenceError and the ErrNotFound, ErrInvariant,
//     ErrLastProject and ErrCancelled sentinels
package types
