// Package app owns one playground session.
//
// Playground is the explicit application context: it is constructed with
// the editors, the preview, the local key-value storage and the optional
// hosting client, and wires the compositor, console aggregator, project
// store, share codec and theme layer together.
//
// Key Components:
//   - Playground: session lifecycle (Init, Teardown) and user operations
//   - TextEditor: in-memory Editor used by the CLI, the server and tests
//   - SandboxPreview: Preview that runs every document in a fresh sandbox
//
// Example Usage:
//
//	preview := app.NewSandboxPreview(pool, logger)
//	pg := app.New(app.Options{KV: kv, Editors: app.NewTextEditors(), Preview: preview})
//	if err := pg.Init(ctx, shareQuery); err != nil {
//	    return err
//	}
//	defer pg.Teardown()
package app
