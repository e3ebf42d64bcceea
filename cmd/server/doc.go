// Package main is the entry point for the LivePen server.
//
// The server hosts the playground API and the optional permalink backend:
//
//	Browser playground → /api/compose, /api/run, /api/run/ws, /api/share
//	                   → /api/create, /api/project/:id, /:id (permalinks)
//
// The server provides:
//   - Preview composition and headless sandbox runs
//   - WebSocket console streaming
//   - Share link encoding and ZIP import/export
//   - Hosted projects in SQLite with daily retention and backups
//   - Prometheus metrics at /metrics
//
// Configuration:
//   - Environment variables (12-factor)
//   - CLI flags (override env vars)
//   - Defaults for development
//
// Usage:
//
//	# Production mode
//	./server -port 3000 -data /var/lib/livepen -public-url https://pen.example.com
//
//	# Development mode (colored logs, debug level)
//	LOG_LEVEL=debug ./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
