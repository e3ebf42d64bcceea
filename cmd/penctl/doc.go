// Command penctl is the LivePen command-line tool.
//
// Offline commands work on source files, directories and the local project
// store (under the per-user config directory, or --data):
//
//	penctl compose --dir ./demo -o preview.html
//	penctl run --js app.js
//	penctl share encode --dir ./demo
//	penctl projects list
//	penctl watch ./demo --run
//
// Hosting commands talk to a LivePen server (--host or $HOST_URL):
//
//	penctl publish --dir ./demo --name Demo --tag css
//	penctl search --tag css
package main
