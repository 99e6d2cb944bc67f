// Package ipc exposes a running daemon over JSON-RPC on a Unix socket.
//
// The CLI reads and edits jobs straight from the database; the socket only
// carries what lives in daemon memory: worker activity and pause/resume.
package ipc
